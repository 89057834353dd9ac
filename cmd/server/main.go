package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"messenger/internal/config"
	clog "messenger/internal/log"
	"messenger/internal/mw"
	"messenger/internal/server"
	"messenger/internal/service"
	"messenger/internal/store"
	"messenger/internal/ws"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

func main() {
	// main 函数负责加载配置、初始化日志、打开消息存储并启动 Gin 服务。
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := store.Open(ctx, cfg.StoreURL)
	if err != nil {
		log.Fatal().Err(err).Msg("store open")
	}
	if backend == nil {
		log.Warn().Msg("STORE_URL not set, running without persistence")
	} else if sw, ok := backend.(store.Sweeper); ok {
		go store.RunSweeper(ctx, sw, time.Duration(cfg.SweepIntervalSecs)*time.Second)
	}

	broker := service.NewBroker(ws.NewHeldHub(), backend)
	limiter := mw.NewRateLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst, 2*time.Minute)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.SetupRouter(cfg, broker, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Bool("durable", broker.Durable()).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server run")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	limiter.Stop()
	if backend != nil {
		if err := backend.Close(); err != nil {
			log.Error().Err(err).Msg("store close")
		}
	}
}
