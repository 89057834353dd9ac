package server

import (
	"net/http"

	"messenger/internal/config"
	"messenger/internal/metrics"
	"messenger/internal/mw"
	"messenger/internal/service"
	"messenger/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。limiter 为 nil 时不限速。
func SetupRouter(cfg config.Config, broker *service.Broker, limiter *mw.RL) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	if limiter != nil {
		r.Use(limiter.Middleware())
	}
	r.Use(mw.CORS(cfg.Env))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := NewHandler(broker)
	api := r.Group("/api/v1")
	api.POST("/messages", h.Send)
	api.GET("/users/:nickname/messages", h.History)
	api.GET("/presence", h.Presence)

	r.GET("/ws", ws.Serve(broker))
	return r
}
