package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	Env                string
	StoreURL           string
	SweepIntervalSecs  int
	RateLimitPerSecond int
	RateLimitBurst     int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	n, err := strconv.Atoi(getenv(key, ""))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Load reads the process environment, after merging a .env file from the
// working directory if one exists. Variables already set win over .env.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Port:               getenv("APP_PORT", "8080"),
		Env:                getenv("APP_ENV", "dev"),
		StoreURL:           os.Getenv("STORE_URL"),
		SweepIntervalSecs:  getenvInt("STORE_SWEEP_INTERVAL_SECONDS", 60),
		RateLimitPerSecond: getenvInt("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getenvInt("RATE_LIMIT_BURST", 40),
	}
}

func (c Config) Durable() bool { return c.StoreURL != "" }

var storeSchemes = []string{"redis://", "rediss://", "postgres://", "postgresql://", "sqlite://", "file:"}

// Validate rejects configurations the server cannot start with.
func Validate(c Config) error {
	if c.Port == "" {
		return errors.New("config: APP_PORT is empty")
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("config: invalid APP_PORT %q", c.Port)
	}
	if c.StoreURL != "" && !knownStore(c.StoreURL) {
		return fmt.Errorf("config: unsupported STORE_URL %q", c.StoreURL)
	}
	if c.SweepIntervalSecs <= 0 {
		return errors.New("config: STORE_SWEEP_INTERVAL_SECONDS must be positive")
	}
	if c.RateLimitPerSecond <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("config: rate limit must be positive")
	}
	return nil
}

func knownStore(url string) bool {
	if strings.Contains(url, "host=") {
		return true
	}
	for _, s := range storeSchemes {
		if strings.HasPrefix(url, s) {
			return true
		}
	}
	return false
}
