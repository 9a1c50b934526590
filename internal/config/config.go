package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is read from the environment with the AUCTION_ prefix, e.g.
// AUCTION_HTTP_ADDR, AUCTION_POSTGRES_DSN. An empty PostgresDSN or RedisAddr
// selects the in-memory adapter for that concern.
type Config struct {
	HTTPAddr string

	PostgresDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	RateLimit time.Duration
	LogLevel  string
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUCTION")
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", 5*time.Minute)
	v.SetDefault("RATE_LIMIT", 100*time.Millisecond)
	v.SetDefault("LOG_LEVEL", "info")

	return &Config{
		HTTPAddr:      v.GetString("HTTP_ADDR"),
		PostgresDSN:   v.GetString("POSTGRES_DSN"),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		CacheTTL:      v.GetDuration("CACHE_TTL"),
		RateLimit:     v.GetDuration("RATE_LIMIT"),
		LogLevel:      v.GetString("LOG_LEVEL"),
	}, nil
}
