package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/evlasova/batch-auction/internal/adapter/cache"
	"github.com/evlasova/batch-auction/internal/adapter/in_memory"
	"github.com/evlasova/batch-auction/internal/adapter/pg"
	"github.com/evlasova/batch-auction/internal/api/http"
	"github.com/evlasova/batch-auction/internal/config"
	"github.com/evlasova/batch-auction/internal/core"
	"github.com/evlasova/batch-auction/internal/port"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	var ledger port.Ledger
	if cfg.PostgresDSN != "" {
		pgLedger, err := pg.NewLedger(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to postgres")
		}
		defer pgLedger.Close(ctx)
		ledger = pgLedger
	} else {
		logger.Warn().Msg("no postgres dsn configured, auctions will not survive restart")
		ledger = in_memory.NewLedger()
	}

	var auctionCache port.Cache
	if cfg.RedisAddr != "" {
		auctionCache = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
	} else {
		auctionCache = in_memory.NewCache()
	}

	vault := in_memory.NewVault()
	registry := in_memory.NewRegistry()

	engine := core.NewEngine(ledger, vault, registry, auctionCache,
		core.WithLogger(logger.With().Str("component", "engine").Logger()))
	if err := engine.LoadAuctionsFromLedger(ctx); err != nil {
		logger.Fatal().Err(err).Msg("restore auctions")
	}

	server := http.NewHTTPServer(engine, cfg.RateLimit)
	logger.Info().Str("addr", cfg.HTTPAddr).Msg("starting HTTP server")
	if err := server.Run(cfg.HTTPAddr); err != nil {
		logger.Fatal().Err(err).Msg("HTTP server failed")
	}
}
