package app

import (
	"context"
	"fmt"

	"github.com/NasaVasa/cryptoalerts/internal/config"
	"github.com/NasaVasa/cryptoalerts/internal/infra/cache"
	"github.com/NasaVasa/cryptoalerts/internal/infra/db"
	"github.com/NasaVasa/cryptoalerts/internal/infra/log"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// base holds what both processes open: logger, store and the optional price snapshot.
type base struct {
	logger   *zap.Logger
	db       *gorm.DB
	cache    *cache.PriceCache
	cleanups []func() error
}

func newBase(ctx context.Context, cfg config.Config, service string) (*base, error) {
	logger, err := log.NewLogger(cfg.LogLevel, service)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	b := &base{logger: logger, db: dbConn}
	b.cleanups = append(b.cleanups, func() error { return db.Close(dbConn) })

	if cfg.RedisAddr != "" {
		priceCache := cache.NewPriceCache(cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), cfg.PriceCacheTTL)
		if err := priceCache.Ping(ctx); err != nil {
			b.close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		b.cache = priceCache
		b.cleanups = append(b.cleanups, priceCache.Close)
	}

	return b, nil
}

func (b *base) close() {
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		if err := b.cleanups[i](); err != nil {
			b.logger.Warn("cleanup failed", zap.Error(err))
		}
	}
	b.cleanups = nil
	_ = b.logger.Sync()
}
