package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const keyPrefix = "price:"

type cachedQuote struct {
	Price      decimal.Decimal `json:"price"`
	ObservedAt time.Time       `json:"observed_at"`
}

// PriceCache shares the latest quotes observed by the scheduler with the command surface.
type PriceCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewPriceCache(client redis.UniversalClient, ttl time.Duration) *PriceCache {
	return &PriceCache{client: client, ttl: ttl}
}

func (c *PriceCache) Store(ctx context.Context, quotes map[string]domain.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for symbol, quote := range quotes {
		data, err := json.Marshal(cachedQuote{Price: quote.Price, ObservedAt: quote.ObservedAt})
		if err != nil {
			return err
		}
		pipe.Set(ctx, keyPrefix+symbol, data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store quotes: %w", err)
	}
	return nil
}

func (c *PriceCache) Get(ctx context.Context, symbol string) (domain.Quote, error) {
	data, err := c.client.Get(ctx, keyPrefix+symbol).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Quote{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Quote{}, err
	}
	var cached cachedQuote
	if err := json.Unmarshal(data, &cached); err != nil {
		return domain.Quote{}, fmt.Errorf("decode cached quote %s: %w", symbol, err)
	}
	return domain.Quote{Symbol: symbol, Price: cached.Price, ObservedAt: cached.ObservedAt}, nil
}

func (c *PriceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *PriceCache) Close() error {
	return c.client.Close()
}
