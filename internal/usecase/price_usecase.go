package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"go.uber.org/zap"
)

type QuoteCache interface {
	Get(ctx context.Context, symbol string) (domain.Quote, error)
}

// PriceUsecase answers ad-hoc price lookups, preferring the snapshot the scheduler last stored.
type PriceUsecase struct {
	feed   domain.PriceFeed
	cache  QuoteCache
	maxAge time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewPriceUsecase(feed domain.PriceFeed, cache QuoteCache, maxAge time.Duration, logger *zap.Logger) *PriceUsecase {
	return &PriceUsecase{
		feed:   feed,
		cache:  cache,
		maxAge: maxAge,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (u *PriceUsecase) Quote(ctx context.Context, input string) (domain.Quote, error) {
	symbol := domain.NormalizeSymbol(input)
	if !symbolPattern.MatchString(symbol) {
		return domain.Quote{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, input)
	}

	if u.cache != nil {
		quote, err := u.cache.Get(ctx, symbol)
		switch {
		case err == nil && u.now().Sub(quote.ObservedAt) <= u.maxAge:
			return quote, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			u.logger.Warn("price cache lookup failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	quotes, failures := u.feed.Prices(ctx, []string{symbol})
	if quote, ok := quotes[symbol]; ok {
		return quote, nil
	}
	if err := failures[symbol]; err != nil {
		return domain.Quote{}, err
	}
	return domain.Quote{}, fmt.Errorf("%w: %s", domain.ErrSymbolNotFound, symbol)
}
