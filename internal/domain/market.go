package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrFeedUnavailable = errors.New("price feed unavailable")
	ErrSymbolNotFound  = errors.New("symbol not found")
	ErrStaleQuote      = errors.New("stale quote")
)

type Quote struct {
	Symbol     string
	Price      decimal.Decimal
	ObservedAt time.Time
}

// PriceFeed returns a quote for every symbol it could price and an error for every symbol it could not.
type PriceFeed interface {
	Prices(ctx context.Context, symbols []string) (map[string]Quote, map[string]error)
}

var quoteAssets = []string{"USDT", "USDC", "FDUSD", "BUSD", "TUSD"}

// NormalizeSymbol upper-cases a symbol and pairs bare assets with USDT.
func NormalizeSymbol(input string) string {
	symbol := strings.ToUpper(strings.TrimSpace(input))
	symbol = strings.NewReplacer("/", "", "-", "", "_", "").Replace(symbol)
	if symbol == "" {
		return ""
	}
	for _, quote := range quoteAssets {
		if strings.HasSuffix(symbol, quote) && len(symbol) > len(quote) {
			return symbol
		}
	}
	return symbol + "USDT"
}
