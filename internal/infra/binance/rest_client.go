package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type RESTClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

func NewRESTClient(baseURL string, timeout time.Duration, requestsPerSecond float64, logger *zap.Logger) *RESTClient {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Prices issues one batched request and falls back to per-symbol requests when the batch
// is rejected because one of the symbols is unknown.
func (c *RESTClient) Prices(ctx context.Context, symbols []string) (map[string]domain.Quote, map[string]error) {
	quotes := make(map[string]domain.Quote, len(symbols))
	failures := make(map[string]error)
	symbols = uniqueSymbols(symbols)

	switch len(symbols) {
	case 0:
		return quotes, failures
	case 1:
		c.priceOne(ctx, symbols[0], quotes, failures)
		return quotes, failures
	}

	tickers, err := c.batch(ctx, symbols)
	if errors.Is(err, domain.ErrSymbolNotFound) {
		c.logger.Warn("binance batch rejected, pricing symbols one by one", zap.Int("symbol_count", len(symbols)), zap.Error(err))
		for _, symbol := range symbols {
			c.priceOne(ctx, symbol, quotes, failures)
		}
		return quotes, failures
	}
	if err != nil {
		for _, symbol := range symbols {
			failures[symbol] = err
		}
		return quotes, failures
	}

	observed := c.now()
	for _, ticker := range tickers {
		quotes[ticker.Symbol] = domain.Quote{Symbol: ticker.Symbol, Price: ticker.Price, ObservedAt: observed}
	}
	for _, symbol := range symbols {
		if _, ok := quotes[symbol]; !ok {
			failures[symbol] = fmt.Errorf("%w: %s", domain.ErrSymbolNotFound, symbol)
		}
	}
	return quotes, failures
}

func (c *RESTClient) Price(ctx context.Context, symbol string) (domain.Quote, error) {
	var ticker tickerPrice
	if err := c.get(ctx, url.Values{"symbol": {symbol}}, &ticker); err != nil {
		return domain.Quote{}, err
	}
	return domain.Quote{Symbol: ticker.Symbol, Price: ticker.Price, ObservedAt: c.now()}, nil
}

func (c *RESTClient) priceOne(ctx context.Context, symbol string, quotes map[string]domain.Quote, failures map[string]error) {
	quote, err := c.Price(ctx, symbol)
	if err != nil {
		failures[symbol] = err
		return
	}
	quotes[symbol] = quote
}

func (c *RESTClient) batch(ctx context.Context, symbols []string) ([]tickerPrice, error) {
	encoded, err := json.Marshal(symbols)
	if err != nil {
		return nil, err
	}
	var tickers []tickerPrice
	if err := c.get(ctx, url.Values{"symbols": {string(encoded)}}, &tickers); err != nil {
		return nil, err
	}
	return tickers, nil
}

func (c *RESTClient) get(ctx context.Context, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", domain.ErrFeedUnavailable, err)
	}

	endpoint := c.baseURL + "/api/v3/ticker/price?" + query.Encode()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	start := time.Now()
	response, err := c.client.Do(request)
	if err != nil {
		c.logger.Warn("binance request failed", zap.String("url", endpoint), zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrFeedUnavailable, err)
	}
	defer response.Body.Close()

	c.logger.Debug(
		"binance request complete",
		zap.String("url", endpoint),
		zap.Int("status", response.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Code == codeInvalidSymbol {
			return fmt.Errorf("%w: %s", domain.ErrSymbolNotFound, apiErr.Msg)
		}
		return fmt.Errorf("%w: binance status %d: %s", domain.ErrFeedUnavailable, response.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode ticker: %v", domain.ErrFeedUnavailable, err)
	}
	return nil
}

func uniqueSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if symbol == "" {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		out = append(out, symbol)
	}
	return out
}
