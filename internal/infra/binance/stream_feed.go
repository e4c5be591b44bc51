package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	minReconnectDelay = time.Second
	maxReconnectDelay = 30 * time.Second
)

// StreamFeed keeps the latest close price of every symbol from the all-market mini ticker stream.
// Symbols without a fresh quote are priced through the fallback feed.
type StreamFeed struct {
	url      string
	dialer   *websocket.Dialer
	maxAge   time.Duration
	fallback domain.PriceFeed
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.RWMutex
	quotes map[string]domain.Quote
}

func NewStreamFeed(url string, maxAge time.Duration, fallback domain.PriceFeed, logger *zap.Logger) *StreamFeed {
	return &StreamFeed{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		maxAge:   maxAge,
		fallback: fallback,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		quotes:   make(map[string]domain.Quote),
	}
}

// Run keeps the stream connected until ctx is cancelled.
func (f *StreamFeed) Run(ctx context.Context) {
	delay := minReconnectDelay
	for {
		connectedAt := time.Now()
		err := f.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		if time.Since(connectedAt) > maxReconnectDelay {
			delay = minReconnectDelay
		}
		f.logger.Warn("price stream disconnected", zap.Duration("retry_in", delay), zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, maxReconnectDelay)
	}
}

func (f *StreamFeed) consume(ctx context.Context) error {
	f.logger.Info("ws connect start", zap.String("url", f.url))
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	f.logger.Info("ws connect success", zap.String("url", f.url))

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		if f.maxAge > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(f.maxAge))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := f.apply(data); err != nil {
			f.logger.Debug("ws message ignored", zap.Error(err))
		}
	}
}

func (f *StreamFeed) apply(data []byte) error {
	tickers, err := decodeMiniTickers(data)
	if err != nil {
		return err
	}
	received := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ticker := range tickers {
		f.quotes[ticker.Symbol] = domain.Quote{Symbol: ticker.Symbol, Price: ticker.Close, ObservedAt: received}
	}
	return nil
}

func (f *StreamFeed) Prices(ctx context.Context, symbols []string) (map[string]domain.Quote, map[string]error) {
	quotes := make(map[string]domain.Quote, len(symbols))
	failures := make(map[string]error)
	var missing []string

	now := f.now()
	f.mu.RLock()
	for _, symbol := range uniqueSymbols(symbols) {
		quote, ok := f.quotes[symbol]
		if ok && now.Sub(quote.ObservedAt) <= f.maxAge {
			quotes[symbol] = quote
			continue
		}
		missing = append(missing, symbol)
	}
	f.mu.RUnlock()

	if len(missing) == 0 {
		return quotes, failures
	}
	if f.fallback == nil {
		for _, symbol := range missing {
			failures[symbol] = fmt.Errorf("%w: %s", domain.ErrStaleQuote, symbol)
		}
		return quotes, failures
	}

	fallbackQuotes, fallbackFailures := f.fallback.Prices(ctx, missing)
	for symbol, quote := range fallbackQuotes {
		quotes[symbol] = quote
	}
	for symbol, err := range fallbackFailures {
		failures[symbol] = errors.Join(fmt.Errorf("%w: %s", domain.ErrStaleQuote, symbol), err)
	}
	return quotes, failures
}
