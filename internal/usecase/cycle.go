package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"go.uber.org/zap"
)

var ErrStoreUnavailable = errors.New("alert store unavailable")

type Notifier interface {
	Notify(ctx context.Context, telegramUserID int64, text string) error
}

type FirePublisher interface {
	PublishFired(ctx context.Context, event domain.FiredEvent) error
}

type QuoteSink interface {
	Store(ctx context.Context, quotes map[string]domain.Quote) error
}

type EngineOption func(*Engine)

func WithFirePublisher(publisher FirePublisher) EngineOption {
	return func(e *Engine) { e.publisher = publisher }
}

func WithQuoteSink(sink QuoteSink) EngineOption {
	return func(e *Engine) { e.sink = sink }
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// Engine runs evaluation cycles: load due alerts, price every symbol once, evaluate, fire.
type Engine struct {
	alerts      domain.AlertRepository
	feed        domain.PriceFeed
	notifier    Notifier
	publisher   FirePublisher
	sink        QuoteSink
	logger      *zap.Logger
	now         func() time.Time
	feedTimeout time.Duration
	fireTimeout time.Duration
}

func NewEngine(alerts domain.AlertRepository, feed domain.PriceFeed, notifier Notifier, feedTimeout, fireTimeout time.Duration, logger *zap.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		alerts:      alerts,
		feed:        feed,
		notifier:    notifier,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		feedTimeout: feedTimeout,
		fireTimeout: fireTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) RunCycle(ctx context.Context) (report domain.CycleReport, err error) {
	started := e.now()
	report.StartedAt = started
	defer func() { report.Duration = e.now().Sub(started) }()

	due, err := e.alerts.ListDue(ctx, started)
	if err != nil {
		return report, fmt.Errorf("%w: list due alerts: %v", ErrStoreUnavailable, err)
	}
	if len(due) == 0 {
		return report, nil
	}

	bySymbol := make(map[string][]domain.DueAlert)
	for _, alert := range due {
		bySymbol[alert.Symbol] = append(bySymbol[alert.Symbol], alert)
	}
	symbols := make([]string, 0, len(bySymbol))
	for symbol := range bySymbol {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	report.Symbols = len(symbols)

	quotes := e.fetchQuotes(ctx, symbols, bySymbol, &report)

	for _, symbol := range symbols {
		quote, ok := quotes[symbol]
		if !ok {
			continue
		}
		for _, alert := range bySymbol[symbol] {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if err := e.evaluate(ctx, alert, quote, &report); err != nil {
				return report, err
			}
		}
	}

	return report, nil
}

func (e *Engine) fetchQuotes(ctx context.Context, symbols []string, bySymbol map[string][]domain.DueAlert, report *domain.CycleReport) map[string]domain.Quote {
	feedCtx, cancel := context.WithTimeout(ctx, e.feedTimeout)
	quotes, failures := e.feed.Prices(feedCtx, symbols)
	cancel()

	for _, symbol := range symbols {
		if _, ok := quotes[symbol]; ok {
			report.PricedSymbols++
			continue
		}
		report.Skipped += len(bySymbol[symbol])
		err := failures[symbol]
		if err == nil {
			err = domain.ErrSymbolNotFound
		}
		e.logger.Warn("symbol skipped",
			zap.String("symbol", symbol),
			zap.Int("alerts", len(bySymbol[symbol])),
			zap.Error(err),
		)
	}

	if e.sink != nil && len(quotes) > 0 {
		if err := e.sink.Store(ctx, quotes); err != nil {
			e.logger.Warn("store price snapshot failed", zap.Error(err))
		}
	}
	return quotes
}

func (e *Engine) evaluate(ctx context.Context, alert domain.DueAlert, quote domain.Quote, report *domain.CycleReport) error {
	report.Evaluated++

	matched, err := alert.Matches(quote.Price)
	if err != nil {
		report.Invalid++
		e.logger.Warn("alert has invalid condition",
			zap.Uint("alert_id", alert.ID),
			zap.String("rule", string(alert.Rule)),
			zap.String("value", alert.Value),
			zap.Error(err),
		)
		return nil
	}
	if !matched {
		return nil
	}
	report.Matched++

	if !domain.CooldownEligible(alert.LastFiredAt, alert.Cooldown(), e.now()) {
		return nil
	}

	return e.fire(ctx, alert, quote, report)
}

// fire commits last_fired_at before dispatching: a crash in between loses the message, it never repeats it.
// Record and dispatch run detached from ctx cancellation.
func (e *Engine) fire(ctx context.Context, alert domain.DueAlert, quote domain.Quote, report *domain.CycleReport) error {
	fireCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.fireTimeout)
	defer cancel()

	firedAt := e.now()
	fired, err := e.alerts.RecordFire(fireCtx, alert.ID, firedAt)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			report.Contended++
			return nil
		}
		return fmt.Errorf("%w: record fire %d: %v", ErrStoreUnavailable, alert.ID, err)
	}
	if !fired {
		report.Contended++
		e.logger.Debug("alert already fired by another evaluator", zap.Uint("alert_id", alert.ID))
		return nil
	}
	report.Fired++

	event := domain.FiredEvent{
		AlertID:        alert.ID,
		UserSeq:        alert.UserSeq,
		TelegramUserID: alert.TelegramUserID,
		Symbol:         alert.Symbol,
		Rule:           alert.Rule,
		Value:          alert.Value,
		Price:          quote.Price.String(),
		FiredAt:        firedAt,
	}

	if err := e.notifier.Notify(fireCtx, alert.TelegramUserID, FormatFiredMessage(alert.Alert, quote)); err != nil {
		report.DispatchFailed++
		e.logger.Warn("alert dispatch failed",
			zap.Uint("alert_id", alert.ID),
			zap.Int64("telegram_user_id", alert.TelegramUserID),
			zap.Error(err),
		)
	} else {
		event.Dispatched = true
		e.logger.Info("alert fired",
			zap.Uint("alert_id", alert.ID),
			zap.Int64("telegram_user_id", alert.TelegramUserID),
			zap.String("symbol", alert.Symbol),
			zap.String("price", event.Price),
		)
	}

	if e.publisher != nil {
		if err := e.publisher.PublishFired(fireCtx, event); err != nil {
			e.logger.Warn("publish fired event failed", zap.Uint("alert_id", alert.ID), zap.Error(err))
		}
	}
	return nil
}

func FormatFiredMessage(alert domain.Alert, quote domain.Quote) string {
	return fmt.Sprintf("🔔 Alert #%d | %s %s %s | price=%s",
		alert.UserSeq, alert.Symbol, alert.Rule.Symbol(), alert.Value, quote.Price.String())
}
