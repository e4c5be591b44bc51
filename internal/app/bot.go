package app

import (
	"context"

	"github.com/NasaVasa/cryptoalerts/internal/config"
	"github.com/NasaVasa/cryptoalerts/internal/delivery/telegram"
	"github.com/NasaVasa/cryptoalerts/internal/infra/binance"
	"github.com/NasaVasa/cryptoalerts/internal/infra/db"
	"github.com/NasaVasa/cryptoalerts/internal/usecase"
)

// Bot serves the Telegram command surface. It shares only the store and the price snapshot with the worker.
type Bot struct {
	*base
	bot *telegram.Bot
}

func NewBot(ctx context.Context, cfg config.Config) (*Bot, error) {
	b, err := newBase(ctx, cfg, "alertbot")
	if err != nil {
		return nil, err
	}
	logger := b.logger

	userRepo := db.NewUserRepository(b.db)
	alertRepo := db.NewAlertRepository(b.db)
	subRepo := db.NewSubscriptionRepository(b.db)
	feed := binance.NewRESTClient(cfg.BinanceBaseURL, cfg.PriceFeedTimeout, cfg.PriceFeedRPS, logger)

	quota := usecase.NewQuotaGate(subRepo, alertRepo, cfg.FreeAlertLimit, cfg.IsAdmin)
	userUC := usecase.NewUserUsecase(userRepo)
	alertUC := usecase.NewAlertUsecase(userRepo, alertRepo, quota, cfg.DefaultCooldown, cfg.MinCooldown)
	var quoteCache usecase.QuoteCache
	if b.cache != nil {
		quoteCache = b.cache
	}
	priceUC := usecase.NewPriceUsecase(feed, quoteCache, cfg.Interval()+cfg.PriceFeedTimeout, logger)

	api, err := telegram.NewAPI(cfg.TelegramBotToken, cfg.TelegramSendTimeout, cfg.TelegramPollTimeout)
	if err != nil {
		b.close()
		return nil, err
	}

	handlers := telegram.NewHandlers(userUC, alertUC, priceUC, logger)
	return &Bot{base: b, bot: telegram.NewBot(api, handlers, cfg.TelegramPollTimeout)}, nil
}

func (a *Bot) Run(ctx context.Context) error {
	a.logger.Info("alertbot started")
	return a.bot.Start(ctx)
}

func (a *Bot) Shutdown() {
	a.logger.Info("alertbot shutting down")
	a.close()
}
