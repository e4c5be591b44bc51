package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/config"
	"github.com/NasaVasa/cryptoalerts/internal/delivery/httpapi"
	"github.com/NasaVasa/cryptoalerts/internal/delivery/telegram"
	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"github.com/NasaVasa/cryptoalerts/internal/infra/binance"
	"github.com/NasaVasa/cryptoalerts/internal/infra/db"
	"github.com/NasaVasa/cryptoalerts/internal/infra/events"
	"github.com/NasaVasa/cryptoalerts/internal/infra/log"
	"github.com/NasaVasa/cryptoalerts/internal/infra/metrics"
	"github.com/NasaVasa/cryptoalerts/internal/usecase"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Worker runs the leased scheduler, the premium-flag sync job and the ops HTTP surface.
type Worker struct {
	*base
	cfg       config.Config
	scheduler *usecase.Scheduler
	stream    *binance.StreamFeed
	cron      *cron.Cron
	server    *http.Server
}

func NewWorker(ctx context.Context, cfg config.Config) (*Worker, error) {
	b, err := newBase(ctx, cfg, "alertworker")
	if err != nil {
		return nil, err
	}
	logger := b.logger

	userRepo := db.NewUserRepository(b.db)
	alertRepo := db.NewAlertRepository(b.db)
	subRepo := db.NewSubscriptionRepository(b.db)
	leaseRepo := db.NewLeaseRepository(b.db)
	statsRepo := db.NewStatsRepository(b.db)

	restFeed := binance.NewRESTClient(cfg.BinanceBaseURL, cfg.PriceFeedTimeout, cfg.PriceFeedRPS, logger)
	var feed domain.PriceFeed = restFeed
	var stream *binance.StreamFeed
	if cfg.PriceFeedMode == "stream" {
		stream = binance.NewStreamFeed(cfg.BinanceStreamURL, cfg.PriceStreamMaxAge, restFeed, logger)
		feed = stream
	}

	api, err := telegram.NewAPI(cfg.TelegramBotToken, cfg.TelegramSendTimeout, 0)
	if err != nil {
		b.close()
		return nil, err
	}
	notifier := telegram.NewNotifier(api, cfg.TelegramSendTimeout, logger)

	opts := []usecase.EngineOption{}
	if b.cache != nil {
		opts = append(opts, usecase.WithQuoteSink(b.cache))
	}
	if cfg.NATSURL != "" {
		publisher, err := events.NewPublisher(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			b.close()
			return nil, err
		}
		b.cleanups = append(b.cleanups, func() error { publisher.Close(); return nil })
		opts = append(opts, usecase.WithFirePublisher(publisher))
	}

	engine := usecase.NewEngine(alertRepo, feed, notifier, cfg.PriceFeedTimeout, cfg.TelegramSendTimeout+5*time.Second, logger, opts...)
	m := metrics.New("cryptoalerts")
	lease := usecase.NewLeaderLease(leaseRepo, cfg.LeaderLeaseName, cfg.LeaseTTL())
	scheduler := usecase.NewScheduler(engine, lease, cfg.Interval(), m, logger)

	premiumSync := usecase.NewPremiumSync(userRepo, subRepo, cfg.IsAdmin, logger)
	cronLogger := log.CronLogger{Logger: logger}
	jobs := cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	if _, err := jobs.AddJob(cfg.PremiumSyncSchedule, premiumSync); err != nil {
		b.close()
		return nil, err
	}

	statsUC := usecase.NewStatsUsecase(statsRepo, userRepo, subRepo, cfg.IsAdmin)
	handler := httpapi.NewHandler(scheduler, statsUC, cfg.AlertsSecret, logger)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(handler, m.Handler(), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Worker{base: b, cfg: cfg, scheduler: scheduler, stream: stream, cron: jobs, server: server}, nil
}

func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("alertworker starting",
		zap.Duration("interval", w.cfg.Interval()),
		zap.String("price_feed", w.cfg.PriceFeedMode),
		zap.String("http_addr", w.cfg.HTTPAddr),
	)

	g, ctx := errgroup.WithContext(ctx)
	if w.stream != nil {
		g.Go(func() error {
			w.stream.Run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		return w.scheduler.Run(ctx)
	})
	g.Go(func() error {
		w.cron.Start()
		<-ctx.Done()
		<-w.cron.Stop().Done()
		return nil
	})
	g.Go(func() error {
		if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.ShutdownTimeout)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	})

	w.logger.Info("alertworker started")
	return g.Wait()
}

func (w *Worker) Shutdown() {
	w.logger.Info("alertworker shutting down")
	w.close()
}
