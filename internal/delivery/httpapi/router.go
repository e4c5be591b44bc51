package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type CycleTrigger interface {
	RunOnce(ctx context.Context) (domain.CycleReport, error)
}

type StatsService interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (domain.AlertStats, error)
}

// NewRouter mounts the worker's ops endpoints. The cron trigger is only mounted when secret is set.
func NewRouter(h *Handler, metrics http.Handler, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Get("/stats", h.handleStats)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	if h.secret != "" {
		r.Get("/cron", h.handleCron)
		r.Post("/cron", h.handleCron)
	}

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(started)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
