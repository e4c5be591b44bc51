package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"github.com/NasaVasa/cryptoalerts/internal/usecase"
	"go.uber.org/zap"
)

type Handler struct {
	trigger CycleTrigger
	stats   StatsService
	secret  string
	logger  *zap.Logger
}

func NewHandler(trigger CycleTrigger, stats StatsService, secret string, logger *zap.Logger) *Handler {
	return &Handler{trigger: trigger, stats: stats, secret: secret, logger: logger}
}

type statsResponse struct {
	Users               int64 `json:"users"`
	PremiumUsers        int64 `json:"premium_users"`
	ActiveAlerts        int64 `json:"active_alerts"`
	ActiveSubscriptions int64 `json:"active_subscriptions"`
}

type cronResponse struct {
	OK bool `json:"ok"`
	domain.CycleReport
	DurationMS int64 `json:"duration_ms"`
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.stats.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		respondWithJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "database unavailable"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		h.logger.Warn("stats failed", zap.Error(err))
		respondWithJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "stats unavailable"})
		return
	}
	respondWithJSON(w, http.StatusOK, statsResponse{
		Users:               stats.Users,
		PremiumUsers:        stats.PremiumUsers,
		ActiveAlerts:        stats.ActiveAlerts,
		ActiveSubscriptions: stats.ActiveSubscriptions,
	})
}

func (h *Handler) handleCron(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		key = r.Header.Get("X-Alerts-Secret")
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(h.secret)) != 1 {
		respondWithJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}

	report, err := h.trigger.RunOnce(r.Context())
	switch {
	case errors.Is(err, usecase.ErrLeaseHeld):
		respondWithJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	case err != nil:
		h.logger.Error("triggered cycle failed", zap.Error(err))
		respondWithJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	respondWithJSON(w, http.StatusOK, cronResponse{OK: true, CycleReport: report, DurationMS: report.Duration.Milliseconds()})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
