package db

import (
	"context"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"gorm.io/gorm"
)

type StatsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Stats leaves PremiumUsers unset; it is derived from subscriptions by the caller.
func (r *StatsRepository) Stats(ctx context.Context, now time.Time) (domain.AlertStats, error) {
	var stats domain.AlertStats
	db := r.db.WithContext(ctx)

	if err := db.Model(&userModel{}).Count(&stats.Users).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&alertModel{}).
		Where("enabled = ?", true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Count(&stats.ActiveAlerts).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&subscriptionModel{}).
		Where("status_internal IN ?", []string{string(domain.SubscriptionActive), string(domain.SubscriptionCancelAtPeriodEnd)}).
		Where("current_period_end IS NULL OR current_period_end > ?", now).
		Count(&stats.ActiveSubscriptions).Error; err != nil {
		return stats, err
	}
	return stats, nil
}
