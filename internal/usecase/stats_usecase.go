package usecase

import (
	"context"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
)

type StatsUsecase struct {
	stats   domain.StatsRepository
	users   domain.UserRepository
	subs    domain.SubscriptionRepository
	isAdmin func(int64) bool
	now     func() time.Time
}

func NewStatsUsecase(stats domain.StatsRepository, users domain.UserRepository, subs domain.SubscriptionRepository, isAdmin func(int64) bool) *StatsUsecase {
	if isAdmin == nil {
		isAdmin = func(int64) bool { return false }
	}
	return &StatsUsecase{
		stats:   stats,
		users:   users,
		subs:    subs,
		isAdmin: isAdmin,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (u *StatsUsecase) Ping(ctx context.Context) error {
	return u.stats.Ping(ctx)
}

// Stats counts premium users by effective status rather than the cached flag.
func (u *StatsUsecase) Stats(ctx context.Context) (domain.AlertStats, error) {
	now := u.now()
	stats, err := u.stats.Stats(ctx, now)
	if err != nil {
		return domain.AlertStats{}, err
	}

	users, err := u.users.List(ctx)
	if err != nil {
		return domain.AlertStats{}, err
	}
	latest, err := u.subs.LatestByUser(ctx)
	if err != nil {
		return domain.AlertStats{}, err
	}
	for _, user := range users {
		if u.isAdmin(user.TelegramUserID) {
			stats.PremiumUsers++
			continue
		}
		if sub, ok := latest[user.ID]; ok && domain.EffectivePremium(&sub, now) {
			stats.PremiumUsers++
		}
	}
	return stats, nil
}
