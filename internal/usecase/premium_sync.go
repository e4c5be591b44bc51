package usecase

import (
	"context"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"go.uber.org/zap"
)

// PremiumSync refreshes the cached users.is_premium flag from effective subscription status.
// Quota decisions never read the flag; it only feeds reporting.
type PremiumSync struct {
	users   domain.UserRepository
	subs    domain.SubscriptionRepository
	isAdmin func(int64) bool
	logger  *zap.Logger
	now     func() time.Time
}

func NewPremiumSync(users domain.UserRepository, subs domain.SubscriptionRepository, isAdmin func(int64) bool, logger *zap.Logger) *PremiumSync {
	if isAdmin == nil {
		isAdmin = func(int64) bool { return false }
	}
	return &PremiumSync{
		users:   users,
		subs:    subs,
		isAdmin: isAdmin,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Sync returns how many users had their flag changed.
func (s *PremiumSync) Sync(ctx context.Context) (int, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return 0, err
	}
	latest, err := s.subs.LatestByUser(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	changed := 0
	for _, user := range users {
		premium := s.isAdmin(user.TelegramUserID)
		if sub, ok := latest[user.ID]; ok && !premium {
			premium = domain.EffectivePremium(&sub, now)
		}
		if premium == user.IsPremium {
			continue
		}
		if err := s.users.SetPremiumFlag(ctx, user.ID, premium); err != nil {
			return changed, err
		}
		changed++
		s.logger.Info("premium flag updated",
			zap.Int64("telegram_user_id", user.TelegramUserID),
			zap.Bool("premium", premium),
		)
	}
	return changed, nil
}

// Run adapts Sync to a cron job.
func (s *PremiumSync) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	changed, err := s.Sync(ctx)
	if err != nil {
		s.logger.Error("premium sync failed", zap.Error(err))
		return
	}
	s.logger.Debug("premium sync finished", zap.Int("changed", changed))
}
