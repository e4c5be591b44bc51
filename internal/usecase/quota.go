package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
)

// QuotaGate decides how many enabled alerts a user may hold. Premium status is derived from the
// latest subscription row at call time; the cached users.is_premium flag is never consulted.
type QuotaGate struct {
	subs      domain.SubscriptionRepository
	alerts    domain.AlertRepository
	freeLimit int
	isAdmin   func(telegramUserID int64) bool
	now       func() time.Time
}

func NewQuotaGate(subs domain.SubscriptionRepository, alerts domain.AlertRepository, freeLimit int, isAdmin func(int64) bool) *QuotaGate {
	if isAdmin == nil {
		isAdmin = func(int64) bool { return false }
	}
	return &QuotaGate{
		subs:      subs,
		alerts:    alerts,
		freeLimit: freeLimit,
		isAdmin:   isAdmin,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (g *QuotaGate) Tier(ctx context.Context, user *domain.User) (domain.Tier, *domain.Subscription, error) {
	if g.isAdmin(user.TelegramUserID) {
		return domain.TierAdmin, nil, nil
	}
	sub, err := g.subs.LatestForUser(ctx, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TierFree, nil, nil
		}
		return "", nil, err
	}
	if domain.EffectivePremium(sub, g.now()) {
		return domain.TierPremium, sub, nil
	}
	return domain.TierFree, sub, nil
}

// MaxEnabled is the cap handed to the store, or domain.Unlimited.
func (g *QuotaGate) MaxEnabled(ctx context.Context, user *domain.User) (int, error) {
	tier, _, err := g.Tier(ctx, user)
	if err != nil {
		return 0, err
	}
	if tier != domain.TierFree {
		return domain.Unlimited, nil
	}
	return g.freeLimit, nil
}

func (g *QuotaGate) Plan(ctx context.Context, user *domain.User) (domain.Plan, error) {
	tier, sub, err := g.Tier(ctx, user)
	if err != nil {
		return domain.Plan{}, err
	}
	enabled, err := g.alerts.CountEnabled(ctx, user.ID)
	if err != nil {
		return domain.Plan{}, err
	}
	plan := domain.Plan{Tier: tier, FreeLimit: g.freeLimit, EnabledCount: enabled}
	if sub != nil {
		plan.PeriodEnd = sub.CurrentPeriodEnd
	}
	return plan, nil
}

func (g *QuotaGate) IsWithinQuota(ctx context.Context, user *domain.User) (bool, error) {
	plan, err := g.Plan(ctx, user)
	if err != nil {
		return false, err
	}
	return plan.AllowsAnother(), nil
}
