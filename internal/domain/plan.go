package domain

import "time"

const DefaultFreeAlertLimit = 3

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierAdmin   Tier = "admin"
)

// EffectivePremium derives premium status from the latest subscription row.
// A cancelled-at-period-end subscription keeps access only while its period end is known and ahead.
func EffectivePremium(sub *Subscription, now time.Time) bool {
	if sub == nil {
		return false
	}
	switch sub.StatusInternal {
	case SubscriptionActive:
		return sub.CurrentPeriodEnd == nil || sub.CurrentPeriodEnd.After(now)
	case SubscriptionCancelAtPeriodEnd:
		return sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.After(now)
	default:
		return false
	}
}

type Plan struct {
	Tier         Tier
	FreeLimit    int
	EnabledCount int64
	PeriodEnd    *time.Time
}

func (p Plan) Unlimited() bool {
	return p.Tier != TierFree
}

// Remaining is -1 for unlimited plans.
func (p Plan) Remaining() int64 {
	if p.Unlimited() {
		return -1
	}
	remaining := int64(p.FreeLimit) - p.EnabledCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (p Plan) AllowsAnother() bool {
	return p.Unlimited() || p.EnabledCount < int64(p.FreeLimit)
}
