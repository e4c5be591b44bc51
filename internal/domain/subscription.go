package domain

import "time"

type SubscriptionStatus string

const (
	SubscriptionActive            SubscriptionStatus = "ACTIVE"
	SubscriptionCancelAtPeriodEnd SubscriptionStatus = "CANCEL_AT_PERIOD_END"
	SubscriptionCancelled         SubscriptionStatus = "CANCELLED"
	SubscriptionUnknown           SubscriptionStatus = "UNKNOWN"
)

func ParseSubscriptionStatus(raw string) SubscriptionStatus {
	switch SubscriptionStatus(raw) {
	case SubscriptionActive, SubscriptionCancelAtPeriodEnd, SubscriptionCancelled:
		return SubscriptionStatus(raw)
	default:
		return SubscriptionUnknown
	}
}

type Subscription struct {
	ID               uint
	UserID           uint
	Provider         string
	ProviderStatus   string
	StatusInternal   SubscriptionStatus
	ProviderRef      string
	CurrentPeriodEnd *time.Time
	CreatedAt        time.Time
}
