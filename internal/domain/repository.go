package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrQuotaExceeded = errors.New("alert quota exceeded")
)

// Unlimited disables the enabled-alert cap passed to AlertRepository writes.
const Unlimited = -1

type UserRepository interface {
	GetByTelegramID(ctx context.Context, telegramUserID int64) (*User, error)
	GetByID(ctx context.Context, userID uint) (*User, error)
	Create(ctx context.Context, user *User) error
	List(ctx context.Context) ([]User, error)
	SetPremiumFlag(ctx context.Context, userID uint, premium bool) error
}

type SubscriptionRepository interface {
	LatestForUser(ctx context.Context, userID uint) (*Subscription, error)
	LatestByUser(ctx context.Context) (map[uint]Subscription, error)
}

type AlertRepository interface {
	// Create assigns UserSeq and fails with ErrQuotaExceeded when the owner already has
	// maxEnabled enabled alerts.
	Create(ctx context.Context, alert *Alert, maxEnabled int) error
	ListByUser(ctx context.Context, userID uint) ([]Alert, error)
	GetBySeq(ctx context.Context, userID uint, seq int) (*Alert, error)
	SetEnabled(ctx context.Context, userID uint, seq int, enabled bool, maxEnabled int) error
	DeleteBySeq(ctx context.Context, userID uint, seq int) error
	CountEnabled(ctx context.Context, userID uint) (int64, error)
	ListDue(ctx context.Context, now time.Time) ([]DueAlert, error)
	// RecordFire re-checks eligibility under a row lock and stamps last_fired_at.
	// It reports false when the alert is no longer eligible at now.
	RecordFire(ctx context.Context, alertID uint, now time.Time) (bool, error)
}

type LeaseRepository interface {
	TryAcquire(ctx context.Context, name, owner string, ttl time.Duration, now time.Time) (bool, error)
	Release(ctx context.Context, name, owner string) error
}

type StatsRepository interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context, now time.Time) (AlertStats, error)
}
