package db

import (
	"context"
	"testing"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func insertSubscription(t *testing.T, db *gorm.DB, userID uint, status domain.SubscriptionStatus, periodEnd *time.Time, ref string) {
	t.Helper()
	model := subscriptionModel{
		UserID:           &userID,
		Provider:         "stripe",
		ProviderStatus:   "active",
		StatusInternal:   string(status),
		CurrentPeriodEnd: periodEnd,
	}
	if ref != "" {
		model.ProviderRef = &ref
	}
	require.NoError(t, db.Create(&model).Error)
}

func TestSubscriptionLatest(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()
	alice := createUser(t, db, 100)
	bob := createUser(t, db, 200)
	carol := createUser(t, db, 300)
	end := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	insertSubscription(t, db, alice.ID, domain.SubscriptionActive, &end, "sub_1")
	insertSubscription(t, db, alice.ID, domain.SubscriptionCancelled, nil, "sub_1")
	insertSubscription(t, db, bob.ID, domain.SubscriptionCancelAtPeriodEnd, &end, "sub_2")

	latest, err := repo.LatestForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionCancelled, latest.StatusInternal)
	assert.Equal(t, "sub_1", latest.ProviderRef)

	_, err = repo.LatestForUser(ctx, carol.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	all, err := repo.LatestByUser(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.SubscriptionCancelled, all[alice.ID].StatusInternal)
	assert.Equal(t, domain.SubscriptionCancelAtPeriodEnd, all[bob.ID].StatusInternal)
	require.NotNil(t, all[bob.ID].CurrentPeriodEnd)
	assert.True(t, end.Equal(*all[bob.ID].CurrentPeriodEnd))
}

func TestStatsAndPremiumFlag(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	alice := createUser(t, db, 100)
	bob := createUser(t, db, 200)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Hour)

	insertSubscription(t, db, alice.ID, domain.SubscriptionActive, &future, "")
	insertSubscription(t, db, bob.ID, domain.SubscriptionActive, &past, "")
	alerts := NewAlertRepository(db)
	require.NoError(t, alerts.Create(ctx, newAlert(alice.ID, "BTCUSDT", domain.RulePriceAbove, "1"), domain.Unlimited))
	require.NoError(t, alerts.Create(ctx, newAlert(bob.ID, "BTCUSDT", domain.RulePriceAbove, "1"), domain.Unlimited))
	require.NoError(t, alerts.SetEnabled(ctx, bob.ID, 1, false, domain.Unlimited))

	statsRepo := NewStatsRepository(db)
	require.NoError(t, statsRepo.Ping(ctx))
	stats, err := statsRepo.Stats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStats{Users: 2, ActiveAlerts: 1, ActiveSubscriptions: 1}, stats)

	users := NewUserRepository(db)
	require.NoError(t, users.SetPremiumFlag(ctx, alice.ID, true))
	got, err := users.GetByTelegramID(ctx, 100)
	require.NoError(t, err)
	assert.True(t, got.IsPremium)
	assert.ErrorIs(t, users.SetPremiumFlag(ctx, 999, true), domain.ErrNotFound)

	_, err = users.GetByTelegramID(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
