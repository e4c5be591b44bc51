package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPremiumSyncFollowsEffectiveStatus(t *testing.T) {
	ctx := context.Background()
	users := newMemUsers()
	subs := &memSubs{}
	now := time.Now().UTC()
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Hour)

	active := &domain.User{TelegramUserID: 1}
	lapsed := &domain.User{TelegramUserID: 2, IsPremium: true}
	admin := &domain.User{TelegramUserID: 3}
	free := &domain.User{TelegramUserID: 4}
	for _, user := range []*domain.User{active, lapsed, admin, free} {
		require.NoError(t, users.Create(ctx, user))
	}
	subs.add(domain.Subscription{UserID: active.ID, StatusInternal: domain.SubscriptionActive, CurrentPeriodEnd: &future})
	subs.add(domain.Subscription{UserID: lapsed.ID, StatusInternal: domain.SubscriptionActive, CurrentPeriodEnd: &future})
	subs.add(domain.Subscription{UserID: lapsed.ID, StatusInternal: domain.SubscriptionCancelAtPeriodEnd, CurrentPeriodEnd: &past})

	syncer := NewPremiumSync(users, subs, func(id int64) bool { return id == 3 }, zap.NewNop())
	changed, err := syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, changed)

	flags := map[int64]bool{}
	all, err := users.List(ctx)
	require.NoError(t, err)
	for _, user := range all {
		flags[user.TelegramUserID] = user.IsPremium
	}
	assert.Equal(t, map[int64]bool{1: true, 2: false, 3: true, 4: false}, flags)

	changed, err = syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestPremiumSyncPropagatesStoreErrors(t *testing.T) {
	users := newMemUsers()
	require.NoError(t, users.Create(context.Background(), &domain.User{TelegramUserID: 1}))

	_, err := NewPremiumSync(users, &memSubs{err: errBoom}, nil, zap.NewNop()).Sync(context.Background())
	assert.ErrorIs(t, err, errBoom)
}

type fakeStatsRepo struct {
	stats domain.AlertStats
	err   error
}

func (r *fakeStatsRepo) Ping(context.Context) error { return r.err }

func (r *fakeStatsRepo) Stats(context.Context, time.Time) (domain.AlertStats, error) {
	return r.stats, r.err
}

func TestStatsCountsEffectivePremiumUsers(t *testing.T) {
	ctx := context.Background()
	users := newMemUsers()
	subs := &memSubs{}
	past := time.Now().UTC().Add(-time.Hour)

	paying := &domain.User{TelegramUserID: 1}
	expired := &domain.User{TelegramUserID: 2, IsPremium: true}
	admin := &domain.User{TelegramUserID: 3}
	for _, user := range []*domain.User{paying, expired, admin} {
		require.NoError(t, users.Create(ctx, user))
	}
	subs.add(domain.Subscription{UserID: paying.ID, StatusInternal: domain.SubscriptionActive})
	subs.add(domain.Subscription{UserID: expired.ID, StatusInternal: domain.SubscriptionActive, CurrentPeriodEnd: &past})

	repo := &fakeStatsRepo{stats: domain.AlertStats{Users: 3, ActiveAlerts: 7, ActiveSubscriptions: 1}}
	uc := NewStatsUsecase(repo, users, subs, func(id int64) bool { return id == 3 })

	stats, err := uc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStats{Users: 3, PremiumUsers: 2, ActiveAlerts: 7, ActiveSubscriptions: 1}, stats)
	require.NoError(t, uc.Ping(ctx))

	repo.err = errBoom
	_, err = uc.Stats(ctx)
	assert.ErrorIs(t, err, errBoom)
}
