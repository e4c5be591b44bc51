package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaseAcquireContentionAndExpiry(t *testing.T) {
	repo := NewLeaseRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ttl := 3 * time.Minute

	acquired, err := repo.TryAcquire(ctx, "alert-scheduler", "worker-a", ttl, now)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = repo.TryAcquire(ctx, "alert-scheduler", "worker-b", ttl, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, acquired)

	// Renewal by the holder pushes the expiry forward.
	acquired, err = repo.TryAcquire(ctx, "alert-scheduler", "worker-a", ttl, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = repo.TryAcquire(ctx, "alert-scheduler", "worker-b", ttl, now.Add(4*time.Minute))
	require.NoError(t, err)
	assert.False(t, acquired)

	acquired, err = repo.TryAcquire(ctx, "alert-scheduler", "worker-b", ttl, now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.True(t, acquired)

	owner, expiresAt, err := repo.Holder(ctx, "alert-scheduler")
	require.NoError(t, err)
	assert.Equal(t, "worker-b", owner)
	assert.True(t, now.Add(8*time.Minute).Equal(expiresAt))
}

func TestLeaseRelease(t *testing.T) {
	repo := NewLeaseRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	acquired, err := repo.TryAcquire(ctx, "alert-scheduler", "worker-a", time.Hour, now)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, repo.Release(ctx, "alert-scheduler", "worker-b"))
	owner, _, err := repo.Holder(ctx, "alert-scheduler")
	require.NoError(t, err)
	assert.Equal(t, "worker-a", owner)

	require.NoError(t, repo.Release(ctx, "alert-scheduler", "worker-a"))
	owner, _, err = repo.Holder(ctx, "alert-scheduler")
	require.NoError(t, err)
	assert.Empty(t, owner)

	acquired, err = repo.TryAcquire(ctx, "alert-scheduler", "worker-b", time.Hour, now)
	require.NoError(t, err)
	assert.True(t, acquired)
}
