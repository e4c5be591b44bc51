package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingRunner struct {
	runs    atomic.Int32
	running atomic.Int32
	overlap atomic.Bool
	delay   time.Duration
}

func (r *countingRunner) RunCycle(ctx context.Context) (domain.CycleReport, error) {
	if r.running.Add(1) > 1 {
		r.overlap.Store(true)
	}
	defer r.running.Add(-1)
	r.runs.Add(1)
	time.Sleep(r.delay)
	return domain.CycleReport{Fired: 1}, nil
}

type recordingObserver struct {
	mu      sync.Mutex
	cycles  int
	leaders []bool
}

func (o *recordingObserver) ObserveCycle(domain.CycleReport, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cycles++
}

func (o *recordingObserver) SetLeader(leader bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.leaders = append(o.leaders, leader)
}

func TestRunOnceRequiresLease(t *testing.T) {
	leases := &memLeases{}
	runner := &countingRunner{}
	observer := &recordingObserver{}

	holder := NewLeaderLease(leases, "alert-scheduler", time.Minute)
	acquired, err := holder.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)

	scheduler := NewScheduler(runner, NewLeaderLease(leases, "alert-scheduler", time.Minute), time.Minute, observer, zap.NewNop())
	_, err = scheduler.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrLeaseHeld)
	assert.Equal(t, int32(0), runner.runs.Load())

	require.NoError(t, holder.Release(context.Background()))
	report, err := scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fired)
	assert.Equal(t, []bool{false, true}, observer.leaders)
	assert.Equal(t, 1, observer.cycles)
}

func TestRunOnceReportsLeaseStoreFailure(t *testing.T) {
	leases := &memLeases{err: errBoom}
	scheduler := NewScheduler(&countingRunner{}, NewLeaderLease(leases, "alert-scheduler", time.Minute), time.Minute, nil, zap.NewNop())

	_, err := scheduler.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestSchedulerRunsUntilCancelledAndReleasesLease(t *testing.T) {
	leases := &memLeases{}
	runner := &countingRunner{delay: 5 * time.Millisecond}
	observer := &recordingObserver{}
	lease := NewLeaderLease(leases, "alert-scheduler", time.Minute)
	scheduler := NewScheduler(runner, lease, 10*time.Millisecond, observer, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	require.Eventually(t, func() bool { return runner.runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, lease.Owner(), leases.holder())

	// On-demand runs share the lock with ticks.
	_, err := scheduler.RunOnce(context.Background())
	require.NoError(t, err)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	assert.Empty(t, leases.holder())
	assert.False(t, runner.overlap.Load())
	observer.mu.Lock()
	defer observer.mu.Unlock()
	assert.False(t, observer.leaders[len(observer.leaders)-1])
}

func TestSchedulerFollowerNeverRuns(t *testing.T) {
	leases := &memLeases{}
	leader := NewLeaderLease(leases, "alert-scheduler", time.Hour)
	_, err := leader.Acquire(context.Background())
	require.NoError(t, err)

	runner := &countingRunner{}
	scheduler := NewScheduler(runner, NewLeaderLease(leases, "alert-scheduler", time.Hour), 5*time.Millisecond, nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, scheduler.Run(ctx))

	assert.Equal(t, int32(0), runner.runs.Load())
	assert.Equal(t, leader.Owner(), leases.holder())
}

func TestOwnerTokensAreUnique(t *testing.T) {
	assert.NotEqual(t, NewOwnerToken(), NewOwnerToken())
}
