package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"go.uber.org/zap"
)

type CycleRunner interface {
	RunCycle(ctx context.Context) (domain.CycleReport, error)
}

type CycleObserver interface {
	ObserveCycle(report domain.CycleReport, err error)
	SetLeader(leader bool)
}

type noopObserver struct{}

func (noopObserver) ObserveCycle(domain.CycleReport, error) {}
func (noopObserver) SetLeader(bool)                         {}

// Scheduler runs one cycle per interval while this instance holds the leader lease.
// Cycles never overlap: a cycle that overruns the interval is followed by exactly one immediate run.
type Scheduler struct {
	engine   CycleRunner
	lease    *LeaderLease
	interval time.Duration
	observer CycleObserver
	logger   *zap.Logger

	mu sync.Mutex
}

func NewScheduler(engine CycleRunner, lease *LeaderLease, interval time.Duration, observer CycleObserver, logger *zap.Logger) *Scheduler {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Scheduler{
		engine:   engine,
		lease:    lease,
		interval: interval,
		observer: observer,
		logger:   logger,
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval), zap.String("owner", s.lease.Owner()))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.shutdown(ctx)
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// RunOnce runs a single cycle on demand, honouring the lease.
func (s *Scheduler) RunOnce(ctx context.Context) (domain.CycleReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	leader, err := s.lease.Acquire(ctx)
	if err != nil {
		return domain.CycleReport{}, fmt.Errorf("%w: acquire lease: %v", ErrStoreUnavailable, err)
	}
	s.observer.SetLeader(leader)
	if !leader {
		return domain.CycleReport{}, ErrLeaseHeld
	}

	report, err := s.engine.RunCycle(ctx)
	s.observer.ObserveCycle(report, err)
	return report, err
}

func (s *Scheduler) tick(ctx context.Context) {
	report, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrLeaseHeld):
		s.logger.Debug("not leader, skipping cycle")
	case errors.Is(err, context.Canceled):
		s.logger.Info("cycle interrupted by shutdown", zap.Int("fired", report.Fired))
	case err != nil:
		s.logger.Error("cycle failed", zap.Error(err))
	default:
		s.logger.Info("cycle completed",
			zap.Int("symbols", report.Symbols),
			zap.Int("evaluated", report.Evaluated),
			zap.Int("skipped", report.Skipped),
			zap.Int("fired", report.Fired),
			zap.Int("dispatch_failed", report.DispatchFailed),
			zap.Int("invalid", report.Invalid),
			zap.Duration("duration", report.Duration),
		)
	}
}

func (s *Scheduler) shutdown(ctx context.Context) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lease.Release(releaseCtx); err != nil {
		s.logger.Warn("release scheduler lease failed", zap.Error(err))
	}
	s.observer.SetLeader(false)
	s.logger.Info("scheduler stopped")
}
