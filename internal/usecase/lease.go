package usecase

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"github.com/google/uuid"
)

var ErrLeaseHeld = errors.New("scheduler lease held by another instance")

// LeaderLease keeps at most one scheduler instance evaluating at a time.
type LeaderLease struct {
	repo  domain.LeaseRepository
	name  string
	owner string
	ttl   time.Duration
	now   func() time.Time
}

func NewLeaderLease(repo domain.LeaseRepository, name string, ttl time.Duration) *LeaderLease {
	return &LeaderLease{
		repo:  repo,
		name:  name,
		owner: NewOwnerToken(),
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func NewOwnerToken() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return host + "-" + uuid.NewString()
}

func (l *LeaderLease) Owner() string {
	return l.owner
}

// Acquire takes the lease or extends it when already held by this instance.
func (l *LeaderLease) Acquire(ctx context.Context) (bool, error) {
	return l.repo.TryAcquire(ctx, l.name, l.owner, l.ttl, l.now())
}

func (l *LeaderLease) Release(ctx context.Context) error {
	return l.repo.Release(ctx, l.name, l.owner)
}
