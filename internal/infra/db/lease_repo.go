package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LeaseRepository struct {
	db *gorm.DB
}

func NewLeaseRepository(db *gorm.DB) *LeaseRepository {
	return &LeaseRepository{db: db}
}

// TryAcquire takes or extends the named lease for owner until now+ttl.
// It reports false while another owner holds an unexpired lease.
func (r *LeaseRepository) TryAcquire(ctx context.Context, name, owner string, ttl time.Duration, now time.Time) (bool, error) {
	acquired := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lease leaseModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("name = ?", name).Take(&lease).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			lease = leaseModel{Name: name, Owner: owner, ExpiresAt: now.Add(ttl)}
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&lease)
			if result.Error != nil {
				return result.Error
			}
			acquired = result.RowsAffected == 1
			return nil
		}
		if err != nil {
			return err
		}

		result := tx.Model(&leaseModel{}).
			Where("name = ?", name).
			Where("owner = ? OR expires_at <= ?", owner, now).
			Updates(map[string]any{"owner": owner, "expires_at": now.Add(ttl)})
		if result.Error != nil {
			return result.Error
		}
		acquired = result.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return acquired, nil
}

func (r *LeaseRepository) Release(ctx context.Context, name, owner string) error {
	return r.db.WithContext(ctx).Where("name = ? AND owner = ?", name, owner).Delete(&leaseModel{}).Error
}

func (r *LeaseRepository) Holder(ctx context.Context, name string) (string, time.Time, error) {
	var lease leaseModel
	if err := r.db.WithContext(ctx).Where("name = ?", name).Take(&lease).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", time.Time{}, nil
		}
		return "", time.Time{}, err
	}
	return lease.Owner, lease.ExpiresAt.UTC(), nil
}
