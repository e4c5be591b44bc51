package db

import (
	"context"
	"errors"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"gorm.io/gorm"
)

// SubscriptionRepository is the engine's read path into billing state; billing webhooks own the writes.
type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) LatestForUser(ctx context.Context, userID uint) (*domain.Subscription, error) {
	var model subscriptionModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	sub := mapSubscriptionToDomain(model)
	return &sub, nil
}

func (r *SubscriptionRepository) LatestByUser(ctx context.Context) (map[uint]domain.Subscription, error) {
	var models []subscriptionModel
	latest := r.db.Model(&subscriptionModel{}).Select("MAX(id)").Where("user_id IS NOT NULL").Group("user_id")
	if err := r.db.WithContext(ctx).Where("id IN (?)", latest).Find(&models).Error; err != nil {
		return nil, err
	}
	subs := make(map[uint]domain.Subscription, len(models))
	for _, model := range models {
		sub := mapSubscriptionToDomain(model)
		subs[sub.UserID] = sub
	}
	return subs, nil
}

func mapSubscriptionToDomain(model subscriptionModel) domain.Subscription {
	sub := domain.Subscription{
		ID:               model.ID,
		Provider:         model.Provider,
		ProviderStatus:   model.ProviderStatus,
		StatusInternal:   domain.ParseSubscriptionStatus(model.StatusInternal),
		CurrentPeriodEnd: utcPtr(model.CurrentPeriodEnd),
		CreatedAt:        model.CreatedAt,
	}
	if model.UserID != nil {
		sub.UserID = *model.UserID
	}
	if model.ProviderRef != nil {
		sub.ProviderRef = *model.ProviderRef
	}
	return sub
}
