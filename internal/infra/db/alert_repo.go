package db

import (
	"context"
	"errors"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AlertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert, maxEnabled int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner, err := lockUser(tx, alert.UserID)
		if err != nil {
			return err
		}
		if alert.Enabled {
			if err := checkQuota(tx, owner.ID, maxEnabled); err != nil {
				return err
			}
		}

		var maxSeq int
		if err := tx.Model(&alertModel{}).Select("COALESCE(MAX(user_seq), 0)").Where("user_id = ?", owner.ID).Row().Scan(&maxSeq); err != nil {
			return err
		}
		seq := max(owner.LastAlertSeq, maxSeq) + 1

		model := mapAlertToModel(*alert)
		model.UserSeq = &seq
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if err := tx.Model(&userModel{}).Where("id = ?", owner.ID).UpdateColumn("last_alert_seq", seq).Error; err != nil {
			return err
		}

		*alert = mapAlertToDomain(model)
		return nil
	})
}

func (r *AlertRepository) ListByUser(ctx context.Context, userID uint) ([]domain.Alert, error) {
	var models []alertModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("user_seq").Find(&models).Error; err != nil {
		return nil, err
	}
	return mapAlertsToDomain(models), nil
}

func (r *AlertRepository) GetBySeq(ctx context.Context, userID uint, seq int) (*domain.Alert, error) {
	var model alertModel
	if err := r.db.WithContext(ctx).Where("user_id = ? AND user_seq = ?", userID, seq).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	alert := mapAlertToDomain(model)
	return &alert, nil
}

func (r *AlertRepository) SetEnabled(ctx context.Context, userID uint, seq int, enabled bool, maxEnabled int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockUser(tx, userID); err != nil {
			return err
		}
		var model alertModel
		if err := tx.Where("user_id = ? AND user_seq = ?", userID, seq).Take(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if model.Enabled == enabled {
			return nil
		}
		if enabled {
			if err := checkQuota(tx, userID, maxEnabled); err != nil {
				return err
			}
		}
		return tx.Model(&alertModel{}).Where("id = ?", model.ID).Update("enabled", enabled).Error
	})
}

func (r *AlertRepository) DeleteBySeq(ctx context.Context, userID uint, seq int) error {
	result := r.db.WithContext(ctx).Where("user_id = ? AND user_seq = ?", userID, seq).Delete(&alertModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AlertRepository) CountEnabled(ctx context.Context, userID uint) (int64, error) {
	return countEnabled(r.db.WithContext(ctx), userID, time.Now().UTC())
}

type dueAlertRow struct {
	alertModel
	TelegramUserID int64
}

func (r *AlertRepository) ListDue(ctx context.Context, now time.Time) ([]domain.DueAlert, error) {
	var rows []dueAlertRow
	err := r.db.WithContext(ctx).
		Table("alerts").
		Select("alerts.*, users.telegram_user_id").
		Joins("JOIN users ON users.id = alerts.user_id AND users.deleted_at IS NULL").
		Where("alerts.enabled = ?", true).
		Where("alerts.expires_at IS NULL OR alerts.expires_at > ?", now).
		Order("alerts.symbol, alerts.id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	due := make([]domain.DueAlert, 0, len(rows))
	for _, row := range rows {
		due = append(due, domain.DueAlert{Alert: mapAlertToDomain(row.alertModel), TelegramUserID: row.TelegramUserID})
	}
	return due, nil
}

func (r *AlertRepository) RecordFire(ctx context.Context, alertID uint, now time.Time) (bool, error) {
	fired := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model alertModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&model, alertID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		alert := mapAlertToDomain(model)
		if !alert.Active(now) || !domain.CooldownEligible(alert.LastFiredAt, alert.Cooldown(), now) {
			return nil
		}

		// The guard repeats the eligibility check so the update stays safe on engines without row locks.
		cutoff := now.Add(-alert.Cooldown())
		result := tx.Model(&alertModel{}).
			Where("id = ? AND enabled = ?", alertID, true).
			Where("last_fired_at IS NULL OR last_fired_at <= ?", cutoff).
			UpdateColumn("last_fired_at", now)
		if result.Error != nil {
			return result.Error
		}
		fired = result.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return fired, nil
}

func lockUser(tx *gorm.DB, userID uint) (*userModel, error) {
	var owner userModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&owner, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &owner, nil
}

func checkQuota(tx *gorm.DB, userID uint, maxEnabled int) error {
	if maxEnabled < 0 {
		return nil
	}
	enabled, err := countEnabled(tx, userID, time.Now().UTC())
	if err != nil {
		return err
	}
	if enabled >= int64(maxEnabled) {
		return domain.ErrQuotaExceeded
	}
	return nil
}

func countEnabled(tx *gorm.DB, userID uint, now time.Time) (int64, error) {
	var count int64
	err := tx.Model(&alertModel{}).
		Where("user_id = ? AND enabled = ?", userID, true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Count(&count).Error
	return count, err
}

func mapAlertsToDomain(models []alertModel) []domain.Alert {
	alerts := make([]domain.Alert, 0, len(models))
	for _, model := range models {
		alerts = append(alerts, mapAlertToDomain(model))
	}
	return alerts
}

func mapAlertToDomain(model alertModel) domain.Alert {
	alert := domain.Alert{
		ID:              model.ID,
		UserID:          model.UserID,
		Symbol:          model.Symbol,
		Rule:            domain.RuleKind(model.Rule),
		Value:           model.Value,
		Enabled:         model.Enabled,
		CooldownSeconds: model.CooldownSeconds,
		LastFiredAt:     utcPtr(model.LastFiredAt),
		ExpiresAt:       utcPtr(model.ExpiresAt),
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
	if model.UserSeq != nil {
		alert.UserSeq = *model.UserSeq
	}
	return alert
}

func mapAlertToModel(alert domain.Alert) alertModel {
	return alertModel{
		ID:              alert.ID,
		UserID:          alert.UserID,
		Enabled:         alert.Enabled,
		Symbol:          alert.Symbol,
		Rule:            string(alert.Rule),
		Value:           alert.Value,
		CooldownSeconds: alert.CooldownSeconds,
		LastFiredAt:     utcPtr(alert.LastFiredAt),
		ExpiresAt:       utcPtr(alert.ExpiresAt),
		CreatedAt:       alert.CreatedAt,
		UpdatedAt:       alert.UpdatedAt,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
