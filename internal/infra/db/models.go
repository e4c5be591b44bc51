package db

import (
	"time"

	"gorm.io/gorm"
)

type userModel struct {
	ID             uint   `gorm:"primaryKey"`
	TelegramUserID int64  `gorm:"uniqueIndex;not null"`
	Username       string `gorm:""`
	IsPremium      bool   `gorm:"not null;default:false"`
	LastAlertSeq   int    `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (userModel) TableName() string { return "users" }

type subscriptionModel struct {
	ID               uint       `gorm:"primaryKey"`
	UserID           *uint      `gorm:"index"`
	Provider         string     `gorm:"size:32;not null"`
	ProviderStatus   string     `gorm:"size:64;not null"`
	StatusInternal   string     `gorm:"size:32;not null"`
	ProviderRef      *string    `gorm:"size:128;index:idx_subscriptions_provider_ref"`
	CurrentPeriodEnd *time.Time `gorm:"index:idx_subscriptions_current_period_end"`
	CreatedAt        time.Time
}

func (subscriptionModel) TableName() string { return "subscriptions" }

type alertModel struct {
	ID              uint       `gorm:"primaryKey"`
	UserID          uint       `gorm:"not null;uniqueIndex:uniq_alerts_user_seq,priority:1"`
	UserSeq         *int       `gorm:"uniqueIndex:uniq_alerts_user_seq,priority:2"`
	Enabled         bool       `gorm:"not null;index:idx_alerts_enabled_symbol,priority:1"`
	Symbol          string     `gorm:"size:32;not null;index:idx_alerts_enabled_symbol,priority:2"`
	Rule            string     `gorm:"size:32;not null"`
	Value           string     `gorm:"type:text;not null"`
	CooldownSeconds int        `gorm:"not null;default:900"`
	LastFiredAt     *time.Time `gorm:""`
	ExpiresAt       *time.Time `gorm:""`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (alertModel) TableName() string { return "alerts" }

type leaseModel struct {
	Name      string    `gorm:"primaryKey;size:64"`
	Owner     string    `gorm:"size:128;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

func (leaseModel) TableName() string { return "scheduler_leases" }

type schemaMigrationModel struct {
	Version   int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"size:128;not null"`
	AppliedAt time.Time
}

func (schemaMigrationModel) TableName() string { return "schema_migrations" }
