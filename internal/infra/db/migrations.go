package db

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationLockID int64 = 0x616c657274730001

type migration struct {
	version int
	name    string
	up      func(tx *gorm.DB) error
}

// Migrations are additive and idempotent; each runs in its own transaction and is recorded in schema_migrations.
var migrations = []migration{
	{version: 1, name: "create_base_tables", up: createBaseTables},
	{version: 2, name: "alerts_lifecycle_columns", up: addAlertLifecycleColumns},
	{version: 3, name: "alerts_user_seq", up: addAlertUserSeq},
	{version: 4, name: "users_last_alert_seq", up: addUserLastAlertSeq},
	{version: 5, name: "subscriptions_indexes", up: addSubscriptionIndexes},
	{version: 6, name: "scheduler_leases", up: createSchedulerLeases},
}

func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	for _, m := range migrations {
		applied := false
		err := db.Transaction(func(tx *gorm.DB) error {
			if tx.Dialector.Name() == "postgres" {
				if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrationLockID).Error; err != nil {
					return fmt.Errorf("lock migrations: %w", err)
				}
			}
			if !tx.Migrator().HasTable(&schemaMigrationModel{}) {
				if err := tx.Migrator().CreateTable(&schemaMigrationModel{}); err != nil {
					return err
				}
			}
			var count int64
			if err := tx.Model(&schemaMigrationModel{}).Where("version = ?", m.version).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return nil
			}
			if err := m.up(tx); err != nil {
				return err
			}
			applied = true
			return tx.Create(&schemaMigrationModel{Version: m.version, Name: m.name}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %d %s: %w", m.version, m.name, err)
		}
		if applied {
			log.Info("schema migration applied", zap.Int("version", m.version), zap.String("name", m.name))
		}
	}
	return nil
}

func AppliedVersions(db *gorm.DB) ([]int, error) {
	var versions []int
	if err := db.Model(&schemaMigrationModel{}).Order("version").Pluck("version", &versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

func createBaseTables(tx *gorm.DB) error {
	for _, model := range []any{&userModel{}, &subscriptionModel{}, &alertModel{}} {
		if tx.Migrator().HasTable(model) {
			continue
		}
		if err := tx.Migrator().CreateTable(model); err != nil {
			return err
		}
	}
	return addMissingColumns(tx, &userModel{}, "Username", "IsPremium", "CreatedAt", "UpdatedAt", "DeletedAt")
}

func addAlertLifecycleColumns(tx *gorm.DB) error {
	if err := addMissingColumns(tx, &alertModel{}, "Enabled", "CooldownSeconds", "LastFiredAt", "ExpiresAt", "CreatedAt", "UpdatedAt"); err != nil {
		return err
	}
	columnTypes, err := tx.Migrator().ColumnTypes(&alertModel{})
	if err != nil {
		return err
	}
	for _, column := range columnTypes {
		if column.Name() != "value" {
			continue
		}
		typeName := strings.ToLower(column.DatabaseTypeName())
		if !strings.Contains(typeName, "text") && !strings.Contains(typeName, "char") {
			return tx.Migrator().AlterColumn(&alertModel{}, "Value")
		}
	}
	return nil
}

// addAlertUserSeq numbers only rows without a sequence, continuing after each user's highest one,
// so previously shown alert numbers never change.
func addAlertUserSeq(tx *gorm.DB) error {
	if err := addMissingColumns(tx, &alertModel{}, "UserSeq"); err != nil {
		return err
	}

	type pending struct {
		ID     uint
		UserID uint
	}
	var rows []pending
	if err := tx.Model(&alertModel{}).Select("id, user_id").Where("user_seq IS NULL").Order("user_id, id").Scan(&rows).Error; err != nil {
		return err
	}

	next := make(map[uint]int)
	for _, row := range rows {
		seq, ok := next[row.UserID]
		if !ok {
			if err := tx.Model(&alertModel{}).Select("COALESCE(MAX(user_seq), 0)").Where("user_id = ?", row.UserID).Row().Scan(&seq); err != nil {
				return err
			}
		}
		seq++
		next[row.UserID] = seq
		if err := tx.Model(&alertModel{}).Where("id = ?", row.ID).UpdateColumn("user_seq", seq).Error; err != nil {
			return err
		}
	}

	if !tx.Migrator().HasIndex(&alertModel{}, "uniq_alerts_user_seq") {
		return tx.Migrator().CreateIndex(&alertModel{}, "uniq_alerts_user_seq")
	}
	return nil
}

func addUserLastAlertSeq(tx *gorm.DB) error {
	if err := addMissingColumns(tx, &userModel{}, "LastAlertSeq"); err != nil {
		return err
	}
	const maxSeq = "(SELECT COALESCE(MAX(a.user_seq), 0) FROM alerts a WHERE a.user_id = users.id)"
	return tx.Exec("UPDATE users SET last_alert_seq = " + maxSeq + " WHERE last_alert_seq < " + maxSeq).Error
}

func addSubscriptionIndexes(tx *gorm.DB) error {
	if err := addMissingColumns(tx, &subscriptionModel{}, "ProviderRef", "CurrentPeriodEnd"); err != nil {
		return err
	}
	for _, name := range []string{"idx_subscriptions_provider_ref", "idx_subscriptions_current_period_end"} {
		if tx.Migrator().HasIndex(&subscriptionModel{}, name) {
			continue
		}
		if err := tx.Migrator().CreateIndex(&subscriptionModel{}, name); err != nil {
			return err
		}
	}
	return nil
}

func createSchedulerLeases(tx *gorm.DB) error {
	if tx.Migrator().HasTable(&leaseModel{}) {
		return nil
	}
	return tx.Migrator().CreateTable(&leaseModel{})
}

func addMissingColumns(tx *gorm.DB, model any, fields ...string) error {
	for _, field := range fields {
		if tx.Migrator().HasColumn(model, field) {
			continue
		}
		if err := tx.Migrator().AddColumn(model, field); err != nil {
			return fmt.Errorf("add column %s: %w", field, err)
		}
	}
	return nil
}
