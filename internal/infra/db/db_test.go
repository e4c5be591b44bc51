package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "alerts.db")), NewGormConfig(zap.NewNop()))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := openTestDB(t)
	require.NoError(t, Migrate(db, zap.NewNop()))
	return db
}

func createUser(t *testing.T, db *gorm.DB, telegramID int64) *domain.User {
	t.Helper()
	user := &domain.User{TelegramUserID: telegramID, Username: "trader"}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), user))
	return user
}
