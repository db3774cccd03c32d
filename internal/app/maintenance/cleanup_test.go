package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/siduri/siduri/internal/models"
)

func openCleanupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.RevokedToken{},
		&models.LoginAttempt{},
		&models.PasswordResetToken{},
		&models.Invitation{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func TestCleanerRunOncePurgesExpiredRecords(t *testing.T) {
	db := openCleanupTestDB(t)
	now := time.Now()
	used := now.Add(-time.Hour)

	seed := []any{
		&models.RevokedToken{JTI: "expired", ExpiresAt: now.Add(-time.Minute)},
		&models.RevokedToken{JTI: "live", ExpiresAt: now.Add(time.Hour)},
		&models.LoginAttempt{Email: "a@example.com", AttemptTime: now.Add(-25 * time.Hour)},
		&models.LoginAttempt{Email: "a@example.com", AttemptTime: now.Add(-time.Hour)},
		&models.PasswordResetToken{UserID: "u1", TokenHash: "h1", ExpiresAt: now.Add(-time.Minute)},
		&models.PasswordResetToken{UserID: "u1", TokenHash: "h2", ExpiresAt: now.Add(time.Hour), UsedAt: &used},
		&models.PasswordResetToken{UserID: "u1", TokenHash: "h3", ExpiresAt: now.Add(time.Hour)},
		&models.Invitation{Code: "stale", CreatedBy: "u1", ExpiresAt: now.Add(-time.Minute)},
		&models.Invitation{Code: "redeemed", CreatedBy: "u1", ExpiresAt: now.Add(time.Hour), UsedAt: &used},
		&models.Invitation{Code: "open", CreatedBy: "u1", ExpiresAt: now.Add(time.Hour)},
	}
	for _, record := range seed {
		require.NoError(t, db.Create(record).Error)
	}

	cleaner := NewCleaner(db, WithNow(func() time.Time { return now }))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var revoked, attempts, resets, invites int64
	require.NoError(t, db.Model(&models.RevokedToken{}).Count(&revoked).Error)
	require.NoError(t, db.Model(&models.LoginAttempt{}).Count(&attempts).Error)
	require.NoError(t, db.Model(&models.PasswordResetToken{}).Count(&resets).Error)
	require.NoError(t, db.Model(&models.Invitation{}).Count(&invites).Error)

	require.Equal(t, int64(1), revoked)
	require.Equal(t, int64(1), attempts)
	require.Equal(t, int64(1), resets)
	require.Equal(t, int64(1), invites)
}

func TestCleanerRunOnceIdempotent(t *testing.T) {
	db := openCleanupTestDB(t)
	cleaner := NewCleaner(db)

	require.NoError(t, cleaner.RunOnce(context.Background()))
	require.NoError(t, cleaner.RunOnce(context.Background()))
}
