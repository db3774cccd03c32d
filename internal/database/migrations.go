package database

import (
	"gorm.io/gorm"

	"github.com/siduri/siduri/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Invitation{},
		&models.LoginAttempt{},
		&models.RevokedToken{},
		&models.APIToken{},
		&models.PasswordResetToken{},
		&models.Video{},
		&models.View{},
		&models.NotificationSetting{},
	)
}
