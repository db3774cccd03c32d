package models

import "time"

// RevokedToken blacklists a session token's jti until the token would have
// expired on its own, at which point the row becomes prunable.
type RevokedToken struct {
	JTI       string    `gorm:"primaryKey;column:jti" json:"jti"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
}
