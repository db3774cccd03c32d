package models

import "time"

// APIToken tracks a long-lived bearer credential. The row ID doubles as the
// token's jti. Tokens are soft-revoked, never hard-deleted, so the listing
// survives revocation.
type APIToken struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string     `gorm:"type:uuid;not null;index" json:"user_id"`
	Name       string     `gorm:"not null" json:"name"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}
