package models

import "time"

// LoginAttempt is an append-only audit record used to compute lockouts.
// Rows older than 24 hours are pruned by housekeeping.
type LoginAttempt struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	Email       string    `gorm:"index;not null" json:"email"`
	AttemptTime time.Time `gorm:"index;not null" json:"attempt_time"`
	Success     bool      `gorm:"not null" json:"success"`
}
