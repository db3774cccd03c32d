package models

import "time"

// Invitation gates registration: every user after the first must redeem a
// valid, unexpired code. Codes are single use.
type Invitation struct {
	Code      string     `gorm:"primaryKey" json:"code"`
	Email     string     `json:"email,omitempty"`
	CreatedBy string     `gorm:"type:uuid" json:"created_by"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	ExpiresAt time.Time  `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// Usable reports whether the invitation can still be redeemed at the given time.
func (i *Invitation) Usable(now time.Time) bool {
	return i.UsedAt == nil && i.ExpiresAt.After(now)
}
