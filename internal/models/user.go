package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role describes the access level granted to a user.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// User describes an account able to upload videos and manage tracking links.
// The first registered user becomes the owner.
type User struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Name         string `json:"name,omitempty"`
	Role         Role   `gorm:"not null;default:member" json:"role"`

	Videos    []Video    `gorm:"foreignKey:UserID" json:"-"`
	APITokens []APIToken `gorm:"foreignKey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// CanInvite reports whether the user may create invitations.
func (u *User) CanInvite() bool {
	return u.Role == RoleOwner || u.Role == RoleAdmin
}
