package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/siduri/siduri/internal/models"
)

// DefaultInviteExpiry is how long a newly created invitation stays usable.
const DefaultInviteExpiry = 7 * 24 * time.Hour

// InviteService creates and lists invitation codes. Only owners and admins
// may invite; the caller enforces that via models.User.CanInvite.
type InviteService struct {
	db     *gorm.DB
	expiry time.Duration
	now    func() time.Time
}

// InviteOption customises the InviteService.
type InviteOption func(*InviteService)

// WithInviteClock injects a custom clock, primarily for testing.
func WithInviteClock(now func() time.Time) InviteOption {
	return func(s *InviteService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithInviteExpiry overrides the invitation lifetime.
func WithInviteExpiry(d time.Duration) InviteOption {
	return func(s *InviteService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// NewInviteService constructs an InviteService.
func NewInviteService(db *gorm.DB, opts ...InviteOption) (*InviteService, error) {
	if db == nil {
		return nil, errors.New("invite service: db is required")
	}

	service := &InviteService{
		db:     db,
		expiry: DefaultInviteExpiry,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create issues a new invitation. Email may be empty for an open invitation
// that any address can redeem. A non-positive ttl falls back to the service
// default.
func (s *InviteService) Create(ctx context.Context, creator *models.User, email string, ttl time.Duration) (*models.Invitation, error) {
	if creator == nil {
		return nil, errors.New("invite service: creator is required")
	}
	if !creator.CanInvite() {
		return nil, ErrNotOwner
	}

	if ttl <= 0 {
		ttl = s.expiry
	}

	invitation := &models.Invitation{
		Code:      uuid.NewString(),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		CreatedBy: creator.ID,
		ExpiresAt: s.now().Add(ttl),
	}

	if err := s.db.WithContext(ctx).Create(invitation).Error; err != nil {
		return nil, fmt.Errorf("invite service: create invitation: %w", err)
	}
	return invitation, nil
}

// List returns all invitations, newest first.
func (s *InviteService) List(ctx context.Context, caller *models.User) ([]models.Invitation, error) {
	if caller == nil || !caller.CanInvite() {
		return nil, ErrNotOwner
	}

	var invitations []models.Invitation
	err := s.db.WithContext(ctx).
		Order("expires_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, fmt.Errorf("invite service: list invitations: %w", err)
	}
	return invitations, nil
}
