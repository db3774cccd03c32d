package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/siduri/siduri/internal/models"
	"github.com/siduri/siduri/pkg/crypto"
)

// MinPasswordLength applies to registration and password resets alike.
const MinPasswordLength = 12

// CredentialConfig defines tunable behaviour for the credential service.
type CredentialConfig struct {
	// AllowedEmailDomains restricts registration when non-empty.
	AllowedEmailDomains []string
	Clock               func() time.Time
}

// RegisterInput captures the details required to register a new user.
type RegisterInput struct {
	Email      string
	Password   string
	Name       string
	InviteCode string
}

// CredentialService implements invitation-gated registration and timing-safe
// password authentication backed by the lockout tracker.
type CredentialService struct {
	db      *gorm.DB
	lockout *LockoutTracker
	domains []string
	now     func() time.Time
}

// NewCredentialService constructs a CredentialService.
func NewCredentialService(db *gorm.DB, lockout *LockoutTracker, cfg CredentialConfig) (*CredentialService, error) {
	if db == nil {
		return nil, errors.New("credential service: db is required")
	}
	if lockout == nil {
		return nil, errors.New("credential service: lockout tracker is required")
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	domains := make([]string, 0, len(cfg.AllowedEmailDomains))
	for _, domain := range cfg.AllowedEmailDomains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain != "" {
			domains = append(domains, domain)
		}
	}

	return &CredentialService{
		db:      db,
		lockout: lockout,
		domains: domains,
		now:     now,
	}, nil
}

// AllowedDomains returns the configured allowlist, empty meaning open registration.
func (s *CredentialService) AllowedDomains() []string {
	return s.domains
}

// IsFirstUser reports whether no account exists yet.
func (s *CredentialService) IsFirstUser(ctx context.Context) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("credential service: count users: %w", err)
	}
	return count == 0, nil
}

// Register validates the input in order (password strength, domain allowlist,
// invitation, duplicate email), creates the user, and consumes the invitation.
// The first user ever registered becomes the owner and needs no invitation.
func (s *CredentialService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	if len(input.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	if !s.emailAllowed(email) {
		return nil, ErrDomainNotAllowed
	}

	first, err := s.IsFirstUser(ctx)
	if err != nil {
		return nil, err
	}

	var invitation *models.Invitation
	if !first {
		if strings.TrimSpace(input.InviteCode) == "" {
			return nil, ErrInvitationRequired
		}
		invitation, err = s.findUsableInvitation(ctx, input.InviteCode, email)
		if err != nil {
			return nil, err
		}
	}

	var existing models.User
	err = s.db.WithContext(ctx).Where("email = ?", email).Take(&existing).Error
	if err == nil {
		return nil, ErrEmailInUse
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("credential service: check existing user: %w", err)
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("credential service: hash password: %w", err)
	}

	role := models.RoleMember
	if first {
		role = models.RoleOwner
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hashed,
		Name:         strings.TrimSpace(input.Name),
		Role:         role,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("credential service: create user: %w", err)
	}

	if invitation != nil {
		now := s.now()
		if err := s.db.WithContext(ctx).
			Model(&models.Invitation{}).
			Where("code = ?", invitation.Code).
			Update("used_at", now).Error; err != nil {
			return nil, fmt.Errorf("credential service: consume invitation: %w", err)
		}
	}

	return user, nil
}

// Authenticate verifies the supplied credentials. The bcrypt comparison runs
// whether or not the account exists so response timing does not reveal which
// emails are registered. Every attempt is recorded for lockout accounting.
func (s *CredentialService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	status, err := s.lockout.Status(ctx, email)
	if err != nil {
		return nil, err
	}
	if status.Locked {
		return nil, &LockedError{RetryAfter: status.Duration}
	}

	var user models.User
	err = s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	userFound := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("credential service: query user: %w", err)
	}

	var valid bool
	if userFound {
		valid = crypto.VerifyPassword(user.PasswordHash, password)
	} else {
		valid = crypto.BurnPasswordCheck(password)
	}

	if !valid || !userFound {
		if recordErr := s.lockout.Record(ctx, email, false); recordErr != nil {
			return nil, recordErr
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.lockout.Record(ctx, email, true); err != nil {
		return nil, err
	}

	return &user, nil
}

func (s *CredentialService) emailAllowed(email string) bool {
	if len(s.domains) == 0 {
		return true
	}

	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]

	for _, allowed := range s.domains {
		if domain == allowed {
			return true
		}
	}
	return false
}

func (s *CredentialService) findUsableInvitation(ctx context.Context, code, email string) (*models.Invitation, error) {
	var invitation models.Invitation
	err := s.db.WithContext(ctx).
		Where("code = ? AND used_at IS NULL AND expires_at > ?", strings.TrimSpace(code), s.now()).
		Take(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvitationInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("credential service: query invitation: %w", err)
	}

	// Invitations bound to an email are only usable by that address.
	if invitation.Email != "" && !strings.EqualFold(invitation.Email, email) {
		return nil, ErrInvitationInvalid
	}

	return &invitation, nil
}
