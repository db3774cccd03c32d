package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/siduri/siduri/internal/models"
)

func newCredentialService(t *testing.T, db *gorm.DB, cfg CredentialConfig) *CredentialService {
	t.Helper()

	opts := []LockoutOption{}
	if cfg.Clock != nil {
		opts = append(opts, WithLockoutClock(cfg.Clock))
	}
	tracker, err := NewLockoutTracker(db, opts...)
	require.NoError(t, err)

	svc, err := NewCredentialService(db, tracker, cfg)
	require.NoError(t, err)
	return svc
}

func TestRegisterFirstUserBecomesOwner(t *testing.T) {
	db := openAuthTestDB(t)
	svc := newCredentialService(t, db, CredentialConfig{})

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:    "First@Example.com",
		Password: "long-enough-password",
		Name:     "First",
	})
	require.NoError(t, err)
	require.Equal(t, models.RoleOwner, user.Role)
	require.Equal(t, "first@example.com", user.Email)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	db := openAuthTestDB(t)
	svc := newCredentialService(t, db, CredentialConfig{})

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "elevenchars",
	})
	require.ErrorIs(t, err, ErrWeakPassword)
}

func TestRegisterEnforcesDomainAllowlist(t *testing.T) {
	db := openAuthTestDB(t)
	svc := newCredentialService(t, db, CredentialConfig{
		AllowedEmailDomains: []string{"example.com"},
	})

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "user@other.org",
		Password: "long-enough-password",
	})
	require.ErrorIs(t, err, ErrDomainNotAllowed)

	_, err = svc.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "long-enough-password",
	})
	require.NoError(t, err)
}

func TestRegisterSecondUserRequiresInvitation(t *testing.T) {
	db := openAuthTestDB(t)
	svc := newCredentialService(t, db, CredentialConfig{})

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "owner@example.com",
		Password: "long-enough-password",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{
		Email:    "second@example.com",
		Password: "long-enough-password",
	})
	require.ErrorIs(t, err, ErrInvitationRequired)
}

func TestRegisterConsumesInvitation(t *testing.T) {
	db := openAuthTestDB(t)
	now := time.Now()
	svc := newCredentialService(t, db, CredentialConfig{Clock: func() time.Time { return now }})

	owner, err := svc.Register(context.Background(), RegisterInput{
		Email:    "owner@example.com",
		Password: "long-enough-password",
	})
	require.NoError(t, err)

	invitation := models.Invitation{
		Code:      "invite-code",
		Email:     "second@example.com",
		CreatedBy: owner.ID,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, db.Create(&invitation).Error)

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:      "second@example.com",
		Password:   "long-enough-password",
		InviteCode: "invite-code",
	})
	require.NoError(t, err)
	require.Equal(t, models.RoleMember, user.Role)

	var reloaded models.Invitation
	require.NoError(t, db.Where("code = ?", "invite-code").Take(&reloaded).Error)
	require.NotNil(t, reloaded.UsedAt)

	// A consumed invitation cannot be redeemed again.
	_, err = svc.Register(context.Background(), RegisterInput{
		Email:      "third@example.com",
		Password:   "long-enough-password",
		InviteCode: "invite-code",
	})
	require.ErrorIs(t, err, ErrInvitationInvalid)
}

func TestRegisterRejectsInvitationForDifferentEmail(t *testing.T) {
	db := openAuthTestDB(t)
	now := time.Now()
	svc := newCredentialService(t, db, CredentialConfig{Clock: func() time.Time { return now }})

	owner, err := svc.Register(context.Background(), RegisterInput{
		Email:    "owner@example.com",
		Password: "long-enough-password",
	})
	require.NoError(t, err)

	invitation := models.Invitation{
		Code:      "bound-code",
		Email:     "intended@example.com",
		CreatedBy: owner.ID,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, db.Create(&invitation).Error)

	_, err = svc.Register(context.Background(), RegisterInput{
		Email:      "imposter@example.com",
		Password:   "long-enough-password",
		InviteCode: "bound-code",
	})
	require.ErrorIs(t, err, ErrInvitationInvalid)
}

func TestRegisterRejectsExpiredInvitation(t *testing.T) {
	db := openAuthTestDB(t)
	now := time.Now()
	svc := newCredentialService(t, db, CredentialConfig{Clock: func() time.Time { return now }})

	owner, err := svc.Register(context.Background(), RegisterInput{
		Email:    "owner@example.com",
		Password: "long-enough-password",
	})
	require.NoError(t, err)

	invitation := models.Invitation{
		Code:      "stale-code",
		CreatedBy: owner.ID,
		ExpiresAt: now.Add(-time.Minute),
	}
	require.NoError(t, db.Create(&invitation).Error)

	_, err = svc.Register(context.Background(), RegisterInput{
		Email:      "late@example.com",
		Password:   "long-enough-password",
		InviteCode: "stale-code",
	})
	require.ErrorIs(t, err, ErrInvitationInvalid)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	db := openAuthTestDB(t)
	now := time.Now()
	svc := newCredentialService(t, db, CredentialConfig{Clock: func() time.Time { return now }})

	owner, err := svc.Register(context.Background(), RegisterInput{
		Email:    "owner@example.com",
		Password: "long-enough-password",
	})
	require.NoError(t, err)

	invitation := models.Invitation{
		Code:      "dup-code",
		CreatedBy: owner.ID,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, db.Create(&invitation).Error)

	_, err = svc.Register(context.Background(), RegisterInput{
		Email:      "OWNER@example.com",
		Password:   "long-enough-password",
		InviteCode: "dup-code",
	})
	require.ErrorIs(t, err, ErrEmailInUse)
}

func TestAuthenticateSuccessAndFailure(t *testing.T) {
	db := openAuthTestDB(t)
	svc := newCredentialService(t, db, CredentialConfig{})

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "long-enough-password",
	})
	require.NoError(t, err)

	user, err := svc.Authenticate(context.Background(), "user@example.com", "long-enough-password")
	require.NoError(t, err)
	require.Equal(t, "user@example.com", user.Email)

	_, err = svc.Authenticate(context.Background(), "user@example.com", "wrong-password-here")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown accounts fail with the same error as a bad password.
	_, err = svc.Authenticate(context.Background(), "ghost@example.com", "whatever-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateLocksAfterFiveFailures(t *testing.T) {
	db := openAuthTestDB(t)
	now := time.Now()
	clock := func() time.Time { return now }
	svc := newCredentialService(t, db, CredentialConfig{Clock: clock})

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "long-enough-password",
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.Authenticate(context.Background(), "user@example.com", "wrong-password-here")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// The correct password is refused while the lock holds.
	_, err = svc.Authenticate(context.Background(), "user@example.com", "long-enough-password")
	var locked *LockedError
	require.True(t, errors.As(err, &locked))
	require.Equal(t, 15*time.Minute, locked.RetryAfter)
}
