package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/siduri/siduri/internal/models"
	"github.com/siduri/siduri/pkg/crypto"
	"github.com/siduri/siduri/pkg/logger"
	"github.com/siduri/siduri/pkg/mail"
)

const (
	defaultResetExpiry     = time.Hour
	defaultResetTokenBytes = 32
)

// ErrResetTokenInvalid covers unknown, expired, and already-used reset tokens.
var ErrResetTokenInvalid = errors.New("auth: invalid or expired reset token")

// PasswordResetService issues and redeems one-time password reset tokens.
// Only the SHA-256 hash of a token is ever persisted.
type PasswordResetService struct {
	db      *gorm.DB
	mailer  mail.Mailer
	baseURL string
	expiry  time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// ResetOption customises the PasswordResetService.
type ResetOption func(*PasswordResetService)

// WithResetClock injects a custom clock, primarily for testing.
func WithResetClock(now func() time.Time) ResetOption {
	return func(s *PasswordResetService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithResetExpiry overrides the token lifetime.
func WithResetExpiry(d time.Duration) ResetOption {
	return func(s *PasswordResetService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// NewPasswordResetService constructs a PasswordResetService. The mailer may
// be nil, in which case reset links are only logged (useful in development).
func NewPasswordResetService(db *gorm.DB, mailer mail.Mailer, baseURL string, opts ...ResetOption) (*PasswordResetService, error) {
	if db == nil {
		return nil, errors.New("password reset service: db is required")
	}

	service := &PasswordResetService{
		db:      db,
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		expiry:  defaultResetExpiry,
		now:     time.Now,
		log:     logger.WithModule("password-reset"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Request creates a reset token for the account and emails the link. When no
// account matches, it returns nil without side effects; callers respond with
// the same generic message either way to prevent enumeration.
func (s *PasswordResetService) Request(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("password reset service: query user: %w", err)
	}

	rawToken, err := crypto.GenerateHexToken(defaultResetTokenBytes)
	if err != nil {
		return fmt.Errorf("password reset service: generate token: %w", err)
	}

	record := models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: crypto.SHA256Hex(rawToken),
		ExpiresAt: s.now().Add(s.expiry),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("password reset service: store token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password.html?token=%s", s.baseURL, rawToken)

	if s.mailer == nil {
		s.log.Info("smtp not configured, reset link not emailed", zap.String("user_id", user.ID))
		return nil
	}

	msg := mail.Message{
		To:      []string{user.Email},
		Subject: "Reset your password",
		Body: fmt.Sprintf("You requested a password reset.\r\n\r\n"+
			"Open this link to choose a new password: %s\r\n\r\n"+
			"The link expires in 1 hour. If you didn't request this, ignore this email.\r\n", resetURL),
	}
	if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		s.log.Warn("reset email delivery failed", zap.Error(err))
	}

	return nil
}

// Reset redeems a token and updates the password. Tokens are single use.
func (s *PasswordResetService) Reset(ctx context.Context, rawToken, password string) error {
	if strings.TrimSpace(rawToken) == "" {
		return ErrResetTokenInvalid
	}
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}

	var record models.PasswordResetToken
	err := s.db.WithContext(ctx).
		Where("token_hash = ? AND expires_at > ? AND used_at IS NULL", crypto.SHA256Hex(rawToken), s.now()).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrResetTokenInvalid
	}
	if err != nil {
		return fmt.Errorf("password reset service: query token: %w", err)
	}

	hashed, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("password reset service: hash password: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", record.UserID).
		Update("password_hash", hashed).Error; err != nil {
		return fmt.Errorf("password reset service: update password: %w", err)
	}

	now := s.now()
	if err := s.db.WithContext(ctx).
		Model(&models.PasswordResetToken{}).
		Where("id = ?", record.ID).
		Update("used_at", now).Error; err != nil {
		return fmt.Errorf("password reset service: mark token used: %w", err)
	}

	return nil
}
