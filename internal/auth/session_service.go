package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/siduri/siduri/internal/models"
)

// IssuedToken is the result of minting a new token.
type IssuedToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// SessionService manages issuance, validation, revocation, and refresh of
// session tokens plus the long-lived API token variant. Tokens are stateless
// JWTs; revocation is a jti blacklist that expires with the token itself.
type SessionService struct {
	db  *gorm.DB
	jwt *JWTService
	now func() time.Time
}

// SessionOption customises the SessionService.
type SessionOption func(*SessionService)

// WithSessionClock injects a custom clock, primarily for testing.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionService constructs a session manager backed by the provided database and JWT service.
func NewSessionService(db *gorm.DB, jwtService *JWTService, opts ...SessionOption) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}
	if jwtService == nil {
		return nil, errors.New("session service: jwt service is required")
	}

	service := &SessionService{db: db, jwt: jwtService, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Issue mints a session token for the user.
func (s *SessionService) Issue(user *models.User) (IssuedToken, error) {
	return s.issue(user, TokenTypeSession)
}

// Validate verifies the token end to end: signature and expiry, revocation
// list, API token registry for typ=api, and finally that the user still
// exists (a deleted account invalidates live tokens).
func (s *SessionService) Validate(ctx context.Context, tokenString string) (*models.User, *Claims, error) {
	claims, err := s.jwt.Parse(tokenString)
	if err != nil {
		return nil, nil, err
	}

	var revoked models.RevokedToken
	err = s.db.WithContext(ctx).Where("jti = ?", claims.ID).Take(&revoked).Error
	if err == nil {
		return nil, nil, ErrTokenRevoked
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("session service: check revocation: %w", err)
	}

	if claims.TokenType == TokenTypeAPI {
		if err := s.checkAPIToken(ctx, claims.ID); err != nil {
			return nil, nil, err
		}
	}

	var user models.User
	err = s.db.WithContext(ctx).Where("id = ?", claims.Subject).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrUserGone
	}
	if err != nil {
		return nil, nil, fmt.Errorf("session service: load user: %w", err)
	}

	return &user, claims, nil
}

// Revoke blacklists a jti until the moment the token would have expired
// anyway, keeping the revocation list prunable.
func (s *SessionService) Revoke(jti string, expiresAt time.Time) error {
	if strings.TrimSpace(jti) == "" {
		return errors.New("session service: jti is required")
	}

	record := models.RevokedToken{JTI: jti, ExpiresAt: expiresAt}
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("session service: revoke token: %w", err)
	}
	return nil
}

// Refresh revokes the presented token and issues a replacement.
func (s *SessionService) Refresh(claims *Claims, user *models.User) (IssuedToken, error) {
	if claims == nil {
		return IssuedToken{}, ErrTokenMissing
	}

	if err := s.Revoke(claims.ID, claims.ExpiresAt.Time); err != nil {
		return IssuedToken{}, err
	}

	return s.Issue(user)
}

// IssueAPIToken mints a 30-day bearer token and records it for listing and
// independent soft-revocation.
func (s *SessionService) IssueAPIToken(user *models.User, name string) (IssuedToken, error) {
	issued, err := s.issue(user, TokenTypeAPI)
	if err != nil {
		return IssuedToken{}, err
	}

	record := models.APIToken{
		ID:     issued.JTI,
		UserID: user.ID,
		Name:   strings.TrimSpace(name),
	}
	if record.Name == "" {
		record.Name = "API token"
	}

	if err := s.db.Create(&record).Error; err != nil {
		return IssuedToken{}, fmt.Errorf("session service: persist api token: %w", err)
	}

	return issued, nil
}

// ListAPITokens returns the user's API tokens, newest first, revoked included.
func (s *SessionService) ListAPITokens(ctx context.Context, userID string) ([]models.APIToken, error) {
	var tokens []models.APIToken
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&tokens).Error
	if err != nil {
		return nil, fmt.Errorf("session service: list api tokens: %w", err)
	}
	return tokens, nil
}

// RevokeAPIToken soft-revokes an API token owned by the user.
func (s *SessionService) RevokeAPIToken(ctx context.Context, userID, tokenID string) error {
	var record models.APIToken
	err := s.db.WithContext(ctx).Where("id = ?", tokenID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAPITokenNotFound
	}
	if err != nil {
		return fmt.Errorf("session service: find api token: %w", err)
	}

	if record.UserID != userID {
		return ErrNotOwner
	}

	now := s.now()
	if err := s.db.WithContext(ctx).
		Model(&models.APIToken{}).
		Where("id = ?", tokenID).
		Update("revoked_at", now).Error; err != nil {
		return fmt.Errorf("session service: revoke api token: %w", err)
	}
	return nil
}

func (s *SessionService) issue(user *models.User, tokenType string) (IssuedToken, error) {
	if user == nil {
		return IssuedToken{}, errors.New("session service: user is required")
	}

	token, jti, expiresAt, err := s.jwt.Generate(user.ID, user.Email, string(user.Role), tokenType)
	if err != nil {
		return IssuedToken{}, err
	}

	return IssuedToken{Token: token, JTI: jti, ExpiresAt: expiresAt}, nil
}

func (s *SessionService) checkAPIToken(ctx context.Context, jti string) error {
	var record models.APIToken
	err := s.db.WithContext(ctx).Where("id = ?", jti).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAPITokenNotFound
	}
	if err != nil {
		return fmt.Errorf("session service: find api token: %w", err)
	}

	if record.RevokedAt != nil {
		return ErrTokenRevoked
	}

	// Touch last_used_at; failures here must not fail validation.
	now := s.now()
	_ = s.db.WithContext(ctx).
		Model(&models.APIToken{}).
		Where("id = ?", jti).
		Update("last_used_at", now).Error

	return nil
}
