package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultSessionTokenTTL is the lifetime of browser session tokens.
	DefaultSessionTokenTTL = 24 * time.Hour
	// DefaultAPITokenTTL is the lifetime of long-lived bearer tokens.
	DefaultAPITokenTTL = 30 * 24 * time.Hour

	// TokenTypeSession marks cookie-carried session tokens.
	TokenTypeSession = "session"
	// TokenTypeAPI marks long-lived Authorization header tokens.
	TokenTypeAPI = "api"
)

// MinSecretLength guards against weak signing secrets at startup.
const MinSecretLength = 32

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	Secret     string
	Issuer     string
	SessionTTL time.Duration
	APITTL     time.Duration
	Clock      func() time.Time
}

// Claims represents the custom claims embedded in issued JWTs. The jti
// (RegisteredClaims.ID) is the revocation key.
type Claims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTService is responsible for issuing and validating JSON Web Tokens.
type JWTService struct {
	secret     []byte
	issuer     string
	sessionTTL time.Duration
	apiTTL     time.Duration
	now        func() time.Time
}

// NewJWTService constructs a JWTService instance when provided with the required configuration.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt: secret must be at least %d characters", MinSecretLength)
	}

	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTokenTTL
	}

	apiTTL := cfg.APITTL
	if apiTTL <= 0 {
		apiTTL = DefaultAPITokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &JWTService{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		sessionTTL: sessionTTL,
		apiTTL:     apiTTL,
		now:        now,
	}, nil
}

// SessionTTL exposes the configured session token lifetime for cookie max-age.
func (s *JWTService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Generate issues a signed token of the given type for the user. It returns
// the token string, its jti, and the expiry.
func (s *JWTService) Generate(userID, email, role, tokenType string) (string, string, time.Time, error) {
	if userID == "" {
		return "", "", time.Time{}, errors.New("jwt: user id is required")
	}

	ttl := s.sessionTTL
	if tokenType == TokenTypeAPI {
		ttl = s.apiTTL
	}

	now := s.now()
	expiresAt := now.Add(ttl)
	jti := uuid.NewString()

	claims := &Claims{
		Email:     email,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, jti, expiresAt, nil
}

// Parse validates signature and registered claims and returns the application claims.
func (s *JWTService) Parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrTokenMalformed
	}

	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrTokenMalformed
	}

	return &claims, nil
}
