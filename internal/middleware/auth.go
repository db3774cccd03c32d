package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/siduri/siduri/internal/auth"
	"github.com/siduri/siduri/internal/models"
	apperrors "github.com/siduri/siduri/pkg/errors"
	"github.com/siduri/siduri/pkg/response"
)

const (
	// AuthCookieName carries the session JWT for browser clients.
	AuthCookieName = "auth_token"

	CtxUserKey   = "authUser"
	CtxClaimsKey = "authClaims"
)

// Auth enforces authentication via the session cookie or an Authorization
// bearer token. Validation failures produce distinguishable 401 codes so
// clients can tell an expired session from a revoked one.
func Auth(sessions *iauth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		user, claims, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, MapAuthError(err))
			c.Abort()
			return
		}

		c.Set(CtxUserKey, user)
		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

// OptionalAuth populates the user context when valid credentials are present
// but never rejects the request. Used on routes with owner-only fields.
func OptionalAuth(sessions *iauth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token != "" {
			if user, claims, err := sessions.Validate(c.Request.Context(), token); err == nil {
				c.Set(CtxUserKey, user)
				c.Set(CtxClaimsKey, claims)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user from the request context, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(CtxUserKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}

// CurrentClaims returns the validated token claims from the request context.
func CurrentClaims(c *gin.Context) (*iauth.Claims, bool) {
	value, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*iauth.Claims)
	return claims, ok
}

// MapAuthError translates auth package sentinels into API errors.
func MapAuthError(err error) error {
	switch {
	case errors.Is(err, iauth.ErrTokenExpired):
		return apperrors.ErrTokenExpired
	case errors.Is(err, iauth.ErrTokenRevoked):
		return apperrors.ErrTokenRevoked
	case errors.Is(err, iauth.ErrUserGone):
		return apperrors.New("USER_GONE", "Account no longer exists", 401)
	case errors.Is(err, iauth.ErrTokenMalformed), errors.Is(err, iauth.ErrTokenMissing),
		errors.Is(err, iauth.ErrAPITokenNotFound):
		return apperrors.ErrTokenMalformed
	default:
		return apperrors.ErrUnauthorized
	}
}

func extractToken(c *gin.Context) string {
	if authz := c.GetHeader("Authorization"); len(authz) >= 8 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}

	if cookie, err := c.Cookie(AuthCookieName); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}
