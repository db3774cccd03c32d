package auth

import (
	"errors"
	"fmt"
	"time"
)

// Registration failures. Handlers map these onto specific 400 responses.
var (
	ErrWeakPassword       = errors.New("auth: password must be at least 12 characters")
	ErrDomainNotAllowed   = errors.New("auth: email domain is not allowed")
	ErrEmailInUse         = errors.New("auth: user already exists")
	ErrInvitationRequired = errors.New("auth: invitation code required")
	ErrInvitationInvalid  = errors.New("auth: invalid or expired invitation code")
)

// Authentication and token validation failures.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenMissing       = errors.New("auth: token missing")
	ErrTokenMalformed     = errors.New("auth: token malformed")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenRevoked       = errors.New("auth: token revoked")
	ErrUserGone           = errors.New("auth: user no longer exists")
	ErrAPITokenNotFound   = errors.New("auth: api token not found")
	ErrNotOwner           = errors.New("auth: resource belongs to another user")
)

// LockedError reports an active lockout together with the remaining penalty
// window, surfaced to clients as a retry hint.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("auth: account locked, retry after %s", e.RetryAfter)
}
