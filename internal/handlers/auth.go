package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/siduri/siduri/internal/auth"
	"github.com/siduri/siduri/internal/middleware"
	"github.com/siduri/siduri/internal/models"
	apperrors "github.com/siduri/siduri/pkg/errors"
	"github.com/siduri/siduri/pkg/metrics"
	"github.com/siduri/siduri/pkg/response"
)

// AuthHandler manages registration, login, sessions, password resets,
// API tokens, and invitations.
type AuthHandler struct {
	credentials   *iauth.CredentialService
	sessions      *iauth.SessionService
	resets        *iauth.PasswordResetService
	invites       *iauth.InviteService
	secureCookies bool
	sessionMaxAge int
}

// NewAuthHandler wires the auth services into HTTP handlers. secureCookies
// should be true in production so session cookies require HTTPS.
func NewAuthHandler(
	credentials *iauth.CredentialService,
	sessions *iauth.SessionService,
	resets *iauth.PasswordResetService,
	invites *iauth.InviteService,
	secureCookies bool,
) *AuthHandler {
	return &AuthHandler{
		credentials:   credentials,
		sessions:      sessions,
		resets:        resets,
		invites:       invites,
		secureCookies: secureCookies,
		sessionMaxAge: int(iauth.DefaultSessionTokenTTL.Seconds()),
	}
}

type registerRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	Name       string `json:"name"`
	InviteCode string `json:"inviteCode"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.credentials.Register(c.Request.Context(), iauth.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		InviteCode: req.InviteCode,
	})
	if err != nil {
		response.Error(c, mapRegisterError(err))
		return
	}

	h.startSession(c, user)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.credentials.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var locked *iauth.LockedError
		if errors.As(err, &locked) {
			metrics.AuthAttempts.WithLabelValues("locked").Inc()
			response.RateLimited(c, "Too many failed attempts, account temporarily locked", int(locked.RetryAfter.Seconds()))
			return
		}
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, apperrors.ErrInvalidCredentials)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	h.startSession(c, user)
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if claims, ok := middleware.CurrentClaims(c); ok {
		if err := h.sessions.Revoke(claims.ID, claims.ExpiresAt.Time); err != nil {
			response.Error(c, apperrors.Wrap(err, "Logout failed"))
			return
		}
	}

	h.clearSessionCookie(c)
	response.Success(c, http.StatusOK, gin.H{"message": "Logged out"})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": publicUser(user)})
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	claims, ok2 := middleware.CurrentClaims(c)
	if !ok || !ok2 {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	issued, err := h.sessions.Refresh(claims, user)
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "Refresh failed"))
		return
	}

	h.setSessionCookie(c, issued.Token)
	response.Success(c, http.StatusOK, gin.H{"user": publicUser(user)})
}

// GET /api/auth/check-first-user
func (h *AuthHandler) CheckFirstUser(c *gin.Context) {
	first, err := h.credentials.IsFirstUser(c.Request.Context())
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "Check failed"))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"isFirstUser": first})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	// Always the same response; existence of the account is never disclosed.
	if err := h.resets.Request(c.Request.Context(), req.Email); err != nil {
		response.Error(c, apperrors.Wrap(err, "Request failed"))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "If that account exists, a reset link has been sent"})
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.resets.Reset(c.Request.Context(), req.Token, req.Password)
	switch {
	case errors.Is(err, iauth.ErrResetTokenInvalid):
		response.Error(c, apperrors.NewBadRequest("Invalid or expired reset token"))
	case errors.Is(err, iauth.ErrWeakPassword):
		response.Error(c, apperrors.NewBadRequest("Password must be at least 12 characters"))
	case err != nil:
		response.Error(c, apperrors.Wrap(err, "Reset failed"))
	default:
		response.Success(c, http.StatusOK, gin.H{"message": "Password updated"})
	}
}

type apiTokenRequest struct {
	Name string `json:"name" validate:"max=100"`
}

// POST /api/auth/api-token
func (h *AuthHandler) CreateAPIToken(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	var req apiTokenRequest
	if !bindAndValidate(c, &req) {
		return
	}

	issued, err := h.sessions.IssueAPIToken(user, req.Name)
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "Token creation failed"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token":     issued.Token,
		"tokenId":   issued.JTI,
		"expiresAt": issued.ExpiresAt,
	})
}

// GET /api/auth/api-tokens
func (h *AuthHandler) ListAPITokens(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	tokens, err := h.sessions.ListAPITokens(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "Listing failed"))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"tokens": tokens})
}

// DELETE /api/auth/api-tokens/:id
func (h *AuthHandler) RevokeAPIToken(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	err := h.sessions.RevokeAPIToken(c.Request.Context(), user.ID, c.Param("id"))
	switch {
	case errors.Is(err, iauth.ErrAPITokenNotFound):
		response.Error(c, apperrors.ErrNotFound)
	case errors.Is(err, iauth.ErrNotOwner):
		response.Error(c, apperrors.ErrForbidden)
	case err != nil:
		response.Error(c, apperrors.Wrap(err, "Revocation failed"))
	default:
		response.Success(c, http.StatusOK, gin.H{"message": "Token revoked"})
	}
}

type inviteRequest struct {
	Email         string `json:"email" validate:"omitempty,email"`
	ExpiresInDays int    `json:"expiresInDays" validate:"omitempty,min=1,max=365"`
}

// POST /api/auth/invitations
func (h *AuthHandler) CreateInvitation(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	var req inviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	invitation, err := h.invites.Create(c.Request.Context(), user, req.Email,
		time.Duration(req.ExpiresInDays)*24*time.Hour)
	if errors.Is(err, iauth.ErrNotOwner) {
		response.Error(c, apperrors.ErrForbidden)
		return
	}
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "Invitation failed"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"invitation": invitation})
}

// GET /api/auth/invitations
func (h *AuthHandler) ListInvitations(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	invitations, err := h.invites.List(c.Request.Context(), user)
	if errors.Is(err, iauth.ErrNotOwner) {
		response.Error(c, apperrors.ErrForbidden)
		return
	}
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "Listing failed"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"invitations": invitations})
}

func (h *AuthHandler) startSession(c *gin.Context, user *models.User) {
	issued, err := h.sessions.Issue(user)
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "Session creation failed"))
		return
	}

	h.setSessionCookie(c, issued.Token)
	response.Success(c, http.StatusOK, gin.H{"user": publicUser(user)})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AuthCookieName, token, h.sessionMaxAge, "/", "", h.secureCookies, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AuthCookieName, "", -1, "/", "", h.secureCookies, true)
}

func publicUser(user *models.User) gin.H {
	return gin.H{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
		"role":  user.Role,
	}
}

func mapRegisterError(err error) error {
	switch {
	case errors.Is(err, iauth.ErrWeakPassword):
		return apperrors.NewBadRequest("Password must be at least 12 characters")
	case errors.Is(err, iauth.ErrDomainNotAllowed):
		return apperrors.NewBadRequest("Email domain is not allowed")
	case errors.Is(err, iauth.ErrEmailInUse):
		return apperrors.NewBadRequest("User already exists")
	case errors.Is(err, iauth.ErrInvitationRequired):
		return apperrors.NewBadRequest("Invitation code required")
	case errors.Is(err, iauth.ErrInvitationInvalid):
		return apperrors.NewBadRequest("Invalid or expired invitation code")
	case errors.Is(err, iauth.ErrInvalidCredentials):
		return apperrors.NewBadRequest("Email and password are required")
	default:
		return apperrors.Wrap(err, "Registration failed")
	}
}
