package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	iauth "github.com/siduri/siduri/internal/auth"
	"github.com/siduri/siduri/internal/models"
	"github.com/siduri/siduri/pkg/response"
)

func setupAuthMiddleware(t *testing.T) (*gin.Engine, *iauth.SessionService, *models.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RevokedToken{}, &models.APIToken{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	jwtService, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret: "0123456789abcdef0123456789abcdef",
		Issuer: "siduri",
	})
	require.NoError(t, err)

	sessions, err := iauth.NewSessionService(db, jwtService)
	require.NoError(t, err)

	user := &models.User{Email: "user@example.com", PasswordHash: "hash", Role: models.RoleMember}
	require.NoError(t, db.Create(user).Error)

	r := gin.New()
	r.GET("/protected", Auth(sessions), func(c *gin.Context) {
		current, ok := CurrentUser(c)
		require.True(t, ok)
		response.Success(c, http.StatusOK, gin.H{"email": current.Email})
	})
	r.GET("/open", OptionalAuth(sessions), func(c *gin.Context) {
		_, ok := CurrentUser(c)
		response.Success(c, http.StatusOK, gin.H{"authenticated": ok})
	})

	return r, sessions, user
}

func TestAuthMiddlewareAcceptsBearerToken(t *testing.T) {
	r, sessions, user := setupAuthMiddleware(t)

	issued, err := sessions.Issue(user)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddlewareAcceptsSessionCookie(t *testing.T) {
	r, sessions, user := setupAuthMiddleware(t)

	issued, err := sessions.Issue(user)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: issued.Token})
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddlewareRejectsMissingAndRevoked(t *testing.T) {
	r, sessions, user := setupAuthMiddleware(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	issued, err := sessions.Issue(user)
	require.NoError(t, err)
	require.NoError(t, sessions.Revoke(issued.JTI, issued.ExpiresAt))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "TOKEN_REVOKED")
}

func TestOptionalAuthNeverRejects(t *testing.T) {
	r, sessions, user := setupAuthMiddleware(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"authenticated":false`)

	issued, err := sessions.Issue(user)
	require.NoError(t, err)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/open", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: issued.Token})
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"authenticated":true`)
}
