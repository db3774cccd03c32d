package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/siduri/siduri/internal/app"
	iauth "github.com/siduri/siduri/internal/auth"
	"github.com/siduri/siduri/internal/database"
	"github.com/siduri/siduri/internal/notify"
	"github.com/siduri/siduri/internal/services"
	"github.com/siduri/siduri/pkg/token"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	cfg := &app.Config{}
	cfg.Server.BaseURL = "http://localhost:8000"
	cfg.Server.RateLimit = 1000
	cfg.Monitoring.Prometheus.Enabled = false

	jwtService, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret: "0123456789abcdef0123456789abcdef",
		Issuer: "siduri",
	})
	require.NoError(t, err)

	lockout, err := iauth.NewLockoutTracker(db)
	require.NoError(t, err)
	credentials, err := iauth.NewCredentialService(db, lockout, iauth.CredentialConfig{})
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db, jwtService)
	require.NoError(t, err)
	resets, err := iauth.NewPasswordResetService(db, nil, cfg.Server.BaseURL)
	require.NoError(t, err)
	invites, err := iauth.NewInviteService(db)
	require.NoError(t, err)

	codec, err := token.NewCodec("tracking-secret")
	require.NoError(t, err)
	dispatcher, err := notify.NewDispatcher(db, nil)
	require.NoError(t, err)

	videos, err := services.NewVideoService(db, nil)
	require.NoError(t, err)
	shares, err := services.NewShareService(db, codec, cfg.Server.BaseURL)
	require.NoError(t, err)
	tracker, err := services.NewTrackService(db, codec, dispatcher)
	require.NoError(t, err)
	settings, err := services.NewSettingsService(db, dispatcher)
	require.NoError(t, err)

	router, err := NewRouter(Dependencies{
		DB:          db,
		Config:      cfg,
		Credentials: credentials,
		Sessions:    sessions,
		Resets:      resets,
		Invites:     invites,
		Videos:      videos,
		Shares:      shares,
		Tracker:     tracker,
		Settings:    settings,
	})
	require.NoError(t, err)
	return router
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sessionCookies(t *testing.T, w *httptest.ResponseRecorder) []*http.Cookie {
	t.Helper()
	res := w.Result()
	defer res.Body.Close()
	cookies := res.Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	return envelope.Data
}

func TestRouterHealth(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouterRegisterLoginAndMe(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/auth/register", gin.H{
		"email":    "owner@example.com",
		"password": "long-enough-password",
		"name":     "Owner",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := sessionCookies(t, w)

	w = doJSON(t, r, http.MethodGet, "/api/auth/me", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "owner@example.com")

	w = doJSON(t, r, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "owner@example.com",
		"password": "wrong-password-here",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "Invalid credentials")

	w = doJSON(t, r, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "owner@example.com",
		"password": "long-enough-password",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouterVideoShareTrackFlow(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/auth/register", gin.H{
		"email":    "owner@example.com",
		"password": "long-enough-password",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := sessionCookies(t, w)

	// Unauthenticated upload registration is rejected.
	w = doJSON(t, r, http.MethodPost, "/api/videos", gin.H{
		"filename":    "demo.mp4",
		"storage_key": "videos/demo.mp4",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/videos", gin.H{
		"filename":      "demo.mp4",
		"storage_key":   "videos/demo.mp4",
		"title":         "Demo",
		"duration_secs": 100,
	}, cookies)
	require.Equal(t, http.StatusCreated, w.Code)
	video := decodeData(t, w)["video"].(map[string]any)
	videoID := video["id"].(string)

	// Public playback metadata needs no session.
	w = doJSON(t, r, http.MethodGet, "/api/videos/"+videoID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/videos/"+videoID+"/share", gin.H{
		"recipientEmail": "friend@example.com",
		"recipientName":  "Friend",
	}, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	trackingURL := decodeData(t, w)["trackingUrl"].(string)

	parsed, err := url.Parse(trackingURL)
	require.NoError(t, err)
	viewerToken := parsed.Query().Get("v")
	require.NotEmpty(t, viewerToken)
	require.True(t, strings.Contains(parsed.Path, videoID))

	w = doJSON(t, r, http.MethodPost, "/api/track", gin.H{
		"videoId":     videoID,
		"watchSecs":   42,
		"viewerToken": viewerToken,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"tracked":true`)

	// The owner sees the view in their stats.
	w = doJSON(t, r, http.MethodGet, "/api/videos", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"total_views":1`)
}

func TestRouterTrackBeaconAlwaysNoContent(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/track/beacon", strings.NewReader("not-json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouterUnknownRouteReturnsJSON404(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/nope", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "NOT_FOUND")
}
