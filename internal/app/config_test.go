package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "http://localhost:8000", cfg.Server.BaseURL)
	require.Equal(t, 100, cfg.Server.RateLimit)

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/siduri.sqlite", cfg.Database.Path)

	require.Equal(t, "siduri", cfg.Auth.JWT.Issuer)
	require.Equal(t, 24*time.Hour, cfg.Auth.JWT.SessionTTL)
	require.Equal(t, 30*24*time.Hour, cfg.Auth.JWT.APITTL)

	require.False(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, 587, cfg.Email.SMTP.Port)
	require.False(t, cfg.Storage.Enabled)
	require.Equal(t, "us-east-1", cfg.Storage.Region)
	require.Equal(t, 10*time.Second, cfg.Notifications.DispatchTimeout)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SIDURI_SERVER_PORT", "9100")
	t.Setenv("SIDURI_DATABASE_DRIVER", "postgres")
	t.Setenv("SIDURI_AUTH_JWT_SESSION_TTL", "12h")
	t.Setenv("SIDURI_AUTH_ALLOWED_EMAIL_DOMAINS", "example.com,example.org")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, 12*time.Hour, cfg.Auth.JWT.SessionTTL)
	require.Equal(t, []string{"example.com", "example.org"}, cfg.Auth.AllowedEmailDomains)
}

func TestApplyRuntimeDefaultsGeneratesSecrets(t *testing.T) {
	cfg := &Config{}

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.True(t, generated["auth.jwt.secret"])
	require.True(t, generated["auth.tracking_secret"])
	require.NotEmpty(t, cfg.Auth.JWT.Secret)
	require.NotEmpty(t, cfg.Auth.TrackingSecret)
}

func TestApplyRuntimeDefaultsKeepsConfiguredSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.JWT.Secret = "configured-jwt-secret-long-enough-0000"
	cfg.Auth.TrackingSecret = "configured-tracking-secret"

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Empty(t, generated)
	require.Equal(t, "configured-jwt-secret-long-enough-0000", cfg.Auth.JWT.Secret)
	require.Equal(t, "configured-tracking-secret", cfg.Auth.TrackingSecret)
}
