package auth

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/siduri/siduri/internal/models"
	"github.com/siduri/siduri/pkg/crypto"
	"github.com/siduri/siduri/pkg/mail"
)

type captureMailer struct {
	messages []mail.Message
}

func (m *captureMailer) Send(_ context.Context, msg mail.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

func extractResetToken(t *testing.T, body string) string {
	t.Helper()

	start := strings.Index(body, "token=")
	require.GreaterOrEqual(t, start, 0)
	raw := body[start+len("token="):]
	if end := strings.IndexAny(raw, " \r\n"); end >= 0 {
		raw = raw[:end]
	}
	token, err := url.QueryUnescape(raw)
	require.NoError(t, err)
	return token
}

func TestPasswordResetFlow(t *testing.T) {
	db := openAuthTestDB(t)
	mailer := &captureMailer{}
	svc, err := NewPasswordResetService(db, mailer, "https://siduri.example.com")
	require.NoError(t, err)

	hashed, err := crypto.HashPassword("original-password")
	require.NoError(t, err)
	user := models.User{Email: "user@example.com", PasswordHash: hashed, Role: models.RoleMember}
	require.NoError(t, db.Create(&user).Error)

	require.NoError(t, svc.Request(context.Background(), "user@example.com"))
	require.Len(t, mailer.messages, 1)

	token := extractResetToken(t, mailer.messages[0].Body)
	require.NoError(t, svc.Reset(context.Background(), token, "brand-new-password"))

	var reloaded models.User
	require.NoError(t, db.Where("id = ?", user.ID).Take(&reloaded).Error)
	require.True(t, crypto.VerifyPassword(reloaded.PasswordHash, "brand-new-password"))
	require.False(t, crypto.VerifyPassword(reloaded.PasswordHash, "original-password"))

	// Tokens are single use.
	err = svc.Reset(context.Background(), token, "yet-another-password")
	require.ErrorIs(t, err, ErrResetTokenInvalid)
}

func TestPasswordResetRequestUnknownEmailIsSilent(t *testing.T) {
	db := openAuthTestDB(t)
	mailer := &captureMailer{}
	svc, err := NewPasswordResetService(db, mailer, "https://siduri.example.com")
	require.NoError(t, err)

	require.NoError(t, svc.Request(context.Background(), "nobody@example.com"))
	require.Empty(t, mailer.messages)

	var count int64
	require.NoError(t, db.Model(&models.PasswordResetToken{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestPasswordResetRejectsExpiredToken(t *testing.T) {
	db := openAuthTestDB(t)
	mailer := &captureMailer{}
	now := time.Now()
	svc, err := NewPasswordResetService(db, mailer, "https://siduri.example.com",
		WithResetClock(func() time.Time { return now }))
	require.NoError(t, err)

	user := models.User{Email: "user@example.com", PasswordHash: "hash", Role: models.RoleMember}
	require.NoError(t, db.Create(&user).Error)

	require.NoError(t, svc.Request(context.Background(), "user@example.com"))
	token := extractResetToken(t, mailer.messages[0].Body)

	now = now.Add(2 * time.Hour)

	err = svc.Reset(context.Background(), token, "brand-new-password")
	require.ErrorIs(t, err, ErrResetTokenInvalid)
}

func TestPasswordResetRejectsWeakReplacement(t *testing.T) {
	db := openAuthTestDB(t)
	svc, err := NewPasswordResetService(db, nil, "https://siduri.example.com")
	require.NoError(t, err)

	err = svc.Reset(context.Background(), "any-token", "short")
	require.ErrorIs(t, err, ErrWeakPassword)
}

func TestPasswordResetStoresOnlyHash(t *testing.T) {
	db := openAuthTestDB(t)
	mailer := &captureMailer{}
	svc, err := NewPasswordResetService(db, mailer, "https://siduri.example.com")
	require.NoError(t, err)

	user := models.User{Email: "user@example.com", PasswordHash: "hash", Role: models.RoleMember}
	require.NoError(t, db.Create(&user).Error)

	require.NoError(t, svc.Request(context.Background(), "user@example.com"))
	token := extractResetToken(t, mailer.messages[0].Body)

	var record models.PasswordResetToken
	require.NoError(t, db.Take(&record).Error)
	require.NotEqual(t, token, record.TokenHash)
	require.Equal(t, crypto.SHA256Hex(token), record.TokenHash)
}
