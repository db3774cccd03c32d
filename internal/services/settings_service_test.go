package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/siduri/siduri/internal/models"
	"github.com/siduri/siduri/internal/notify"
	apperrors "github.com/siduri/siduri/pkg/errors"
)

func newSettingsService(t *testing.T, serverURL string) (*SettingsService, func() int) {
	t.Helper()

	db := openServiceTestDB(t)

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	t.Setenv("SLACK_WEBHOOK_URL", "")

	dispatcher, err := notify.NewDispatcher(db, nil, notify.WithHTTPClient(server.Client()))
	require.NoError(t, err)

	svc, err := NewSettingsService(db, dispatcher)
	require.NoError(t, err)

	if serverURL == "" {
		serverURL = server.URL
	}
	_, err = svc.Save(context.Background(), models.ChannelSlack, SaveSettingInput{
		Target:    serverURL,
		Threshold: 50,
		Enabled:   true,
	})
	require.NoError(t, err)

	return svc, func() int { return calls }
}

func TestSettingsSaveAndGet(t *testing.T) {
	svc, _ := newSettingsService(t, "")

	setting, err := svc.Get(context.Background(), models.ChannelSlack)
	require.NoError(t, err)
	require.True(t, setting.Enabled)
	require.Equal(t, 50, setting.Threshold)

	updated, err := svc.Save(context.Background(), models.ChannelSlack, SaveSettingInput{
		Target:    setting.Target,
		Threshold: 75,
		Enabled:   false,
	})
	require.NoError(t, err)
	require.Equal(t, 75, updated.Threshold)
	require.False(t, updated.Enabled)

	// Save upserts; only one row per channel exists.
	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestSettingsSaveNewChannelDisabledStaysDisabled(t *testing.T) {
	svc, _ := newSettingsService(t, "")

	// First write for this channel takes the insert path; a disabled flag
	// must round-trip as disabled.
	saved, err := svc.Save(context.Background(), models.ChannelTeams, SaveSettingInput{
		Target:    "https://example.com/webhook",
		Threshold: 60,
		Enabled:   false,
	})
	require.NoError(t, err)
	require.False(t, saved.Enabled)

	stored, err := svc.Get(context.Background(), models.ChannelTeams)
	require.NoError(t, err)
	require.False(t, stored.Enabled)
	require.Equal(t, 60, stored.Threshold)
}

func TestSettingsValidation(t *testing.T) {
	svc, _ := newSettingsService(t, "")

	_, err := svc.Save(context.Background(), models.Channel("pager"), SaveSettingInput{Threshold: 50})
	require.Error(t, err)

	_, err = svc.Save(context.Background(), models.ChannelTeams, SaveSettingInput{Target: "x", Threshold: 0, Enabled: true})
	require.Error(t, err)

	_, err = svc.Save(context.Background(), models.ChannelTeams, SaveSettingInput{Target: "x", Threshold: 101, Enabled: true})
	require.Error(t, err)

	_, err = svc.Save(context.Background(), models.ChannelTeams, SaveSettingInput{Target: "", Threshold: 50, Enabled: true})
	require.Error(t, err)

	_, err = svc.Get(context.Background(), models.ChannelEmail)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSettingsTestSend(t *testing.T) {
	svc, calls := newSettingsService(t, "")

	require.NoError(t, svc.TestSend(context.Background(), models.ChannelSlack))
	require.Equal(t, 1, calls())

	err := svc.TestSend(context.Background(), models.ChannelTeams)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
