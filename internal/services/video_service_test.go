package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/siduri/siduri/internal/models"
	apperrors "github.com/siduri/siduri/pkg/errors"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Video{},
		&models.View{},
		&models.NotificationSetting{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func createServiceTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, PasswordHash: "hash", Role: models.RoleMember}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createServiceTestVideo(t *testing.T, db *gorm.DB, owner *models.User, durationSecs int) *models.Video {
	t.Helper()
	video := &models.Video{
		Filename:   "demo.mp4",
		StorageURL: "videos/demo.mp4",
		UserID:     owner.ID,
	}
	if durationSecs > 0 {
		video.DurationSecs = &durationSecs
	}
	require.NoError(t, db.Create(video).Error)
	return video
}

type stubObjectStore struct {
	getCalls []string
	putCalls []string
}

func (s *stubObjectStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	s.getCalls = append(s.getCalls, key)
	return "https://signed.example.com/" + key, nil
}

func (s *stubObjectStore) PresignPut(_ context.Context, key string, _ string, _ time.Duration) (string, error) {
	s.putCalls = append(s.putCalls, key)
	return "https://signed.example.com/upload/" + key, nil
}

func TestVideoServiceCreateAndGetSignedURL(t *testing.T) {
	db := openServiceTestDB(t)
	store := &stubObjectStore{}
	svc, err := NewVideoService(db, store)
	require.NoError(t, err)

	user := createServiceTestUser(t, db, "owner@example.com")
	video, err := svc.Create(context.Background(), user, CreateVideoInput{
		Filename:   "demo.mp4",
		StorageKey: "videos/demo.mp4",
		Title:      "Demo",
	})
	require.NoError(t, err)
	require.NotEmpty(t, video.ID)

	detail, err := svc.Get(context.Background(), video.ID)
	require.NoError(t, err)
	require.Equal(t, "https://signed.example.com/videos/demo.mp4", detail.PlaybackURL)
	require.Equal(t, []string{"videos/demo.mp4"}, store.getCalls)
}

func TestVideoServiceGetRejectsMalformedID(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewVideoService(db, nil)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "1 OR 1=1")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.Get(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestVideoServiceListWithStats(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewVideoService(db, nil)
	require.NoError(t, err)

	user := createServiceTestUser(t, db, "owner@example.com")
	video := createServiceTestVideo(t, db, user, 100)

	views := []models.View{
		{VideoID: video.ID, SessionID: "s1", WatchSecs: 50},
		{VideoID: video.ID, SessionID: "s2", WatchSecs: 100},
	}
	for i := range views {
		require.NoError(t, db.Create(&views[i]).Error)
	}

	list, err := svc.List(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, int64(2), list[0].Stats.TotalViews)
	require.Equal(t, int64(150), list[0].Stats.TotalWatchSecs)
	require.InDelta(t, 75.0, list[0].Stats.AvgCompletion, 0.01)
}

func TestVideoServiceAvgCompletionCappedAt100(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewVideoService(db, nil)
	require.NoError(t, err)

	user := createServiceTestUser(t, db, "owner@example.com")
	video := createServiceTestVideo(t, db, user, 100)

	// Rewatching pushes watch_secs past the duration.
	view := models.View{VideoID: video.ID, SessionID: "s1", WatchSecs: 250}
	require.NoError(t, db.Create(&view).Error)

	list, err := svc.List(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, 100.0, list[0].Stats.AvgCompletion)
}

func TestVideoServiceUpdateTitleOwnerOnly(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewVideoService(db, nil)
	require.NoError(t, err)

	owner := createServiceTestUser(t, db, "owner@example.com")
	other := createServiceTestUser(t, db, "other@example.com")
	video := createServiceTestVideo(t, db, owner, 0)

	err = svc.UpdateTitle(context.Background(), other, video.ID, "hijacked")
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	require.NoError(t, svc.UpdateTitle(context.Background(), owner, video.ID, "My Demo"))

	var reloaded models.Video
	require.NoError(t, db.Where("id = ?", video.ID).Take(&reloaded).Error)
	require.Equal(t, "My Demo", reloaded.Title)
}

func TestVideoServiceUpdateDuration(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewVideoService(db, nil)
	require.NoError(t, err)

	user := createServiceTestUser(t, db, "owner@example.com")
	video := createServiceTestVideo(t, db, user, 0)

	require.NoError(t, svc.UpdateDuration(context.Background(), video.ID, 120))

	var reloaded models.Video
	require.NoError(t, db.Where("id = ?", video.ID).Take(&reloaded).Error)
	require.NotNil(t, reloaded.DurationSecs)
	require.Equal(t, 120, *reloaded.DurationSecs)

	err = svc.UpdateDuration(context.Background(), video.ID, 0)
	require.Error(t, err)
	err = svc.UpdateDuration(context.Background(), video.ID, MaxVideoDurationSecs+1)
	require.Error(t, err)
}

func TestVideoServiceDeleteRemovesViews(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewVideoService(db, nil)
	require.NoError(t, err)

	owner := createServiceTestUser(t, db, "owner@example.com")
	other := createServiceTestUser(t, db, "other@example.com")
	video := createServiceTestVideo(t, db, owner, 100)

	view := models.View{VideoID: video.ID, SessionID: "s1", WatchSecs: 10}
	require.NoError(t, db.Create(&view).Error)

	err = svc.Delete(context.Background(), other, video.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	require.NoError(t, svc.Delete(context.Background(), owner, video.ID))

	var videoCount, viewCount int64
	require.NoError(t, db.Model(&models.Video{}).Count(&videoCount).Error)
	require.NoError(t, db.Model(&models.View{}).Count(&viewCount).Error)
	require.Zero(t, videoCount)
	require.Zero(t, viewCount)
}
