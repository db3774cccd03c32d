package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/siduri/siduri/internal/models"
	"github.com/siduri/siduri/internal/notify"
	apperrors "github.com/siduri/siduri/pkg/errors"
	"github.com/siduri/siduri/pkg/metrics"
	"github.com/siduri/siduri/pkg/token"
)

// DefaultNotifyThreshold applies when no channel is enabled.
const DefaultNotifyThreshold = 50

// Report is one watch-progress update from the player.
type Report struct {
	VideoID     string
	WatchSecs   int
	ViewerToken string
	SessionID   string
}

// Outcome tells the caller what happened to a report. Reports from anonymous
// or invalid-token viewers are acknowledged but never persisted; Reason says
// why. Done is non-nil only when a notification was fired and lets tests
// await the asynchronous dispatch.
type Outcome struct {
	Tracked           bool
	Reason            string
	NotificationFired bool
	Done              <-chan []notify.Result
}

// TrackService aggregates watch progress per (video, session) and fires the
// threshold notification at most once per view row.
type TrackService struct {
	db         *gorm.DB
	codec      *token.Codec
	dispatcher *notify.Dispatcher
	now        func() time.Time
}

// TrackOption customises the TrackService.
type TrackOption func(*TrackService)

// WithTrackClock injects a custom clock, primarily for testing.
func WithTrackClock(now func() time.Time) TrackOption {
	return func(s *TrackService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTrackService constructs a TrackService.
func NewTrackService(db *gorm.DB, codec *token.Codec, dispatcher *notify.Dispatcher, opts ...TrackOption) (*TrackService, error) {
	if db == nil {
		return nil, errors.New("track service: db is required")
	}
	if codec == nil {
		return nil, errors.New("track service: token codec is required")
	}
	if dispatcher == nil {
		return nil, errors.New("track service: dispatcher is required")
	}

	service := &TrackService{
		db:         db,
		codec:      codec,
		dispatcher: dispatcher,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// ProcessReport ingests one progress report. Reports without a valid viewer
// token are accepted (the player keeps sending them) but leave no trace.
func (s *TrackService) ProcessReport(ctx context.Context, report Report) (Outcome, error) {
	if !ValidVideoID(strings.ToLower(report.VideoID)) {
		return Outcome{}, apperrors.NewBadRequest("invalid video id")
	}
	if report.WatchSecs < 0 || report.WatchSecs > MaxVideoDurationSecs {
		return Outcome{}, apperrors.NewBadRequest("watch seconds out of range")
	}
	if strings.TrimSpace(report.SessionID) == "" {
		return Outcome{}, apperrors.NewBadRequest("session id is required")
	}

	videoID := strings.ToLower(report.VideoID)

	if strings.TrimSpace(report.ViewerToken) == "" {
		metrics.TrackReports.WithLabelValues("ignored").Inc()
		return Outcome{Reason: "anonymous"}, nil
	}

	payload, err := s.codec.Decode(report.ViewerToken)
	if err != nil {
		metrics.TrackReports.WithLabelValues("ignored").Inc()
		return Outcome{Reason: "invalid_token"}, nil
	}
	if payload.VideoID != videoID {
		metrics.TrackReports.WithLabelValues("ignored").Inc()
		return Outcome{Reason: "video_mismatch"}, nil
	}

	var video models.Video
	err = s.db.WithContext(ctx).Where("id = ?", videoID).Take(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.TrackReports.WithLabelValues("ignored").Inc()
		return Outcome{Reason: "unknown_video"}, nil
	}
	if err != nil {
		metrics.TrackReports.WithLabelValues("error").Inc()
		return Outcome{}, fmt.Errorf("track service: find video: %w", err)
	}

	view, previousPercent, err := s.upsertView(ctx, &video, payload, report)
	if err != nil {
		metrics.TrackReports.WithLabelValues("error").Inc()
		return Outcome{}, err
	}
	metrics.TrackReports.WithLabelValues("tracked").Inc()

	outcome := Outcome{Tracked: true}

	duration := 0
	if video.DurationSecs != nil {
		duration = *video.DurationSecs
	}
	currentPercent := view.WatchPercent(duration)

	settings, err := s.enabledSettings(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if len(settings) == 0 {
		return outcome, nil
	}

	threshold := float64(minThreshold(settings))
	if previousPercent >= threshold || currentPercent < threshold {
		return outcome, nil
	}

	// Claim the one-shot latch before dispatching. Concurrent reports race on
	// the same row; only the one that flips notified_at proceeds.
	claim := s.db.WithContext(ctx).
		Model(&models.View{}).
		Where("id = ? AND notified_at IS NULL", view.ID).
		Update("notified_at", s.now())
	if claim.Error != nil {
		return Outcome{}, fmt.Errorf("track service: claim notification: %w", claim.Error)
	}
	if claim.RowsAffected == 0 {
		return outcome, nil
	}

	outcome.NotificationFired = true
	outcome.Done = s.dispatcher.DispatchAsync(notify.Event{
		ViewerEmail:  view.ViewerEmail,
		ViewerName:   view.ViewerName,
		VideoID:      video.ID,
		VideoTitle:   video.Title,
		WatchPercent: currentPercent,
	})

	return outcome, nil
}

// upsertView writes the report into the (video, session) row and returns the
// resulting row plus the completion percentage before this report landed.
// watch_secs is overwritten as reported; the player owns progress semantics
// (seeking backwards legitimately lowers it).
func (s *TrackService) upsertView(ctx context.Context, video *models.Video, payload token.Payload, report Report) (*models.View, float64, error) {
	duration := 0
	if video.DurationSecs != nil {
		duration = *video.DurationSecs
	}

	var view models.View
	var previousPercent float64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("video_id = ? AND session_id = ?", video.ID, report.SessionID).Take(&view).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			view = models.View{
				VideoID:     video.ID,
				SessionID:   report.SessionID,
				WatchSecs:   report.WatchSecs,
				ViewerEmail: payload.Email,
				ViewerName:  payload.Name,
			}
			return tx.Create(&view).Error
		}
		if err != nil {
			return err
		}

		previousPercent = view.WatchPercent(duration)

		updates := map[string]any{"watch_secs": report.WatchSecs}
		// First token wins; a session does not change identity mid-watch.
		if view.ViewerEmail == "" && payload.Email != "" {
			updates["viewer_email"] = payload.Email
			view.ViewerEmail = payload.Email
		}
		if view.ViewerName == "" && payload.Name != "" {
			updates["viewer_name"] = payload.Name
			view.ViewerName = payload.Name
		}
		view.WatchSecs = report.WatchSecs

		return tx.Model(&models.View{}).Where("id = ?", view.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, 0, fmt.Errorf("track service: upsert view: %w", err)
	}

	return &view, previousPercent, nil
}

func (s *TrackService) enabledSettings(ctx context.Context) ([]models.NotificationSetting, error) {
	var settings []models.NotificationSetting
	err := s.db.WithContext(ctx).Where("enabled = ?", true).Find(&settings).Error
	if err != nil {
		return nil, fmt.Errorf("track service: load settings: %w", err)
	}
	return settings, nil
}

func minThreshold(settings []models.NotificationSetting) int {
	threshold := DefaultNotifyThreshold
	first := true
	for _, setting := range settings {
		if setting.Threshold <= 0 {
			continue
		}
		if first || setting.Threshold < threshold {
			threshold = setting.Threshold
			first = false
		}
	}
	return threshold
}
