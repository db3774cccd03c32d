package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/siduri/siduri/internal/models"
	"github.com/siduri/siduri/internal/storage"
	apperrors "github.com/siduri/siduri/pkg/errors"
)

// MaxVideoDurationSecs caps reported durations at 24 hours.
const MaxVideoDurationSecs = 86400

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ValidVideoID reports whether id is a canonical lowercase UUID. IDs are
// validated before any lookup so malformed input never reaches the database.
func ValidVideoID(id string) bool {
	return uuidPattern.MatchString(id)
}

// VideoStats aggregates view activity for one video.
type VideoStats struct {
	TotalViews     int64   `json:"total_views"`
	TotalWatchSecs int64   `json:"total_watch_secs"`
	AvgCompletion  float64 `json:"avg_completion"`
}

// VideoWithStats pairs a video with its aggregated view stats for listings.
type VideoWithStats struct {
	models.Video
	Stats VideoStats `json:"stats"`
}

// VideoDetail is the public playback view of a video.
type VideoDetail struct {
	models.Video
	PlaybackURL string `json:"playback_url"`
}

// CreateVideoInput registers an object that the client already uploaded.
type CreateVideoInput struct {
	Filename     string
	StorageKey   string
	Title        string
	DurationSecs *int
}

// VideoService manages video records. Bytes live in object storage; the
// service only tracks metadata and issues signed playback URLs.
type VideoService struct {
	db    *gorm.DB
	store storage.ObjectStore
}

// NewVideoService constructs a VideoService. The object store may be nil, in
// which case playback URLs fall back to the stored location untouched.
func NewVideoService(db *gorm.DB, store storage.ObjectStore) (*VideoService, error) {
	if db == nil {
		return nil, errors.New("video service: db is required")
	}
	return &VideoService{db: db, store: store}, nil
}

// Create registers an uploaded video for the user.
func (s *VideoService) Create(ctx context.Context, user *models.User, input CreateVideoInput) (*models.Video, error) {
	if user == nil {
		return nil, apperrors.ErrUnauthorized
	}
	if strings.TrimSpace(input.Filename) == "" || strings.TrimSpace(input.StorageKey) == "" {
		return nil, apperrors.NewBadRequest("filename and storage key are required")
	}
	if input.DurationSecs != nil && (*input.DurationSecs < 0 || *input.DurationSecs > MaxVideoDurationSecs) {
		return nil, apperrors.NewBadRequest("duration out of range")
	}

	video := &models.Video{
		Filename:     strings.TrimSpace(input.Filename),
		StorageURL:   strings.TrimSpace(input.StorageKey),
		Title:        strings.TrimSpace(input.Title),
		DurationSecs: input.DurationSecs,
		UserID:       user.ID,
	}
	if err := s.db.WithContext(ctx).Create(video).Error; err != nil {
		return nil, fmt.Errorf("video service: create video: %w", err)
	}
	return video, nil
}

// List returns the user's videos with per-video view stats, newest first.
func (s *VideoService) List(ctx context.Context, userID string) ([]VideoWithStats, error) {
	var videos []models.Video
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&videos).Error
	if err != nil {
		return nil, fmt.Errorf("video service: list videos: %w", err)
	}

	result := make([]VideoWithStats, 0, len(videos))
	for _, video := range videos {
		stats, err := s.statsFor(ctx, &video)
		if err != nil {
			return nil, err
		}
		result = append(result, VideoWithStats{Video: video, Stats: stats})
	}
	return result, nil
}

// Get returns the public playback view of a video, including a signed URL.
func (s *VideoService) Get(ctx context.Context, id string) (*VideoDetail, error) {
	video, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	playbackURL := video.StorageURL
	if s.store != nil {
		signed, err := s.store.PresignGet(ctx, video.StorageURL, storage.DefaultURLExpiry)
		if err != nil {
			return nil, fmt.Errorf("video service: sign playback url: %w", err)
		}
		playbackURL = signed
	}

	return &VideoDetail{Video: *video, PlaybackURL: playbackURL}, nil
}

// UpdateTitle renames a video. Only the owner may do this.
func (s *VideoService) UpdateTitle(ctx context.Context, user *models.User, id, title string) error {
	if user == nil {
		return apperrors.ErrUnauthorized
	}

	video, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if video.UserID != user.ID {
		return apperrors.ErrForbidden
	}

	if err := s.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("id = ?", video.ID).
		Update("title", strings.TrimSpace(title)).Error; err != nil {
		return fmt.Errorf("video service: update title: %w", err)
	}
	return nil
}

// UpdateDuration records the duration reported by the player. Unauthenticated
// viewers load metadata too, so this is deliberately public.
func (s *VideoService) UpdateDuration(ctx context.Context, id string, durationSecs int) error {
	if durationSecs <= 0 || durationSecs > MaxVideoDurationSecs {
		return apperrors.NewBadRequest("duration out of range")
	}

	video, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("id = ?", video.ID).
		Update("duration_secs", durationSecs).Error; err != nil {
		return fmt.Errorf("video service: update duration: %w", err)
	}
	return nil
}

// Delete removes a video and its views. Only the owner may do this.
func (s *VideoService) Delete(ctx context.Context, user *models.User, id string) error {
	if user == nil {
		return apperrors.ErrUnauthorized
	}

	video, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if video.UserID != user.ID {
		return apperrors.ErrForbidden
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("video_id = ?", video.ID).Delete(&models.View{}).Error; err != nil {
			return fmt.Errorf("video service: delete views: %w", err)
		}
		if err := tx.Where("id = ?", video.ID).Delete(&models.Video{}).Error; err != nil {
			return fmt.Errorf("video service: delete video: %w", err)
		}
		return nil
	})
}

func (s *VideoService) find(ctx context.Context, id string) (*models.Video, error) {
	if !ValidVideoID(strings.ToLower(id)) {
		return nil, apperrors.ErrNotFound
	}

	var video models.Video
	err := s.db.WithContext(ctx).Where("id = ?", strings.ToLower(id)).Take(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("video service: find video: %w", err)
	}
	return &video, nil
}

func (s *VideoService) statsFor(ctx context.Context, video *models.Video) (VideoStats, error) {
	var row struct {
		Count int64
		Total int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.View{}).
		Select("COUNT(*) AS count, COALESCE(SUM(watch_secs), 0) AS total").
		Where("video_id = ?", video.ID).
		Scan(&row).Error
	if err != nil {
		return VideoStats{}, fmt.Errorf("video service: view stats: %w", err)
	}

	stats := VideoStats{TotalViews: row.Count, TotalWatchSecs: row.Total}
	if row.Count > 0 && video.DurationSecs != nil && *video.DurationSecs > 0 {
		avg := float64(row.Total) / float64(row.Count) / float64(*video.DurationSecs) * 100
		if avg > 100 {
			avg = 100
		}
		stats.AvgCompletion = avg
	}
	return stats, nil
}
