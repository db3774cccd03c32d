package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/siduri/siduri/internal/models"
	apperrors "github.com/siduri/siduri/pkg/errors"
	"github.com/siduri/siduri/pkg/token"
)

// DefaultShareExpiry is how long a tracking link identifies its recipient.
const DefaultShareExpiry = 30 * 24 * time.Hour

// ShareService issues per-recipient tracking links for videos.
type ShareService struct {
	db      *gorm.DB
	codec   *token.Codec
	baseURL string
	expiry  time.Duration
	now     func() time.Time
}

// ShareOption customises the ShareService.
type ShareOption func(*ShareService)

// WithShareClock injects a custom clock, primarily for testing.
func WithShareClock(now func() time.Time) ShareOption {
	return func(s *ShareService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithShareExpiry overrides the tracking-token lifetime.
func WithShareExpiry(d time.Duration) ShareOption {
	return func(s *ShareService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// NewShareService constructs a ShareService.
func NewShareService(db *gorm.DB, codec *token.Codec, baseURL string, opts ...ShareOption) (*ShareService, error) {
	if db == nil {
		return nil, errors.New("share service: db is required")
	}
	if codec == nil {
		return nil, errors.New("share service: token codec is required")
	}

	service := &ShareService{
		db:      db,
		codec:   codec,
		baseURL: strings.TrimRight(baseURL, "/"),
		expiry:  DefaultShareExpiry,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// IssueTrackingToken mints a signed watch link that identifies the recipient.
// Only the video's owner may share it.
func (s *ShareService) IssueTrackingToken(ctx context.Context, videoID, issuerUserID, recipientEmail, recipientName string) (string, error) {
	recipientEmail = strings.ToLower(strings.TrimSpace(recipientEmail))
	if recipientEmail == "" {
		return "", apperrors.NewBadRequest("recipient email is required")
	}

	if !ValidVideoID(strings.ToLower(videoID)) {
		return "", apperrors.ErrNotFound
	}

	var video models.Video
	err := s.db.WithContext(ctx).Where("id = ?", strings.ToLower(videoID)).Take(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("share service: find video: %w", err)
	}

	if video.UserID != issuerUserID {
		return "", apperrors.ErrForbidden
	}

	signed, err := s.codec.Encode(token.Payload{
		Email:   recipientEmail,
		Name:    strings.TrimSpace(recipientName),
		VideoID: video.ID,
		Expiry:  s.now().Add(s.expiry).UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("share service: encode token: %w", err)
	}

	return fmt.Sprintf("%s/watch/%s?v=%s", s.baseURL, video.ID, signed), nil
}
