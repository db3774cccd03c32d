package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// View accumulates watch progress for one playback session of one video.
// (VideoID, SessionID) is the upsert key. NotifiedAt is a one-shot latch
// that prevents duplicate threshold notifications.
type View struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	VideoID     string     `gorm:"type:uuid;not null;uniqueIndex:idx_views_video_session" json:"video_id"`
	SessionID   string     `gorm:"not null;uniqueIndex:idx_views_video_session" json:"session_id"`
	WatchSecs   int        `gorm:"not null;default:0" json:"watch_secs"`
	ViewerEmail string     `gorm:"index" json:"viewer_email,omitempty"`
	ViewerName  string     `json:"viewer_name,omitempty"`
	NotifiedAt  *time.Time `json:"notified_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (v *View) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// WatchPercent computes completion against the supplied duration, returning 0
// when the duration is unknown.
func (v *View) WatchPercent(durationSecs int) float64 {
	if durationSecs <= 0 {
		return 0
	}
	return float64(v.WatchSecs) / float64(durationSecs) * 100
}
