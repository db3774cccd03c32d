package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/siduri/siduri/internal/models"
	"github.com/siduri/siduri/internal/notify"
	apperrors "github.com/siduri/siduri/pkg/errors"
)

// SaveSettingInput configures one notification channel.
type SaveSettingInput struct {
	Target    string
	Threshold int
	Enabled   bool
}

// SettingsService manages per-channel notification settings.
type SettingsService struct {
	db         *gorm.DB
	dispatcher *notify.Dispatcher
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(db *gorm.DB, dispatcher *notify.Dispatcher) (*SettingsService, error) {
	if db == nil {
		return nil, errors.New("settings service: db is required")
	}
	if dispatcher == nil {
		return nil, errors.New("settings service: dispatcher is required")
	}
	return &SettingsService{db: db, dispatcher: dispatcher}, nil
}

// List returns every stored channel setting.
func (s *SettingsService) List(ctx context.Context) ([]models.NotificationSetting, error) {
	var settings []models.NotificationSetting
	err := s.db.WithContext(ctx).Order("channel").Find(&settings).Error
	if err != nil {
		return nil, fmt.Errorf("settings service: list: %w", err)
	}
	return settings, nil
}

// Get returns the setting for one channel, or ErrNotFound.
func (s *SettingsService) Get(ctx context.Context, channel models.Channel) (*models.NotificationSetting, error) {
	if !channel.Valid() {
		return nil, apperrors.NewBadRequest("unknown notification channel")
	}

	var setting models.NotificationSetting
	err := s.db.WithContext(ctx).Where("channel = ?", channel).Take(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("settings service: get %s: %w", channel, err)
	}
	return &setting, nil
}

// Save creates or updates the setting for one channel.
func (s *SettingsService) Save(ctx context.Context, channel models.Channel, input SaveSettingInput) (*models.NotificationSetting, error) {
	if !channel.Valid() {
		return nil, apperrors.NewBadRequest("unknown notification channel")
	}
	if input.Threshold < 1 || input.Threshold > 100 {
		return nil, apperrors.NewBadRequest("threshold must be between 1 and 100")
	}
	target := strings.TrimSpace(input.Target)
	if input.Enabled && target == "" {
		return nil, apperrors.NewBadRequest("target is required for an enabled channel")
	}

	var setting models.NotificationSetting
	err := s.db.WithContext(ctx).Where("channel = ?", channel).Take(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		setting = models.NotificationSetting{
			Channel:   channel,
			Target:    target,
			Threshold: input.Threshold,
			Enabled:   input.Enabled,
		}
		if err := s.db.WithContext(ctx).Create(&setting).Error; err != nil {
			return nil, fmt.Errorf("settings service: create %s: %w", channel, err)
		}
		return &setting, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings service: find %s: %w", channel, err)
	}

	setting.Target = target
	setting.Threshold = input.Threshold
	setting.Enabled = input.Enabled
	if err := s.db.WithContext(ctx).Save(&setting).Error; err != nil {
		return nil, fmt.Errorf("settings service: update %s: %w", channel, err)
	}
	return &setting, nil
}

// TestSend fires a synthetic event through one channel so users can verify
// their configuration.
func (s *SettingsService) TestSend(ctx context.Context, channel models.Channel) error {
	setting, err := s.Get(ctx, channel)
	if err != nil {
		return err
	}

	result := s.dispatcher.Send(ctx, *setting, notify.Event{
		ViewerEmail:  "test@example.com",
		ViewerName:   "Test Viewer",
		VideoTitle:   "Test notification",
		WatchPercent: float64(setting.Threshold),
	})
	if !result.Success {
		return apperrors.New("NOTIFICATION_TEST_FAILED", "Test notification failed", 502).WithInternal(result.Err)
	}
	return nil
}
