// Package notify fans threshold events out to the configured notification
// channels (email, Microsoft Teams, Slack). Delivery is best effort; failures
// are reported to callers for logging but never block or fail tracking.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/siduri/siduri/internal/models"
	"github.com/siduri/siduri/pkg/logger"
	"github.com/siduri/siduri/pkg/mail"
	"github.com/siduri/siduri/pkg/metrics"
)

// DefaultDispatchTimeout bounds one asynchronous fan-out.
const DefaultDispatchTimeout = 10 * time.Second

// slackWebhookEnv overrides the stored Slack target when set.
const slackWebhookEnv = "SLACK_WEBHOOK_URL"

// Event describes a viewer crossing the watch threshold.
type Event struct {
	ViewerEmail  string
	ViewerName   string
	VideoID      string
	VideoTitle   string
	WatchPercent float64
}

// Result reports the delivery outcome for one channel.
type Result struct {
	Channel models.Channel
	Success bool
	Err     error
}

// Dispatcher sends threshold notifications over every enabled channel.
type Dispatcher struct {
	db      *gorm.DB
	mailer  mail.Mailer
	client  *http.Client
	timeout time.Duration
	log     *zap.Logger
}

// Option customises the Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient replaces the webhook client, primarily for testing.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithTimeout overrides the per-dispatch deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewDispatcher constructs a Dispatcher. The mailer may be nil, which turns
// the email channel into a no-op.
func NewDispatcher(db *gorm.DB, mailer mail.Mailer, opts ...Option) (*Dispatcher, error) {
	if db == nil {
		return nil, errors.New("notify: db is required")
	}

	dispatcher := &Dispatcher{
		db:      db,
		mailer:  mailer,
		client:  &http.Client{Timeout: DefaultDispatchTimeout},
		timeout: DefaultDispatchTimeout,
		log:     logger.WithModule("notify"),
	}
	for _, opt := range opts {
		opt(dispatcher)
	}
	return dispatcher, nil
}

// Dispatch delivers the event to every enabled channel and returns the
// per-channel outcomes.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) []Result {
	var settings []models.NotificationSetting
	if err := d.db.WithContext(ctx).Where("enabled = ?", true).Find(&settings).Error; err != nil {
		d.log.Error("load notification settings", zap.Error(err))
		return nil
	}

	results := make([]Result, 0, len(settings))
	for _, setting := range settings {
		result := d.Send(ctx, setting, event)
		outcome := "success"
		if !result.Success {
			outcome = "failure"
			d.log.Warn("notification delivery failed",
				zap.String("channel", string(result.Channel)),
				zap.String("video_id", event.VideoID),
				zap.Error(result.Err))
		}
		metrics.NotificationsSent.WithLabelValues(string(setting.Channel), outcome).Inc()
		results = append(results, result)
	}
	return results
}

// DispatchAsync runs Dispatch on its own goroutine with a bounded deadline.
// The returned channel receives the outcomes once and is then closed, so
// callers that do not care can simply drop it.
func (d *Dispatcher) DispatchAsync(event Event) <-chan []Result {
	done := make(chan []Result, 1)
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		done <- d.Dispatch(ctx, event)
	}()
	return done
}

// Send delivers the event over a single channel. Used by Dispatch and by the
// settings test endpoints.
func (d *Dispatcher) Send(ctx context.Context, setting models.NotificationSetting, event Event) Result {
	var err error
	switch setting.Channel {
	case models.ChannelEmail:
		err = d.sendEmail(ctx, setting.Target, event)
	case models.ChannelTeams:
		err = d.postJSON(ctx, setting.Target, teamsCard(event))
	case models.ChannelSlack:
		target := setting.Target
		if override := os.Getenv(slackWebhookEnv); override != "" {
			target = override
		}
		err = d.postJSON(ctx, target, slackMessage(event))
	default:
		err = fmt.Errorf("notify: unknown channel %q", setting.Channel)
	}

	return Result{Channel: setting.Channel, Success: err == nil, Err: err}
}

func (d *Dispatcher) sendEmail(ctx context.Context, target string, event Event) error {
	if d.mailer == nil {
		return nil
	}
	if target == "" {
		return errors.New("notify: email target not configured")
	}

	msg := mail.Message{
		To:      []string{target},
		Subject: fmt.Sprintf("%s watched %.0f%% of %s", viewerLabel(event), event.WatchPercent, videoLabel(event)),
		Body:    emailBody(event),
		HTML:    true,
	}
	if err := d.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		return err
	}
	return nil
}

func (d *Dispatcher) postJSON(ctx context.Context, url string, payload any) error {
	if url == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: webhook returned %d", resp.StatusCode)
	}
	return nil
}

func viewerLabel(event Event) string {
	if event.ViewerName != "" {
		return event.ViewerName
	}
	if event.ViewerEmail != "" {
		return event.ViewerEmail
	}
	return "Someone"
}

func videoLabel(event Event) string {
	if event.VideoTitle != "" {
		return event.VideoTitle
	}
	return "your video"
}
