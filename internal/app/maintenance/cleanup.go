// Package maintenance runs the background housekeeping jobs that keep the
// auth tables bounded: expired revocations, stale login attempts, consumed
// reset tokens, and dead invitations.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/siduri/siduri/internal/models"
	"github.com/siduri/siduri/pkg/logger"
)

const (
	defaultSchedule    = "@hourly"
	loginAttemptMaxAge = 24 * time.Hour
)

// Cleaner coordinates background maintenance. Every job is idempotent and
// best effort; a failed run is logged and retried on the next tick.
type Cleaner struct {
	db       *gorm.DB
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	schedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSchedule overrides the cron specification.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(db *gorm.DB, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:       db,
		now:      time.Now,
		schedule: defaultSchedule,
		log:      logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the cleanup job with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.db == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("cleanup run failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// Stats captures the number of records removed per table in one run.
type Stats struct {
	RevokedTokens  int64
	LoginAttempts  int64
	PasswordResets int64
	Invitations    int64
}

// RunOnce executes all cleanup routines sequentially. Also used in tests and
// during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	stats, err := c.cleanup(ctx)
	if err != nil {
		return err
	}

	if stats.RevokedTokens+stats.LoginAttempts+stats.PasswordResets+stats.Invitations > 0 {
		c.log.Info("cleanup complete",
			zap.Int64("revoked_tokens", stats.RevokedTokens),
			zap.Int64("login_attempts", stats.LoginAttempts),
			zap.Int64("password_resets", stats.PasswordResets),
			zap.Int64("invitations", stats.Invitations),
		)
	}
	return nil
}

func (c *Cleaner) cleanup(ctx context.Context) (Stats, error) {
	now := c.now()
	var stats Stats
	var errs error

	// Revoked jtis past their token's natural expiry can never match again.
	res := c.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.RevokedToken{})
	stats.RevokedTokens = res.RowsAffected
	errs = multierr.Append(errs, res.Error)

	res = c.db.WithContext(ctx).Where("attempt_time < ?", now.Add(-loginAttemptMaxAge)).Delete(&models.LoginAttempt{})
	stats.LoginAttempts = res.RowsAffected
	errs = multierr.Append(errs, res.Error)

	res = c.db.WithContext(ctx).Where("expires_at < ? OR used_at IS NOT NULL", now).Delete(&models.PasswordResetToken{})
	stats.PasswordResets = res.RowsAffected
	errs = multierr.Append(errs, res.Error)

	res = c.db.WithContext(ctx).Where("expires_at < ? OR used_at IS NOT NULL", now).Delete(&models.Invitation{})
	stats.Invitations = res.RowsAffected
	errs = multierr.Append(errs, res.Error)

	return stats, errs
}
