package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/siduri/siduri/internal/models"
)

// attemptWindow is the sliding window over which failures accumulate.
const attemptWindow = 24 * time.Hour

// LockoutTier pairs a failure count with the penalty it triggers.
type LockoutTier struct {
	Attempts int
	Duration time.Duration
}

// DefaultLockoutTiers defines the progressive penalties, mildest first.
var DefaultLockoutTiers = []LockoutTier{
	{Attempts: 5, Duration: 15 * time.Minute},
	{Attempts: 10, Duration: time.Hour},
	{Attempts: 15, Duration: 24 * time.Hour},
}

// LockStatus summarises the lockout state for one email address.
type LockStatus struct {
	Locked   bool
	Duration time.Duration
	Attempts int
}

// LockoutTracker evaluates progressive login lockouts against the
// login-attempt audit log.
type LockoutTracker struct {
	db    *gorm.DB
	tiers []LockoutTier
	now   func() time.Time
}

// LockoutOption customises the tracker.
type LockoutOption func(*LockoutTracker)

// WithLockoutClock injects a custom clock, primarily for testing.
func WithLockoutClock(now func() time.Time) LockoutOption {
	return func(t *LockoutTracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLockoutTiers overrides the penalty tiers.
func WithLockoutTiers(tiers []LockoutTier) LockoutOption {
	return func(t *LockoutTracker) {
		if len(tiers) > 0 {
			t.tiers = tiers
		}
	}
}

// NewLockoutTracker constructs a tracker with the default tiers.
func NewLockoutTracker(db *gorm.DB, opts ...LockoutOption) (*LockoutTracker, error) {
	if db == nil {
		return nil, errors.New("lockout tracker: db is required")
	}

	tracker := &LockoutTracker{
		db:    db,
		tiers: DefaultLockoutTiers,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(tracker)
	}
	return tracker, nil
}

// Status evaluates the highest tier first. A tier locks the account only
// while the triggering burst of failures still sits inside that tier's own
// duration window; once it ages out the account unlocks even though the
// 24-hour total may remain high.
func (t *LockoutTracker) Status(ctx context.Context, email string) (LockStatus, error) {
	now := t.now()

	failCount, err := t.countFailuresSince(ctx, email, now.Add(-attemptWindow))
	if err != nil {
		return LockStatus{}, err
	}

	for i := len(t.tiers) - 1; i >= 0; i-- {
		tier := t.tiers[i]
		if failCount < tier.Attempts {
			continue
		}

		recent, err := t.countFailuresSince(ctx, email, now.Add(-tier.Duration))
		if err != nil {
			return LockStatus{}, err
		}

		if recent >= tier.Attempts {
			return LockStatus{Locked: true, Duration: tier.Duration, Attempts: failCount}, nil
		}
	}

	return LockStatus{Attempts: failCount}, nil
}

// Record appends an attempt and prunes entries older than the 24-hour window.
func (t *LockoutTracker) Record(ctx context.Context, email string, success bool) error {
	attempt := models.LoginAttempt{
		Email:       email,
		AttemptTime: t.now(),
		Success:     success,
	}
	if err := t.db.WithContext(ctx).Create(&attempt).Error; err != nil {
		return fmt.Errorf("lockout tracker: record attempt: %w", err)
	}

	cutoff := t.now().Add(-attemptWindow)
	if err := t.db.WithContext(ctx).
		Where("attempt_time < ?", cutoff).
		Delete(&models.LoginAttempt{}).Error; err != nil {
		return fmt.Errorf("lockout tracker: prune attempts: %w", err)
	}

	return nil
}

func (t *LockoutTracker) countFailuresSince(ctx context.Context, email string, since time.Time) (int, error) {
	var count int64
	err := t.db.WithContext(ctx).
		Model(&models.LoginAttempt{}).
		Where("email = ? AND success = ? AND attempt_time > ?", email, false, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("lockout tracker: count failures: %w", err)
	}
	return int(count), nil
}
