package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/schoolgate/schoolgate/internal/models"
	"github.com/schoolgate/schoolgate/pkg/logger"
	"github.com/schoolgate/schoolgate/pkg/metrics"
)

const (
	defaultPurgeSpec = "@daily"
	defaultTokenSpec = "@hourly"
)

// Purger coordinates background maintenance: the daily notification wipe and
// removal of expired password reset tokens. Notifications are day-scoped
// operational traffic, not an archive, so the purge removes every record.
type Purger struct {
	db   *gorm.DB
	cron *cron.Cron
	now  func() time.Time
	log  *zap.Logger

	purgeSchedule string
	tokenSchedule string
}

// Option customises the Purger.
type Option func(*Purger)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(p *Purger) {
		if c != nil {
			p.cron = c
		}
	}
}

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(p *Purger) {
		if now != nil {
			p.now = now
		}
	}
}

// WithPurgeSchedule overrides the cron specification for the notification wipe.
func WithPurgeSchedule(spec string) Option {
	return func(p *Purger) {
		if spec != "" {
			p.purgeSchedule = spec
		}
	}
}

// WithTokenSchedule overrides the cron specification for reset token cleanup.
func WithTokenSchedule(spec string) Option {
	return func(p *Purger) {
		if spec != "" {
			p.tokenSchedule = spec
		}
	}
}

// NewPurger constructs a Purger with sensible defaults.
func NewPurger(db *gorm.DB, opts ...Option) *Purger {
	purger := &Purger{
		db:            db,
		now:           time.Now,
		purgeSchedule: defaultPurgeSpec,
		tokenSchedule: defaultTokenSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(purger)
	}

	if purger.cron == nil {
		purger.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return purger
}

// Start registers the maintenance jobs with the cron scheduler and launches it.
func (p *Purger) Start() error {
	if p.db == nil {
		return nil
	}

	if _, err := p.cron.AddFunc(p.purgeSchedule, func() {
		if _, err := p.PurgeNotifications(context.Background()); err != nil {
			p.log.Warn("notification purge failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	if _, err := p.cron.AddFunc(p.tokenSchedule, func() {
		if _, err := p.CleanupResetTokens(context.Background()); err != nil {
			p.log.Warn("reset token cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	p.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (p *Purger) Stop() context.Context {
	if p.cron == nil {
		return context.Background()
	}
	return p.cron.Stop()
}

// RunOnce executes all maintenance routines sequentially. Primarily used in
// tests and by the manual cleanup endpoint.
func (p *Purger) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if _, err := p.PurgeNotifications(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := p.CleanupResetTokens(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}

// PurgeNotifications removes every notification record and reports how many
// were deleted.
func (p *Purger) PurgeNotifications(ctx context.Context) (int64, error) {
	if p.db == nil {
		return 0, errors.New("purge notifications: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := p.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge notifications: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.NotificationsPurged.Add(float64(result.RowsAffected))
		p.log.Info("purged notifications", zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// CleanupResetTokens clears expired password reset tokens off user records.
func (p *Purger) CleanupResetTokens(ctx context.Context) (int64, error) {
	if p.db == nil {
		return 0, errors.New("cleanup reset tokens: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := p.db.WithContext(ctx).Model(&models.User{}).
		Where("password_reset_expires IS NOT NULL AND password_reset_expires < ?", p.now().UTC()).
		Updates(map[string]any{
			"password_reset_token":   "",
			"password_reset_expires": nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup reset tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
