package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/huddleapp/huddle/internal/services"
	"github.com/huddleapp/huddle/pkg/logger"
)

const (
	defaultReadRetention = 30 * 24 * time.Hour
	defaultInviteSpec    = "@hourly"
	defaultPruneSpec     = "@daily"
)

// Cleaner coordinates background maintenance tasks: purging expired workspace
// invites and pruning read notifications past their retention window.
type Cleaner struct {
	invites       *services.InviteService
	notifications *services.NotificationService
	cron          *cron.Cron
	now           func() time.Time
	log           *zap.Logger
	retention     time.Duration

	inviteSchedule string
	pruneSchedule  string
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

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithReadRetention adjusts how long read notifications are kept before pruning.
func WithReadRetention(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.retention = d
		}
	}
}

// WithInviteSchedule overrides the cron specification for invite cleanup.
func WithInviteSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.inviteSchedule = spec
		}
	}
}

// WithPruneSchedule overrides the cron specification for notification pruning.
func WithPruneSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.pruneSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency
// results in the corresponding cleanup job being skipped.
func NewCleaner(invites *services.InviteService, notifications *services.NotificationService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		invites:        invites,
		notifications:  notifications,
		now:            time.Now,
		retention:      defaultReadRetention,
		inviteSchedule: defaultInviteSpec,
		pruneSchedule:  defaultPruneSpec,
		log:            logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at
// least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if c.invites == nil && c.notifications == nil {
		return nil
	}

	if c.invites != nil {
		if _, err := c.cron.AddFunc(c.inviteSchedule, func() {
			if _, err := c.invites.PruneExpired(context.Background()); err != nil {
				c.log.Warn("invite cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.notifications != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.pruneSchedule, func() {
			cutoff := c.now().Add(-c.retention)
			if _, err := c.notifications.PruneRead(context.Background(), cutoff); err != nil {
				c.log.Warn("notification prune failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
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

// RunOnce executes all configured cleanup routines sequentially. Primarily
// used in tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.invites != nil {
		if _, err := c.invites.PruneExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.notifications != nil && c.retention > 0 {
		cutoff := c.now().Add(-c.retention)
		if _, err := c.notifications.PruneRead(ctx, cutoff); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
