// Package sweep purges distribution series left behind when a receipt
// was interrupted between staging and cleanup, along with expired token
// revocations.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger deletes series staged before cutoff and returns them.
type Purger interface {
	PurgeStaleSeries(ctx context.Context, cutoff time.Time) ([]int64, error)
}

// TokenPurger deletes token revocations that expired before now.
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper purges series older than MaxAge. Tokens is optional.
type Sweeper struct {
	Purger Purger
	Tokens TokenPurger
	MaxAge time.Duration
	Now    func() time.Time
}

// Run purges once and returns the purged series.
func (s *Sweeper) Run(ctx context.Context) ([]int64, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	at := now()
	cutoff := at.Add(-s.MaxAge)

	purged, err := s.Purger.PurgeStaleSeries(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("purging series staged before %s: %w", cutoff.Format(time.DateTime), err)
	}
	if len(purged) > 0 {
		slog.Info("stale distribution series purged", "count", len(purged), "series", purged, "cutoff", cutoff)
	}

	if s.Tokens != nil {
		n, err := s.Tokens.PurgeExpiredTokens(ctx, at)
		if err != nil {
			return purged, err
		}
		if n > 0 {
			slog.Info("expired token revocations purged", "count", n)
		}
	}
	return purged, nil
}

// Start schedules the sweep on a standard cron spec or descriptor such as
// "@every 1h". Stop the returned scheduler to end it.
func Start(ctx context.Context, schedule string, s *Sweeper) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := s.Run(ctx); err != nil {
			slog.Error("distribution series sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling sweep %q: %w", schedule, err)
	}
	c.Start()
	slog.Info("distribution series sweep scheduled", "schedule", schedule, "max_age", s.MaxAge)
	return c, nil
}
