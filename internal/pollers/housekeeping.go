package pollers

import (
	"context"
	"time"

	"github.com/rmitchellscott/chatsnap/internal/logging"
	"github.com/rmitchellscott/chatsnap/internal/metrics"
	"github.com/rmitchellscott/chatsnap/internal/storage"
)

// NewRetentionPoller removes stored exports whose name starts with prefix
// once they are older than maxAge. maxAge <= 0 disables it.
func NewRetentionPoller(backend storage.Backend, prefix string, maxAge, interval time.Duration) *BasePoller {
	cfg := DefaultConfig("export-retention", interval)
	cfg.Enabled = cfg.Enabled && maxAge > 0 && backend != nil

	return NewBasePoller(cfg, func(ctx context.Context) error {
		removed, err := storage.CleanupOldExports(ctx, backend, prefix, maxAge)
		if err != nil {
			return err
		}
		if removed > 0 {
			logging.InfoWithComponent(logging.ComponentPoller, "Removed old exports", "count", removed, "max_age", maxAge)
		}
		return nil
	})
}

// NewHealthPoller logs the export health summary every interval.
func NewHealthPoller(monitor *metrics.Monitor, interval time.Duration) *BasePoller {
	cfg := DefaultConfig("health-summary", interval)
	cfg.Enabled = cfg.Enabled && monitor != nil
	cfg.RunAtStart = false
	cfg.MaxRetries = 1

	return NewBasePoller(cfg, func(context.Context) error {
		monitor.LogHealthSummary()
		return nil
	})
}

// SessionEvictor drops sessions idle for longer than maxIdle.
type SessionEvictor interface {
	EvictIdleSessions(maxIdle time.Duration) int
}

// NewSessionPoller evicts idle API sessions. maxIdle <= 0 disables it.
func NewSessionPoller(evictor SessionEvictor, maxIdle, interval time.Duration) *BasePoller {
	cfg := DefaultConfig("session-eviction", interval)
	cfg.Enabled = cfg.Enabled && maxIdle > 0 && evictor != nil
	cfg.RunAtStart = false
	cfg.MaxRetries = 1

	return NewBasePoller(cfg, func(context.Context) error {
		evictor.EvictIdleSessions(maxIdle)
		return nil
	})
}
