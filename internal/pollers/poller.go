// Package pollers runs periodic housekeeping for the export server:
// retention of stored artifacts and health summaries.
package pollers

import (
	"context"
	"time"
)

// Poller represents a background polling service
type Poller interface {
	Name() string

	// Start begins the polling loop in a goroutine
	Start(ctx context.Context) error

	// Stop gracefully stops the poller
	Stop() error

	IsRunning() bool
	GetInterval() time.Duration
}

// PollerConfig holds configuration for a poller
type PollerConfig struct {
	Name       string
	Interval   time.Duration
	Enabled    bool
	RunAtStart bool
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// DefaultConfig returns a default poller configuration
func DefaultConfig(name string, interval time.Duration) PollerConfig {
	return PollerConfig{
		Name:       name,
		Interval:   interval,
		Enabled:    interval > 0,
		RunAtStart: true,
		MaxRetries: 3,
		RetryDelay: 30 * time.Second,
		Timeout:    5 * time.Minute,
	}
}
