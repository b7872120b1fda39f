package pollers

import (
	"context"
	"sync"
	"time"

	"github.com/rmitchellscott/chatsnap/internal/logging"
)

// BasePoller runs a poll function on a fixed interval with bounded retries.
type BasePoller struct {
	config   PollerConfig
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
	pollFunc func(ctx context.Context) error
}

// NewBasePoller creates a new base poller instance
func NewBasePoller(config PollerConfig, pollFunc func(ctx context.Context) error) *BasePoller {
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	return &BasePoller{
		config:   config,
		pollFunc: pollFunc,
	}
}

func (p *BasePoller) Name() string {
	return p.config.Name
}

// Start begins the polling loop. Disabled pollers return nil without
// starting.
func (p *BasePoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	if !p.config.Enabled {
		logging.DebugWithComponent(logging.ComponentPoller, "Poller disabled, skipping start", "poller", p.config.Name)
		return nil
	}

	logging.InfoWithComponent(logging.ComponentPoller, "Starting poller", "poller", p.config.Name, "interval", p.config.Interval)

	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.wg.Add(1)
	go p.pollLoop(ctx)
	return nil
}

// Stop cancels the loop and waits for an in-flight poll to return.
func (p *BasePoller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}

	p.cancel()
	p.wg.Wait()
	p.running = false

	logging.InfoWithComponent(logging.ComponentPoller, "Poller stopped", "poller", p.config.Name)
	return nil
}

func (p *BasePoller) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

func (p *BasePoller) GetInterval() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config.Interval
}

func (p *BasePoller) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	if p.config.RunAtStart {
		p.executeWithRetry(ctx)
	}

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.executeWithRetry(ctx)
		}
	}
}

func (p *BasePoller) executeWithRetry(ctx context.Context) {
	for attempt := 1; attempt <= p.config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return
		}

		pollCtx := ctx
		cancel := func() {}
		if p.config.Timeout > 0 {
			pollCtx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		}
		err := p.pollFunc(pollCtx)
		cancel()
		if err == nil {
			return
		}

		logging.WarnWithComponent(logging.ComponentPoller, "Poll attempt failed",
			"poller", p.config.Name, "attempt", attempt, "max_attempts", p.config.MaxRetries, "error", err)

		if attempt < p.config.MaxRetries {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.config.RetryDelay):
			}
		}
	}

	logging.ErrorWithComponent(logging.ComponentPoller, "Poller giving up until next interval",
		"poller", p.config.Name, "attempts", p.config.MaxRetries)
}
