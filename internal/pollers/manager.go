package pollers

import (
	"context"
	"sort"
	"sync"

	"github.com/rmitchellscott/chatsnap/internal/logging"
)

// Manager starts and stops a set of pollers together.
type Manager struct {
	pollers map[string]Poller
	mu      sync.RWMutex
	running bool
}

// NewManager creates a new poller manager
func NewManager() *Manager {
	return &Manager{
		pollers: make(map[string]Poller),
	}
}

// Register adds a poller, replacing any with the same name.
func (m *Manager) Register(poller Poller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollers[poller.Name()] = poller
	logging.DebugWithComponent(logging.ComponentPoller, "Registered poller", "poller", poller.Name())
}

// Start starts all registered pollers. A poller that fails to start is
// logged and skipped.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	m.running = true

	for name, poller := range m.pollers {
		if err := poller.Start(ctx); err != nil {
			logging.ErrorWithComponent(logging.ComponentPoller, "Failed to start poller", "poller", name, "error", err)
		}
	}
	return nil
}

// Stop stops all pollers and waits for them.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	var wg sync.WaitGroup
	for name, poller := range m.pollers {
		if !poller.IsRunning() {
			continue
		}
		wg.Add(1)
		go func(name string, p Poller) {
			defer wg.Done()
			if err := p.Stop(); err != nil {
				logging.ErrorWithComponent(logging.ComponentPoller, "Error stopping poller", "poller", name, "error", err)
			}
		}(name, poller)
	}
	wg.Wait()
	m.running = false
	return nil
}

// ListPollers returns the registered poller names, sorted.
func (m *Manager) ListPollers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.pollers))
	for name := range m.pollers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}
