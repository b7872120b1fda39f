package orchestrator

import (
	"sync"

	"github.com/rmitchellscott/chatsnap/internal/export"
)

// Progress milestones, in percent of the whole export.
const (
	stillCapturedPercent    = 50
	stillEncodedPercent     = 90
	animationEncodedPercent = 95
	completePercent         = 100
)

// progressTracker clamps reports so the percentage never decreases within a
// run and only reaches 100 in the finalizing phase.
type progressTracker struct {
	mu   sync.Mutex
	last export.Progress
	seen bool
}

// update returns the clamped progress and whether it differs from the last
// reported value.
func (t *progressTracker) update(p export.Progress) (export.Progress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p.Percent = min(max(p.Percent, 0), completePercent)
	if p.Phase != export.PhaseFinalizing && p.Percent >= completePercent {
		p.Percent = completePercent - 1
	}
	if p.Percent < t.last.Percent {
		p.Percent = t.last.Percent
	}

	changed := !t.seen || p != t.last
	t.last = p
	t.seen = true
	return p, changed
}

func (t *progressTracker) current() export.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
