package export

import (
	"fmt"
	"sync"
	"time"
)

// Namer generates artifact filenames of the form
// {product}-export-{unix-epoch-ms}.{ext}. Timestamps are strictly increasing
// per Namer so two exports in the same millisecond never collide.
type Namer struct {
	product string
	now     func() time.Time

	mu   sync.Mutex
	last int64
}

// NewNamer creates a Namer. A nil clock means time.Now.
func NewNamer(product string, now func() time.Time) *Namer {
	if now == nil {
		now = time.Now
	}
	return &Namer{product: product, now: now}
}

// Next returns a fresh filename for the given format.
func (n *Namer) Next(f Format) string {
	n.mu.Lock()
	ms := n.now().UnixMilli()
	if ms <= n.last {
		ms = n.last + 1
	}
	n.last = ms
	n.mu.Unlock()

	return fmt.Sprintf("%s-export-%d.%s", n.product, ms, f.Extension())
}
