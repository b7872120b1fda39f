package orchestrator

import (
	"time"

	"github.com/rmitchellscott/chatsnap/internal/export"
)

// State is a node of the export state machine.
type State string

const (
	StateIdle       State = "idle"
	StateCapturing  State = "capturing"
	StateEncoding   State = "encoding"
	StateFinalizing State = "finalizing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Busy reports whether an export occupies the orchestrator in this state.
func (s State) Busy() bool {
	return s != StateIdle
}

// Outcome is all a caller learns about an export.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Result is returned by Export. Filename and Location are set on success
// only; Location is empty for print surfaces.
type Result struct {
	ExportID string  `json:"exportId,omitempty"`
	Outcome  Outcome `json:"outcome"`
	Filename string  `json:"filename,omitempty"`
	Location string  `json:"location,omitempty"`
}

// Event is sent to observers on every state transition and progress change.
type Event struct {
	ExportID string          `json:"exportId"`
	Format   export.Format   `json:"format"`
	State    State           `json:"state"`
	Progress export.Progress `json:"progress"`
	Filename string          `json:"filename,omitempty"`
	Location string          `json:"location,omitempty"`
	Time     time.Time       `json:"time"`
}

// Observer receives events. Observers run on the exporting goroutine and
// must not block.
type Observer func(Event)
