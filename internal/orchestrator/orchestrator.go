// Package orchestrator sequences capture, encode and deliver for one export
// at a time and reports every step through an explicit state machine.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/rmitchellscott/chatsnap/internal/capture"
	"github.com/rmitchellscott/chatsnap/internal/delivery"
	"github.com/rmitchellscott/chatsnap/internal/encoding"
	"github.com/rmitchellscott/chatsnap/internal/export"
	"github.com/rmitchellscott/chatsnap/internal/logging"
	"github.com/rmitchellscott/chatsnap/internal/metrics"
	"github.com/rmitchellscott/chatsnap/internal/rendering"
)

// DefaultSuccessWindow is how long Succeeded is shown before returning to
// Idle.
const DefaultSuccessWindow = 3 * time.Second

// SequenceCapturer builds the frame list for animated formats.
type SequenceCapturer interface {
	CaptureSequence(ctx context.Context, target rendering.Target, frameCount int, frameDelay time.Duration, opts capture.Options, progress export.ProgressFunc) ([]export.Frame, error)
}

// EncoderLookup resolves the encoder variant for a format.
type EncoderLookup interface {
	Lookup(f export.Format) (encoding.Encoder, error)
}

// Deliverer hands artifacts and print surfaces to the user.
type Deliverer interface {
	Deliver(ctx context.Context, artifact export.Artifact, mode export.DeliveryMode) (delivery.Receipt, error)
	Print(job export.PrintJob)
}

// Options wires an Orchestrator.
type Options struct {
	Capture            capture.Capturer
	Sequence           SequenceCapturer
	Encoders           EncoderLookup
	Delivery           Deliverer
	Namer              *export.Namer
	Metrics            *metrics.Recorder
	SuccessWindow      time.Duration
	DefaultQuality     int
	DefaultGIFQuality  int
	CrossOriginEnabled bool
}

// Orchestrator runs at most one export at a time. A call made while an
// export is in progress, or while a success is still being shown, is
// dropped with OutcomeSkipped.
type Orchestrator struct {
	opts Options

	mu         sync.Mutex
	state      State
	generation uint64
	observers  map[int]Observer
	nextObsID  int
}

// New creates an orchestrator in the Idle state.
func New(opts Options) *Orchestrator {
	if opts.Namer == nil {
		opts.Namer = export.NewNamer("chatsnap", nil)
	}
	if opts.SuccessWindow < 0 {
		opts.SuccessWindow = 0
	}
	if opts.Sequence == nil && opts.Capture != nil {
		opts.Sequence = capture.NewSequence(opts.Capture, nil)
	}
	return &Orchestrator{
		opts:      opts,
		state:     StateIdle,
		observers: make(map[int]Observer),
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe registers an observer and returns a function that removes it.
func (o *Orchestrator) Subscribe(obs Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextObsID
	o.nextObsID++
	o.observers[id] = obs
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.observers, id)
	}
}

// Export runs the pipeline on the calling goroutine and returns once the
// export reaches Succeeded or Failed. It never panics and never returns the
// underlying error; failures are logged and counted.
func (o *Orchestrator) Export(ctx context.Context, req export.Request, target rendering.Target) Result {
	r, ok := o.acquire(req)
	if !ok {
		return Result{Outcome: OutcomeSkipped}
	}
	r.target = target
	return r.execute(ctx)
}

// Start runs the pipeline on a new goroutine. It reports false when an
// export is already in progress. done, if non-nil, receives the result.
func (o *Orchestrator) Start(ctx context.Context, req export.Request, target rendering.Target, done func(Result)) (string, bool) {
	r, ok := o.acquire(req)
	if !ok {
		return "", false
	}
	r.target = target
	go func() {
		result := r.execute(ctx)
		if done != nil {
			done(result)
		}
	}()
	return r.id, true
}

// acquire is the reentrancy guard: it moves Idle to Capturing atomically.
func (o *Orchestrator) acquire(req export.Request) (*run, bool) {
	o.mu.Lock()
	if o.state.Busy() {
		state := o.state
		o.mu.Unlock()
		o.opts.Metrics.Skipped(string(req.Format))
		logging.DebugWithComponent(logging.ComponentOrchestrator, "Export skipped, orchestrator busy",
			"format", req.Format, "state", state)
		return nil, false
	}
	o.state = StateCapturing
	o.generation++
	r := &run{
		o:          o,
		id:         uuid.NewString(),
		req:        req,
		generation: o.generation,
		started:    time.Now(),
	}
	o.mu.Unlock()

	o.opts.Metrics.Started()
	r.emit(StateCapturing, export.Progress{Percent: 0, Phase: export.PhaseCapturing})
	return r, true
}

// run is the state of one export invocation.
type run struct {
	o          *Orchestrator
	id         string
	req        export.Request
	target     rendering.Target
	generation uint64
	started    time.Time
	progress   progressTracker
	filename   string
	location   string
}

func (r *run) execute(ctx context.Context) (result Result) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("export panicked: %v", p)
			logging.ErrorWithComponent(logging.ComponentOrchestrator, "Recovered panic in export pipeline",
				"export_id", r.id, "panic", p, "stack", string(debug.Stack()))
			result = r.fail(err)
		}
	}()

	if err := r.pipeline(ctx); err != nil {
		return r.fail(err)
	}
	return r.succeed()
}

func (r *run) pipeline(ctx context.Context) error {
	req := r.req.WithDefaults(r.o.opts.DefaultQuality, r.o.opts.DefaultGIFQuality)
	if err := req.Validate(); err != nil {
		return err
	}
	r.req = req
	for _, ignored := range req.IgnoredOptions() {
		logging.DebugWithComponent(logging.ComponentOrchestrator, ignored.Error(), "export_id", r.id)
	}

	logging.InfoWithComponent(logging.ComponentOrchestrator, "Export started",
		"export_id", r.id, "format", req.Format, "scale", req.Scale, "delivery", req.Delivery, "target", r.target.Name)

	encoder, err := r.o.opts.Encoders.Lookup(req.Format)
	if err != nil {
		return err
	}
	r.filename = r.o.opts.Namer.Next(req.Format)
	encOpts := encoding.OptionsFromRequest(req, r.filename)
	capOpts := capture.Options{
		Scale:                 req.Scale,
		TransparentBackground: req.TransparentBackground,
		IncludeDeviceFrame:    req.IncludeDeviceFrame,
		CrossOriginEnabled:    r.o.opts.CrossOriginEnabled,
	}

	var payload []byte
	switch enc := encoder.(type) {
	case encoding.AnimationEncoder:
		frames, err := r.o.opts.Sequence.CaptureSequence(ctx, r.target, req.FrameCount, req.FrameDelay(), capOpts, r.report)
		if err != nil {
			return err
		}
		r.o.opts.Metrics.Frames(len(frames))

		if err := r.enterEncoding(ctx); err != nil {
			return err
		}
		payload, err = enc.EncodeFrames(ctx, frames, encOpts)
		if err != nil {
			return err
		}
		r.report(export.Progress{Percent: animationEncodedPercent, Phase: export.PhaseEncoding})

	case encoding.PrintEncoder:
		bitmap, err := r.captureStill(ctx, capOpts)
		if err != nil {
			return err
		}
		job, err := enc.PrintSurface(ctx, bitmap, encOpts)
		if err != nil {
			return err
		}
		// Capturing goes straight to Finalizing: the print action is the
		// delivery and reports nothing back.
		r.finalize()
		r.o.opts.Delivery.Print(job)
		return nil

	case encoding.StillEncoder:
		bitmap, err := r.captureStill(ctx, capOpts)
		if err != nil {
			return err
		}
		if err := r.enterEncoding(ctx); err != nil {
			return err
		}
		payload, err = enc.Encode(ctx, bitmap, encOpts)
		if err != nil {
			return err
		}
		r.report(export.Progress{Percent: stillEncodedPercent, Phase: export.PhaseEncoding})

	default:
		return &export.EncodeError{Format: req.Format, Err: fmt.Errorf("encoder %T has no known contract", encoder)}
	}

	if len(payload) == 0 {
		return &export.EncodeError{Format: req.Format, Err: errors.New("encoder returned an empty payload")}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.o.opts.Metrics.Artifact(string(req.Format), len(payload))

	artifact := export.Artifact{
		Bytes:    payload,
		MIMEType: req.Format.MIMEType(),
		Filename: r.filename,
		Format:   req.Format,
	}

	r.finalize()
	receipt, err := r.o.opts.Delivery.Deliver(ctx, artifact, req.Delivery)
	if err != nil {
		return err
	}
	r.location = receipt.Location
	return nil
}

func (r *run) captureStill(ctx context.Context, opts capture.Options) (export.Bitmap, error) {
	bitmap, err := r.o.opts.Capture.Capture(ctx, r.target, opts)
	if err != nil {
		return export.Bitmap{}, err
	}
	r.o.opts.Metrics.Frames(1)
	r.report(export.Progress{Percent: stillCapturedPercent, Phase: export.PhaseCapturing})
	return bitmap, nil
}

func (r *run) enterEncoding(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, _ := r.progress.update(export.Progress{Percent: r.progress.current().Percent, Phase: export.PhaseEncoding})
	r.emit(StateEncoding, p)
	return nil
}

func (r *run) finalize() {
	p, _ := r.progress.update(export.Progress{Percent: completePercent, Phase: export.PhaseFinalizing})
	r.emit(StateFinalizing, p)
}

// report forwards a progress change in the current state.
func (r *run) report(p export.Progress) {
	clamped, changed := r.progress.update(p)
	if !changed {
		return
	}
	r.emit(r.o.State(), clamped)
}

func (r *run) succeed() Result {
	elapsed := time.Since(r.started)
	r.emit(StateSucceeded, r.progress.current())
	r.o.opts.Metrics.Finished(string(r.req.Format), metrics.OutcomeSucceeded, "", elapsed)
	logging.InfoWithComponent(logging.ComponentOrchestrator, "Export succeeded",
		"export_id", r.id, "format", r.req.Format, "filename", r.filename, "location", r.location, "duration", elapsed)

	r.o.scheduleReset(r.generation)
	return Result{ExportID: r.id, Outcome: OutcomeSucceeded, Filename: r.filename, Location: r.location}
}

func (r *run) fail(err error) Result {
	stage := export.Stage(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		stage = "cancelled"
	}
	elapsed := time.Since(r.started)

	logging.ErrorWithComponent(logging.ComponentOrchestrator, "Export failed",
		"export_id", r.id, "format", r.req.Format, "stage", stage, "error", err, "duration", elapsed)
	r.o.opts.Metrics.Finished(string(r.req.Format), metrics.OutcomeFailed, stage, elapsed)

	r.emit(StateFailed, r.progress.current())
	r.o.reset(r.generation)
	return Result{ExportID: r.id, Outcome: OutcomeFailed}
}

// emit moves the state machine and notifies observers outside the lock.
func (r *run) emit(state State, p export.Progress) {
	o := r.o
	o.mu.Lock()
	if o.generation == r.generation {
		o.state = state
	}
	observers := lo.Values(o.observers)
	o.mu.Unlock()

	event := Event{
		ExportID: r.id,
		Format:   r.req.Format,
		State:    state,
		Progress: p,
		Filename: r.filename,
		Location: r.location,
		Time:     time.Now(),
	}
	notify(observers, event)
}

func (o *Orchestrator) scheduleReset(generation uint64) {
	if o.opts.SuccessWindow == 0 {
		o.reset(generation)
		return
	}
	time.AfterFunc(o.opts.SuccessWindow, func() { o.reset(generation) })
}

// reset returns to Idle unless a newer export has taken over.
func (o *Orchestrator) reset(generation uint64) {
	o.mu.Lock()
	if o.generation != generation || o.state == StateIdle {
		o.mu.Unlock()
		return
	}
	o.state = StateIdle
	observers := lo.Values(o.observers)
	o.mu.Unlock()

	notify(observers, Event{State: StateIdle, Time: time.Now()})
}

// notify isolates observers from the pipeline: a panicking observer is
// logged and skipped.
func notify(observers []Observer, event Event) {
	for _, obs := range observers {
		func() {
			defer func() {
				if p := recover(); p != nil {
					logging.ErrorWithComponent(logging.ComponentOrchestrator, "Observer panicked",
						"export_id", event.ExportID, "state", event.State, "panic", p)
				}
			}()
			obs(event)
		}()
	}
}
