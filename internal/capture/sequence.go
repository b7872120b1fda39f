package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rmitchellscott/chatsnap/internal/export"
	"github.com/rmitchellscott/chatsnap/internal/logging"
	"github.com/rmitchellscott/chatsnap/internal/rendering"
)

// SequenceShare is the share of the combined capture and encode progress
// range reserved for frame capture.
const SequenceShare = 80

// FrameHook runs before frame index is captured and returns the target to
// capture, which lets callers show a different scroll or typing state per
// frame. A nil hook captures the same target every time.
type FrameHook func(ctx context.Context, index int, target rendering.Target) (rendering.Target, error)

// Sequence builds the frame list for animated exports.
type Sequence struct {
	capturer Capturer
	hook     FrameHook
}

// NewSequence creates a sequence capture driving capturer.
func NewSequence(capturer Capturer, hook FrameHook) *Sequence {
	return &Sequence{capturer: capturer, hook: hook}
}

// CaptureSequence captures frameCount frames one after another, each stamped
// with frameDelay. Progress is reported after every frame over [0, 80]. The
// first failure aborts the sequence and no frames are returned.
func (s *Sequence) CaptureSequence(ctx context.Context, target rendering.Target, frameCount int, frameDelay time.Duration, opts Options, progress export.ProgressFunc) ([]export.Frame, error) {
	if frameCount < 1 {
		return nil, &export.CaptureError{Target: target.Name, Frame: -1, Err: fmt.Errorf("frame count must be at least 1, got %d", frameCount)}
	}
	if frameDelay <= 0 {
		return nil, &export.CaptureError{Target: target.Name, Frame: -1, Err: fmt.Errorf("frame delay must be positive, got %s", frameDelay)}
	}

	frames := make([]export.Frame, 0, frameCount)
	current := target
	for i := 0; i < frameCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, &export.CaptureError{Target: target.Name, Frame: i, Err: err}
		}

		if s.hook != nil {
			next, err := s.hook(ctx, i, current)
			if err != nil {
				return nil, &export.CaptureError{Target: target.Name, Frame: i, Err: fmt.Errorf("frame hook: %w", err)}
			}
			current = next
		}

		bitmap, err := s.captureFrame(ctx, current, opts, i)
		if err != nil {
			logging.WarnWithComponent(logging.ComponentSequence, "Sequence aborted, discarding frames",
				"target", target.Name, "frame", i, "captured", len(frames), "error", err)
			return nil, err
		}
		frames = append(frames, export.Frame{Bitmap: bitmap, Delay: frameDelay})

		if progress != nil {
			progress(export.Progress{
				Percent: (i + 1) * SequenceShare / frameCount,
				Phase:   export.PhaseCapturing,
			})
		}
	}

	logging.DebugWithComponent(logging.ComponentSequence, "Sequence captured",
		"target", target.Name, "frames", len(frames), "delay", frameDelay)
	return frames, nil
}

// captureFrame tags the failure with the frame index. A *Service is asked
// directly so the error carries it from the start.
func (s *Sequence) captureFrame(ctx context.Context, target rendering.Target, opts Options, index int) (export.Bitmap, error) {
	if svc, ok := s.capturer.(*Service); ok {
		return svc.capture(ctx, target, opts, index)
	}

	bitmap, err := s.capturer.Capture(ctx, target, opts)
	if err == nil {
		return bitmap, nil
	}
	var captureErr *export.CaptureError
	if errors.As(err, &captureErr) {
		return export.Bitmap{}, &export.CaptureError{Target: captureErr.Target, Frame: index, Err: captureErr.Err}
	}
	return export.Bitmap{}, &export.CaptureError{Target: target.Name, Frame: index, Err: err}
}
