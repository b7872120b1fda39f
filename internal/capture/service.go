// Package capture turns rendered targets into bitmaps: one capture for still
// formats, a timed sequence of captures for animated ones.
package capture

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"github.com/rmitchellscott/chatsnap/internal/export"
	"github.com/rmitchellscott/chatsnap/internal/logging"
	"github.com/rmitchellscott/chatsnap/internal/rendering"
)

// Options controls a single capture.
type Options struct {
	Scale                 int
	TransparentBackground bool
	IncludeDeviceFrame    bool
	CrossOriginEnabled    bool
}

// RenderOptions maps capture options onto the renderer's contract. Opaque
// captures are rendered onto white.
func (o Options) RenderOptions() rendering.RenderOptions {
	opts := rendering.RenderOptions{
		Scale:              max(o.Scale, 1),
		CrossOriginEnabled: o.CrossOriginEnabled,
		IncludeDeviceFrame: o.IncludeDeviceFrame,
	}
	if !o.TransparentBackground {
		opts.BackgroundColor = color.White
	}
	return opts
}

// Capturer captures a single bitmap. Sequence depends on this rather than on
// *Service so tests can count calls.
type Capturer interface {
	Capture(ctx context.Context, target rendering.Target, opts Options) (export.Bitmap, error)
}

// Service wraps a Renderer with validation and error translation.
type Service struct {
	renderer rendering.Renderer
}

// NewService creates a capture service backed by renderer.
func NewService(renderer rendering.Renderer) *Service {
	return &Service{renderer: renderer}
}

// Capture rasterizes target. Every failure, including an empty result, comes
// back as *export.CaptureError and never alongside a bitmap.
func (s *Service) Capture(ctx context.Context, target rendering.Target, opts Options) (export.Bitmap, error) {
	return s.capture(ctx, target, opts, -1)
}

func (s *Service) capture(ctx context.Context, target rendering.Target, opts Options, frame int) (export.Bitmap, error) {
	fail := func(err error) (export.Bitmap, error) {
		return export.Bitmap{}, &export.CaptureError{Target: target.Name, Frame: frame, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if err := target.Validate(); err != nil {
		return fail(err)
	}

	start := time.Now()
	img, err := s.renderer.Capture(ctx, target, opts.RenderOptions())
	if err != nil {
		return fail(err)
	}

	bitmap := export.Bitmap{Image: img, Scale: max(opts.Scale, 1)}
	if bitmap.Empty() {
		return fail(fmt.Errorf("%w: renderer returned an empty bitmap", rendering.ErrDetachedTarget))
	}

	logging.DebugWithComponent(logging.ComponentCapture, "Captured bitmap",
		"target", target.Name,
		"frame", frame,
		"width", bitmap.Width(),
		"height", bitmap.Height(),
		"duration", time.Since(start))
	return bitmap, nil
}
