package rendering

import (
	"context"
	"fmt"
	"image"

	"github.com/rmitchellscott/chatsnap/internal/imageprocessing"
)

// RasterRenderer captures targets that already carry a rendered image. It
// upsamples by the capture scale and applies background and frame in-process,
// so it needs no browser.
type RasterRenderer struct{}

// NewRasterRenderer creates a new raster renderer
func NewRasterRenderer() *RasterRenderer {
	return &RasterRenderer{}
}

// Capture scales target.Raster by opts.Scale.
func (r *RasterRenderer) Capture(ctx context.Context, target Target, opts RenderOptions) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if target.Raster == nil {
		return nil, fmt.Errorf("%w: %q has no raster content", ErrDetachedTarget, target.Name)
	}
	if b := target.Raster.Bounds(); b.Empty() {
		return nil, fmt.Errorf("%w: %q raster is empty", ErrDetachedTarget, target.Name)
	}
	if opts.Scale < 1 {
		opts.Scale = 1
	}

	out := imageprocessing.Scale(target.Raster, opts.Scale)
	if opts.IncludeDeviceFrame {
		out = imageprocessing.AddDeviceFrame(out, opts.Scale)
	}
	if opts.BackgroundColor != nil {
		out = imageprocessing.Flatten(out, opts.BackgroundColor)
	}
	return out, nil
}

// Close is a no-op.
func (r *RasterRenderer) Close() error {
	return nil
}
