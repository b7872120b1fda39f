package rendering

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
)

// Renderer failure modes.
var (
	ErrCrossOriginTaint = errors.New("cross-origin content tainted the capture")
	ErrDetachedTarget   = errors.New("target is detached or not rendered")
)

// DefaultSelector is the node the page builder wraps target markup in.
const DefaultSelector = "#capture-root"

// Target is the visual node to rasterize. Markup targets carry HTML and are
// captured by a browser renderer; raster targets carry an already rendered
// image and are captured by RasterRenderer.
type Target struct {
	Name     string
	HTML     string
	Selector string // node inside HTML to capture; defaults to the wrapper
	Width    int    // CSS pixels
	Height   int    // CSS pixels
	Raster   image.Image
}

// Validate reports ErrDetachedTarget when the target has nothing to render.
func (t Target) Validate() error {
	if t.HTML == "" && t.Raster == nil {
		return fmt.Errorf("%w: %q has neither markup nor raster content", ErrDetachedTarget, t.Name)
	}
	if t.Raster == nil && (t.Width <= 0 || t.Height <= 0) {
		return fmt.Errorf("%w: %q has no layout size (%dx%d)", ErrDetachedTarget, t.Name, t.Width, t.Height)
	}
	return nil
}

// Size returns the CSS size of the target, taken from the raster when present.
func (t Target) Size() (int, int) {
	if t.Raster != nil && (t.Width <= 0 || t.Height <= 0) {
		b := t.Raster.Bounds()
		return b.Dx(), b.Dy()
	}
	return t.Width, t.Height
}

// RenderOptions contains options for a single capture.
type RenderOptions struct {
	Scale              int         // device pixel ratio, >= 1
	BackgroundColor    color.Color // nil keeps the background transparent
	CrossOriginEnabled bool        // request CORS for cross-origin images
	IncludeDeviceFrame bool
}

// Transparent reports whether the capture keeps an alpha channel.
func (o RenderOptions) Transparent() bool {
	return o.BackgroundColor == nil
}

// Renderer rasterizes a target. Implementations must not return a partial
// image together with a nil error.
type Renderer interface {
	Capture(ctx context.Context, target Target, opts RenderOptions) (image.Image, error)

	// Close cleans up any resources used by the renderer
	Close() error
}
