package rendering

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/rmitchellscott/chatsnap/internal/config"
	"github.com/rmitchellscott/chatsnap/internal/logging"
)

// Renderer backends selectable through RENDERER.
const (
	BackendChrome      = "chrome"
	BackendBrowserless = "browserless"
	BackendRaster      = "raster"
)

// New creates the renderer selected by cfg.Renderer. Browser backends are
// wrapped in a DispatchRenderer so raster targets still capture.
func New(cfg config.Config) (Renderer, error) {
	logging.InfoWithComponent(logging.ComponentRenderer, "Initializing renderer", "backend", cfg.Renderer)

	switch cfg.Renderer {
	case BackendChrome, "":
		chrome, err := NewChromeRenderer(cfg.RenderTimeout)
		if err != nil {
			return nil, err
		}
		return NewDispatchRenderer(chrome), nil
	case BackendBrowserless:
		browserless, err := NewBrowserlessRenderer(cfg.BrowserlessURL, cfg.RenderTimeout)
		if err != nil {
			return nil, err
		}
		return NewDispatchRenderer(browserless), nil
	case BackendRaster:
		return NewRasterRenderer(), nil
	default:
		return nil, fmt.Errorf("unknown renderer backend %q", cfg.Renderer)
	}
}

// DispatchRenderer sends targets that carry a raster to a RasterRenderer and
// everything else to the markup backend. A browser only sees target.HTML.
type DispatchRenderer struct {
	markup Renderer
	raster *RasterRenderer
}

func NewDispatchRenderer(markup Renderer) *DispatchRenderer {
	return &DispatchRenderer{markup: markup, raster: NewRasterRenderer()}
}

func (d *DispatchRenderer) Capture(ctx context.Context, target Target, opts RenderOptions) (image.Image, error) {
	if target.Raster != nil {
		return d.raster.Capture(ctx, target, opts)
	}
	return d.markup.Capture(ctx, target, opts)
}

func (d *DispatchRenderer) Close() error {
	return errors.Join(d.markup.Close(), d.raster.Close())
}
