package rendering

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmitchellscott/chatsnap/internal/config"
	"github.com/rmitchellscott/chatsnap/internal/imageprocessing"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestTargetValidate(t *testing.T) {
	assert.ErrorIs(t, Target{Name: "empty"}.Validate(), ErrDetachedTarget)
	assert.ErrorIs(t, Target{Name: "unsized", HTML: "<p></p>"}.Validate(), ErrDetachedTarget)
	assert.NoError(t, Target{HTML: "<p></p>", Width: 1, Height: 1}.Validate())
	assert.NoError(t, Target{Raster: solid(2, 2, color.NRGBA{A: 255})}.Validate())

	w, h := Target{Raster: solid(7, 3, color.NRGBA{})}.Size()
	assert.Equal(t, 7, w)
	assert.Equal(t, 3, h)
}

func TestRasterRendererScales(t *testing.T) {
	r := NewRasterRenderer()
	target := Target{Name: "chat", Raster: solid(375, 812, color.NRGBA{R: 10, G: 20, B: 30, A: 255})}

	img, err := r.Capture(context.Background(), target, RenderOptions{Scale: 2})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 750, 1624), img.Bounds())
}

func TestRasterRendererBackgroundAndFrame(t *testing.T) {
	r := NewRasterRenderer()
	target := Target{Raster: solid(40, 40, color.NRGBA{})}

	transparent, err := r.Capture(context.Background(), target, RenderOptions{Scale: 1})
	require.NoError(t, err)
	assert.True(t, imageprocessing.HasTransparency(transparent))

	white, err := r.Capture(context.Background(), target, RenderOptions{Scale: 1, BackgroundColor: color.White})
	require.NoError(t, err)
	assert.False(t, imageprocessing.HasTransparency(white))

	framed, err := r.Capture(context.Background(), target, RenderOptions{Scale: 2, IncludeDeviceFrame: true})
	require.NoError(t, err)
	assert.Equal(t, 80+4*imageprocessing.DeviceFrameBezel, framed.Bounds().Dx())
}

func TestRasterRendererErrors(t *testing.T) {
	r := NewRasterRenderer()
	_, err := r.Capture(context.Background(), Target{Name: "markup", HTML: "<p></p>"}, RenderOptions{Scale: 1})
	assert.ErrorIs(t, err, ErrDetachedTarget)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Capture(ctx, Target{Raster: solid(1, 1, color.NRGBA{})}, RenderOptions{Scale: 1})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBrowserlessRendererRequest(t *testing.T) {
	var got HTMLScreenshotRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/screenshot", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "image/png")
		require.NoError(t, png.Encode(w, solid(200, 100, color.NRGBA{R: 255, A: 255})))
	}))
	defer srv.Close()

	r, err := NewBrowserlessRenderer(srv.URL+"/", time.Second)
	require.NoError(t, err)

	target := Target{Name: "chat", HTML: "<p>hello</p>", Width: 100, Height: 50}
	img, err := r.Capture(context.Background(), target, RenderOptions{Scale: 2})
	require.NoError(t, err)

	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 100, got.Viewport.Width)
	assert.Equal(t, 50, got.Viewport.Height)
	assert.Equal(t, 2, got.Viewport.DeviceScaleFactor)
	assert.True(t, got.Options.OmitBackground)
	assert.Equal(t, DefaultSelector, got.Selector)
	assert.Contains(t, got.HTML, "<p>hello</p>")
	require.NotNil(t, got.WaitForSelector)
	assert.Equal(t, "body[data-render-complete='true']", got.WaitForSelector.Selector)
}

func TestBrowserlessRendererFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r, err := NewBrowserlessRenderer(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = r.Capture(context.Background(), Target{HTML: "<p></p>", Width: 1, Height: 1}, RenderOptions{Scale: 1})
	assert.ErrorContains(t, err, "status 500")

	_, err = NewBrowserlessRenderer("", time.Second)
	assert.Error(t, err)
}

func TestNewSelectsBackend(t *testing.T) {
	r, err := New(config.Config{Renderer: BackendRaster})
	require.NoError(t, err)
	assert.IsType(t, &RasterRenderer{}, r)

	r, err = New(config.Config{Renderer: BackendBrowserless, BrowserlessURL: "http://localhost:3000"})
	require.NoError(t, err)
	require.IsType(t, &DispatchRenderer{}, r)
	assert.IsType(t, &BrowserlessRenderer{}, r.(*DispatchRenderer).markup)

	_, err = New(config.Config{Renderer: "gpu"})
	assert.Error(t, err)
}

// markupOnly behaves like a browser backend: it sees only target.HTML.
type markupOnly struct {
	calls  int
	closed bool
}

func (m *markupOnly) Capture(ctx context.Context, target Target, opts RenderOptions) (image.Image, error) {
	m.calls++
	if target.HTML == "" {
		return solid(target.Width*opts.Scale, target.Height*opts.Scale, color.NRGBA{}), nil
	}
	return solid(target.Width*opts.Scale, target.Height*opts.Scale, color.NRGBA{B: 255, A: 255}), nil
}

func (m *markupOnly) Close() error {
	m.closed = true
	return nil
}

func TestDispatchRendererRoutesRasterTargets(t *testing.T) {
	markup := &markupOnly{}
	r := NewDispatchRenderer(markup)

	red := color.NRGBA{R: 255, A: 255}
	img, err := r.Capture(context.Background(), Target{Name: "shot", Raster: solid(10, 20, red)}, RenderOptions{Scale: 2})
	require.NoError(t, err)
	assert.Zero(t, markup.calls)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 40, img.Bounds().Dy())
	rr, _, bb, _ := img.At(10, 20).RGBA()
	assert.Greater(t, rr, uint32(0xf000))
	assert.Zero(t, bb)

	img, err = r.Capture(context.Background(), Target{HTML: "<p>hi</p>", Width: 3, Height: 4}, RenderOptions{Scale: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, markup.calls)
	assert.Equal(t, 3, img.Bounds().Dx())

	require.NoError(t, r.Close())
	assert.True(t, markup.closed)
}
