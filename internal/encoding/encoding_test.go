package encoding

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmitchellscott/chatsnap/internal/export"
)

func chatBitmap(w, h, scale int) export.Bitmap {
	img := image.NewNRGBA(image.Rect(0, 0, w*scale, h*scale))
	for y := 0; y < h*scale; y++ {
		for x := 0; x < w*scale; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 3), B: uint8((x ^ y) * 5), A: 255})
		}
	}
	return export.Bitmap{Image: img, Scale: scale}
}

func stillEncoder(t *testing.T, r *Registry, f export.Format) StillEncoder {
	t.Helper()
	e, err := r.Lookup(f)
	require.NoError(t, err)
	still, ok := e.(StillEncoder)
	require.True(t, ok, "%s is not a still encoder", f)
	return still
}

func TestStillSignatures(t *testing.T) {
	r := NewRegistry(Settings{Software: "chatsnap v0.1.0", DocumentMode: "pdf"})
	signatures := map[export.Format][]byte{
		export.FormatPNG:  {0x89, 0x50, 0x4E, 0x47},
		export.FormatJPEG: {0xFF, 0xD8},
		export.FormatPDF:  []byte("%PDF"),
	}

	for _, scale := range []int{1, 2, 3} {
		bmp := chatBitmap(24, 40, scale)
		for f, sig := range signatures {
			data, err := stillEncoder(t, r, f).Encode(context.Background(), bmp, Options{Quality: 90, Title: "chat"})
			require.NoError(t, err, "%s at %dx", f, scale)
			assert.True(t, bytes.HasPrefix(data, sig), "%s at %dx starts with %x", f, scale, data[:min(len(data), 8)])
		}

		data, err := stillEncoder(t, r, export.FormatSVG).Encode(context.Background(), bmp, Options{})
		require.NoError(t, err)
		assert.Contains(t, string(data), "<svg")
	}
}

func TestPNGScenarioTransparentAtScale2(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 750, 1624))
	img.SetNRGBA(10, 10, color.NRGBA{R: 255, A: 128})

	data, err := NewPNGEncoder("chatsnap").Encode(context.Background(), export.Bitmap{Image: img, Scale: 2}, Options{Transparent: true})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 0x50, 0x4E, 0x47}, data[:4])

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 750, decoded.Bounds().Dx())
	assert.Equal(t, 1624, decoded.Bounds().Dy())
	_, _, _, a := decoded.At(0, 0).RGBA()
	assert.Zero(t, a)
}

func TestPNGIgnoresQuality(t *testing.T) {
	bmp := chatBitmap(16, 16, 1)
	e := NewPNGEncoder("x")
	a, err := e.Encode(context.Background(), bmp, Options{Quality: 10})
	require.NoError(t, err)
	b, err := e.Encode(context.Background(), bmp, Options{Quality: 100})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestJPEGQualityIsMonotonic(t *testing.T) {
	bmp := chatBitmap(64, 64, 2)
	e := NewJPEGEncoder()

	low, err := e.Encode(context.Background(), bmp, Options{Quality: 10})
	require.NoError(t, err)
	high, err := e.Encode(context.Background(), bmp, Options{Quality: 100})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(low), len(high))

	def, err := e.Encode(context.Background(), bmp, Options{})
	require.NoError(t, err)
	explicit, err := e.Encode(context.Background(), bmp, Options{Quality: export.DefaultQuality})
	require.NoError(t, err)
	assert.Equal(t, explicit, def)
}

func TestSVGEmbedsRasterAndDocumentsLimitation(t *testing.T) {
	data, err := NewSVGEncoder("x").Encode(context.Background(), chatBitmap(30, 20, 2), Options{Title: "a<b"})
	require.NoError(t, err)

	doc := string(data)
	assert.True(t, strings.HasPrefix(doc, "<?xml"))
	assert.Contains(t, doc, `width="30" height="20"`)
	assert.Contains(t, doc, "data:image/png;base64,")
	assert.Contains(t, doc, SVGLimitation)
	assert.Contains(t, doc, "a&lt;b")
}

func TestPrintSurface(t *testing.T) {
	r := NewRegistry(Settings{})
	e, err := r.Lookup(export.FormatPDF)
	require.NoError(t, err)
	printer, ok := e.(PrintEncoder)
	require.True(t, ok, "print mode registers a print encoder")

	job, err := printer.PrintSurface(context.Background(), chatBitmap(375, 200, 2), Options{Title: "chatsnap-export-1.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 375, job.Width)
	assert.Equal(t, 200, job.Height)
	assert.Equal(t, "chatsnap-export-1.pdf", job.Filename)

	page := string(job.HTML)
	assert.Contains(t, page, "size: 375px 200px")
	assert.Contains(t, page, "window.print()")
	assert.Contains(t, page, `src="data:image/png;base64,`)
}

func TestGIFFrameCountAndDelays(t *testing.T) {
	frames := make([]export.Frame, 5)
	for i := range frames {
		frames[i] = export.Frame{Bitmap: chatBitmap(20, 30, 1), Delay: 500 * time.Millisecond}
	}

	data, err := NewGIFEncoder(nil).EncodeFrames(context.Background(), frames, Options{GIFQuality: 10, FrameDuration: 500 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "GIF89a", string(data[:6]))

	decoded, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, decoded.Image, 5)
	for _, d := range decoded.Delay {
		assert.Equal(t, 50, d)
	}
	assert.Equal(t, 0, decoded.LoopCount)
}

func TestGIFTransparencyAndRepeat(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	img.SetNRGBA(1, 1, color.NRGBA{B: 255, A: 255})
	frames := []export.Frame{{Bitmap: export.Bitmap{Image: img, Scale: 1}, Delay: 100 * time.Millisecond}}

	data, err := NewGIFEncoder(nil).EncodeFrames(context.Background(), frames, Options{GIFQuality: 25, Repeat: -1, Transparent: true})
	require.NoError(t, err)

	decoded, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, -1, decoded.LoopCount)
	frame := decoded.Image[0]
	_, _, _, a := frame.Palette[frame.ColorIndexAt(0, 0)].RGBA()
	assert.Zero(t, a)
}

type droppingAnimator struct{}

func (droppingAnimator) Encode(ctx context.Context, frames []export.Frame, opts AnimationOptions) ([]byte, error) {
	return PaletteAnimator{}.Encode(ctx, frames[:1], opts)
}

type failingAnimator struct{}

func (failingAnimator) Encode(context.Context, []export.Frame, AnimationOptions) ([]byte, error) {
	return nil, errors.New("out of memory")
}

func TestGIFCollaboratorFailures(t *testing.T) {
	frames := []export.Frame{
		{Bitmap: chatBitmap(4, 4, 1), Delay: time.Second},
		{Bitmap: chatBitmap(4, 4, 1), Delay: time.Second},
	}

	_, err := NewGIFEncoder(droppingAnimator{}).EncodeFrames(context.Background(), frames, Options{})
	var encodeErr *export.EncodeError
	require.ErrorAs(t, err, &encodeErr)
	assert.Contains(t, err.Error(), "produced 1 frames, want 2")

	_, err = NewGIFEncoder(failingAnimator{}).EncodeFrames(context.Background(), frames, Options{})
	require.ErrorAs(t, err, &encodeErr)
	assert.Equal(t, export.FormatGIF, encodeErr.Format)

	_, err = NewGIFEncoder(nil).EncodeFrames(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestEmptyBitmapIsEncodeError(t *testing.T) {
	_, err := NewPNGEncoder("").Encode(context.Background(), export.Bitmap{}, Options{})
	var encodeErr *export.EncodeError
	assert.ErrorAs(t, err, &encodeErr)
}

func TestCentiseconds(t *testing.T) {
	assert.Equal(t, 50, centiseconds(500*time.Millisecond))
	assert.Equal(t, 1, centiseconds(time.Millisecond))
	assert.Equal(t, 7, centiseconds(66*time.Millisecond))
}
