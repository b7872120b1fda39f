package export

import (
	"errors"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" JPG ")
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, f)

	f, err = ParseFormat("gif")
	require.NoError(t, err)
	assert.True(t, f.IsAnimated())

	_, err = ParseFormat("webp")
	assert.ErrorContains(t, err, "png, jpeg, svg, pdf, gif")
}

func TestFormatMetadata(t *testing.T) {
	want := map[Format][2]string{
		FormatPNG:  {"image/png", "png"},
		FormatJPEG: {"image/jpeg", "jpg"},
		FormatSVG:  {"image/svg+xml", "svg"},
		FormatPDF:  {"application/pdf", "pdf"},
		FormatGIF:  {"image/gif", "gif"},
	}
	for f, w := range want {
		assert.Equal(t, w[0], f.MIMEType(), f)
		assert.Equal(t, w[1], f.Extension(), f)
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr string
	}{
		{"png ok", Request{Format: FormatPNG, Scale: 2, TransparentBackground: true}, ""},
		{"quality ignored for png", Request{Format: FormatPNG, Scale: 1, Quality: 40}, ""},
		{"gif ok", Request{Format: FormatGIF, Scale: 1, FrameCount: 5, FrameDuration: 500}, ""},
		{"zero scale", Request{Format: FormatPNG, Scale: 0}, "Scale must be at least 1"},
		{"scale too large", Request{Format: FormatPNG, Scale: 9}, "Scale must be at most 4"},
		{"unknown format", Request{Format: "bmp", Scale: 1}, "Format must be one of"},
		{"quality out of range", Request{Format: FormatJPEG, Scale: 1, Quality: 101}, "Quality must be at most 100"},
		{"gif without frames", Request{Format: FormatGIF, Scale: 1, FrameDuration: 100}, "frameCount must be at least 1"},
		{"gif without duration", Request{Format: FormatGIF, Scale: 1, FrameCount: 3}, "frameDuration must be positive"},
		{"bad delivery", Request{Format: FormatPNG, Scale: 1, Delivery: "fax"}, "Delivery must be one of"},
		{"out of range quality ignored for png", Request{Format: FormatPNG, Scale: 1, Quality: 150}, ""},
		{"negative quality ignored for svg", Request{Format: FormatSVG, Scale: 1, Quality: -5}, ""},
		{"frame count ignored for png", Request{Format: FormatPNG, Scale: 1, FrameCount: 1000}, ""},
		{"gif quality ignored for pdf", Request{Format: FormatPDF, Scale: 1, GIFQuality: 50, Repeat: -7}, ""},
		{"gif quality out of range", Request{Format: FormatGIF, Scale: 1, FrameCount: 2, FrameDuration: 100, GIFQuality: 50}, "GIFQuality must be at most 30"},
		{"gif too many frames", Request{Format: FormatGIF, Scale: 1, FrameCount: 1000, FrameDuration: 100}, "FrameCount must be at most 600"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRequestWithDefaults(t *testing.T) {
	req := Request{Format: FormatJPEG, Scale: 1}.WithDefaults(0, 0)
	assert.Equal(t, DefaultQuality, req.Quality)
	assert.Equal(t, DefaultGIFQuality, req.GIFQuality)
	assert.Equal(t, DeliverDownload, req.Delivery)

	req = Request{Format: FormatJPEG, Scale: 1, Quality: 30}.WithDefaults(75, 5)
	assert.Equal(t, 30, req.Quality)
	assert.Equal(t, 5, req.GIFQuality)
}

func TestIgnoredOptions(t *testing.T) {
	ignored := Request{Format: FormatPNG, Scale: 1, Quality: 50, FrameCount: 3}.IgnoredOptions()
	var options []string
	for _, opt := range ignored {
		options = append(options, opt.Option)
	}
	assert.ElementsMatch(t, []string{"quality", "frameCount"}, options)

	assert.Empty(t, Request{Format: FormatJPEG, Scale: 1, Quality: 50}.IgnoredOptions())
}

func TestNamerIsUniqueWithinOneMillisecond(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	n := NewNamer("chatsnap", func() time.Time { return fixed })

	first := n.Next(FormatPNG)
	second := n.Next(FormatPNG)

	assert.Equal(t, "chatsnap-export-1700000000000.png", first)
	assert.Equal(t, "chatsnap-export-1700000000001.png", second)
	assert.Equal(t, "chatsnap-export-1700000000002.jpg", n.Next(FormatJPEG))
}

func TestStage(t *testing.T) {
	base := errors.New("boom")
	assert.Equal(t, "capture", Stage(fmt.Errorf("outer: %w", &CaptureError{Target: "t", Frame: -1, Err: base})))
	assert.Equal(t, "encode", Stage(&EncodeError{Format: FormatPNG, Err: base}))
	assert.Equal(t, "delivery", Stage(&DeliveryError{Mode: "clipboard", Err: base}))
	assert.Equal(t, "validation", Stage(&ValidationError{Problems: []string{"x"}}))
	assert.Equal(t, "unknown", Stage(base))
	assert.Equal(t, "", Stage(nil))

	assert.ErrorIs(t, &CaptureError{Err: base, Frame: 2}, base)
	assert.Contains(t, (&CaptureError{Target: "chat", Frame: 2, Err: base}).Error(), "frame 2")
}

func TestBitmapDimensions(t *testing.T) {
	b := Bitmap{Image: image.NewRGBA(image.Rect(0, 0, 750, 1624)), Scale: 2}
	assert.Equal(t, 750, b.Width())
	assert.Equal(t, 1624, b.Height())
	assert.False(t, b.Empty())
	assert.True(t, Bitmap{}.Empty())
}
