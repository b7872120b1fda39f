package encoding

import (
	"bytes"
	"context"
	"image/color"
	"image/jpeg"

	"github.com/rmitchellscott/chatsnap/internal/export"
	"github.com/rmitchellscott/chatsnap/internal/imageprocessing"
)

// PNGEncoder is the lossless variant. Output is deterministic for identical
// input.
type PNGEncoder struct {
	software string
}

func NewPNGEncoder(software string) *PNGEncoder {
	return &PNGEncoder{software: software}
}

func (e *PNGEncoder) Format() export.Format { return export.FormatPNG }

func (e *PNGEncoder) Encode(ctx context.Context, bitmap export.Bitmap, _ Options) ([]byte, error) {
	if err := checkBitmap(export.FormatPNG, bitmap); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &export.EncodeError{Format: export.FormatPNG, Err: err}
	}
	data, err := imageprocessing.EncodePNG(bitmap.Image, bitmap.Scale, e.software)
	if err != nil {
		return nil, &export.EncodeError{Format: export.FormatPNG, Err: err}
	}
	return data, nil
}

// JPEGEncoder is the lossy variant. Alpha is flattened onto white because the
// format has no alpha channel.
type JPEGEncoder struct{}

func NewJPEGEncoder() *JPEGEncoder { return &JPEGEncoder{} }

func (e *JPEGEncoder) Format() export.Format { return export.FormatJPEG }

func (e *JPEGEncoder) Encode(ctx context.Context, bitmap export.Bitmap, opts Options) ([]byte, error) {
	if err := checkBitmap(export.FormatJPEG, bitmap); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &export.EncodeError{Format: export.FormatJPEG, Err: err}
	}

	quality := opts.Quality
	if quality == 0 {
		quality = export.DefaultQuality
	}
	quality = min(max(quality, 1), 100)

	var buf bytes.Buffer
	flat := imageprocessing.Flatten(bitmap.Image, color.White)
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: quality}); err != nil {
		return nil, &export.EncodeError{Format: export.FormatJPEG, Err: err}
	}
	return buf.Bytes(), nil
}
