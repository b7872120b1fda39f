// Package encoding turns captured bitmaps into export payloads. Each format is
// one variant behind one of three interfaces: StillEncoder for single-bitmap
// formats, AnimationEncoder for frame lists, and PrintEncoder for the print
// surface of the document format.
package encoding

import (
	"context"
	"fmt"
	"time"

	"github.com/rmitchellscott/chatsnap/internal/export"
)

// Options carries every tunable an encoder may read. Encoders ignore the
// fields that do not apply to them.
type Options struct {
	Quality       int // jpeg, 1..100
	GIFQuality    int // gif palette quality, 1..30
	FrameDuration time.Duration
	Repeat        int // gif loop count: 0 forever, -1 once
	Transparent   bool
	Title         string
}

// OptionsFromRequest maps a defaulted request onto encoder options.
func OptionsFromRequest(req export.Request, title string) Options {
	return Options{
		Quality:       req.Quality,
		GIFQuality:    req.GIFQuality,
		FrameDuration: req.FrameDelay(),
		Repeat:        req.Repeat,
		Transparent:   req.TransparentBackground,
		Title:         title,
	}
}

// Encoder is implemented by every format variant.
type Encoder interface {
	Format() export.Format
}

// StillEncoder encodes one bitmap into bytes.
type StillEncoder interface {
	Encoder
	Encode(ctx context.Context, bitmap export.Bitmap, opts Options) ([]byte, error)
}

// AnimationEncoder encodes an ordered frame list into one payload holding
// exactly len(frames) frames with their delays preserved.
type AnimationEncoder interface {
	Encoder
	EncodeFrames(ctx context.Context, frames []export.Frame, opts Options) ([]byte, error)
}

// PrintEncoder builds a print surface instead of bytes. Whoever opens the
// surface cannot learn whether printing succeeded.
type PrintEncoder interface {
	Encoder
	PrintSurface(ctx context.Context, bitmap export.Bitmap, opts Options) (export.PrintJob, error)
}

// Registry maps formats to their encoder variant.
type Registry struct {
	encoders map[export.Format]Encoder
}

// Settings selects between interchangeable variants.
type Settings struct {
	Software     string // written into PNG and PDF metadata
	DocumentMode string // "print" (default) or "pdf"
	Animator     AnimatedEncoder
}

// NewRegistry creates a registry with one encoder per supported format.
func NewRegistry(s Settings) *Registry {
	r := &Registry{encoders: make(map[export.Format]Encoder)}
	r.Register(NewPNGEncoder(s.Software))
	r.Register(NewJPEGEncoder())
	r.Register(NewSVGEncoder(s.Software))
	if s.DocumentMode == "pdf" {
		r.Register(NewPDFEncoder(s.Software))
	} else {
		r.Register(NewPrintEncoder())
	}
	r.Register(NewGIFEncoder(s.Animator))
	return r
}

// Register adds or replaces the encoder for its format.
func (r *Registry) Register(e Encoder) {
	r.encoders[e.Format()] = e
}

// Lookup returns the encoder for f.
func (r *Registry) Lookup(f export.Format) (Encoder, error) {
	e, ok := r.encoders[f]
	if !ok {
		return nil, &export.EncodeError{Format: f, Err: fmt.Errorf("no encoder registered")}
	}
	return e, nil
}

func checkBitmap(f export.Format, bitmap export.Bitmap) error {
	if bitmap.Empty() {
		return &export.EncodeError{Format: f, Err: fmt.Errorf("bitmap is empty")}
	}
	return nil
}

func cssSize(bitmap export.Bitmap) (int, int) {
	scale := max(bitmap.Scale, 1)
	return max(bitmap.Width()/scale, 1), max(bitmap.Height()/scale, 1)
}
