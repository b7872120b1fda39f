package encoding

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"time"

	"github.com/rmitchellscott/chatsnap/internal/export"
	"github.com/rmitchellscott/chatsnap/internal/imageprocessing"
)

// AnimationOptions is what the animated encoder collaborator receives.
type AnimationOptions struct {
	Width         int
	Height        int
	Quality       int // palette quality, 1 finest to 30 coarsest
	FrameDuration time.Duration
	Repeat        int
	Transparent   bool
}

// AnimatedEncoder turns timed frames into one animated payload. Each frame's
// own Delay wins over FrameDuration.
type AnimatedEncoder interface {
	Encode(ctx context.Context, frames []export.Frame, opts AnimationOptions) ([]byte, error)
}

// GIFEncoder is the animated variant. It delegates to an AnimatedEncoder and
// checks that the payload holds one frame per input frame.
type GIFEncoder struct {
	animator AnimatedEncoder
}

// NewGIFEncoder creates the animated variant. A nil animator uses
// PaletteAnimator.
func NewGIFEncoder(animator AnimatedEncoder) *GIFEncoder {
	if animator == nil {
		animator = PaletteAnimator{}
	}
	return &GIFEncoder{animator: animator}
}

func (e *GIFEncoder) Format() export.Format { return export.FormatGIF }

func (e *GIFEncoder) EncodeFrames(ctx context.Context, frames []export.Frame, opts Options) ([]byte, error) {
	if len(frames) == 0 {
		return nil, &export.EncodeError{Format: export.FormatGIF, Err: fmt.Errorf("no frames to encode")}
	}
	first := frames[0].Bitmap
	if err := checkBitmap(export.FormatGIF, first); err != nil {
		return nil, err
	}

	quality := opts.GIFQuality
	if quality == 0 {
		quality = export.DefaultGIFQuality
	}

	data, err := e.animator.Encode(ctx, frames, AnimationOptions{
		Width:         first.Width(),
		Height:        first.Height(),
		Quality:       quality,
		FrameDuration: opts.FrameDuration,
		Repeat:        opts.Repeat,
		Transparent:   opts.Transparent,
	})
	if err != nil {
		return nil, &export.EncodeError{Format: export.FormatGIF, Err: err}
	}

	decoded, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, &export.EncodeError{Format: export.FormatGIF, Err: fmt.Errorf("animator produced an unreadable gif: %w", err)}
	}
	if len(decoded.Image) != len(frames) {
		return nil, &export.EncodeError{Format: export.FormatGIF, Err: fmt.Errorf("animator produced %d frames, want %d", len(decoded.Image), len(frames))}
	}
	return data, nil
}

// PaletteAnimator is the default AnimatedEncoder. Each frame is quantized to
// an RGB cube palette that shrinks as quality rises.
type PaletteAnimator struct{}

func (PaletteAnimator) Encode(ctx context.Context, frames []export.Frame, opts AnimationOptions) ([]byte, error) {
	bounds := image.Rect(0, 0, opts.Width, opts.Height)
	anim := &gif.GIF{
		Image:     make([]*image.Paletted, 0, len(frames)),
		Delay:     make([]int, 0, len(frames)),
		LoopCount: opts.Repeat,
		Config: image.Config{
			Width:  opts.Width,
			Height: opts.Height,
		},
	}
	if opts.Transparent {
		anim.Disposal = make([]byte, 0, len(frames))
	}

	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := frame.Bitmap.Image.Bounds()
		if b.Dx() != opts.Width || b.Dy() != opts.Height {
			return nil, fmt.Errorf("frame %d is %dx%d, want %dx%d", i, b.Dx(), b.Dy(), opts.Width, opts.Height)
		}

		paletted := imageprocessing.Quantize(frame.Bitmap.Image, opts.Quality, opts.Transparent)
		// gif frames are positioned relative to the logical screen origin
		paletted.Rect = paletted.Rect.Sub(paletted.Rect.Min).Add(bounds.Min)

		delay := frame.Delay
		if delay <= 0 {
			delay = opts.FrameDuration
		}
		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, centiseconds(delay))
		if opts.Transparent {
			anim.Disposal = append(anim.Disposal, gif.DisposalBackground)
		}
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("failed to encode gif: %w", err)
	}
	return buf.Bytes(), nil
}

// centiseconds converts a frame delay to the GIF unit, rounding to nearest
// and never below one tick.
func centiseconds(d time.Duration) int {
	return max(int((d+5*time.Millisecond)/(10*time.Millisecond)), 1)
}
