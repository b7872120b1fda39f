package export

import (
	"image"
	"time"
)

// Bitmap is an in-memory raster produced by a Renderer.
type Bitmap struct {
	Image image.Image
	Scale int
}

func (b Bitmap) Width() int {
	if b.Image == nil {
		return 0
	}
	return b.Image.Bounds().Dx()
}

func (b Bitmap) Height() int {
	if b.Image == nil {
		return 0
	}
	return b.Image.Bounds().Dy()
}

// Empty reports whether the bitmap has no pixels.
func (b Bitmap) Empty() bool {
	return b.Width() == 0 || b.Height() == 0
}

// Frame is a bitmap paired with its display duration.
type Frame struct {
	Bitmap Bitmap
	Delay  time.Duration
}

// Artifact is the terminal payload of the encode step.
type Artifact struct {
	Bytes    []byte
	MIMEType string
	Filename string
	Format   Format
}

// PrintJob is a print surface for the document format: a page sized to the
// bitmap that triggers the platform print action when opened.
type PrintJob struct {
	HTML     []byte
	Width    int // CSS pixels
	Height   int // CSS pixels
	Filename string
}

// Phase is the coarse stage reported alongside a progress percentage.
type Phase string

const (
	PhaseCapturing  Phase = "capturing"
	PhaseEncoding   Phase = "encoding"
	PhaseFinalizing Phase = "finalizing"
)

// Progress is a point-in-time progress report for one export run.
type Progress struct {
	Percent int   `json:"percent"`
	Phase   Phase `json:"phase"`
}

// ProgressFunc receives progress updates.
type ProgressFunc func(Progress)
