package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	textclip "github.com/atotto/clipboard"
	imgclip "golang.design/x/clipboard"

	"github.com/rmitchellscott/chatsnap/internal/export"
	"github.com/rmitchellscott/chatsnap/internal/imageprocessing"
	"github.com/rmitchellscott/chatsnap/internal/logging"
)

// ErrClipboardUnavailable is returned when the platform clipboard cannot be
// opened (no display, missing permission).
var ErrClipboardUnavailable = errors.New("clipboard unavailable")

// Clipboard is the platform clipboard.
type Clipboard interface {
	WriteImage(png []byte) error
	WriteText(text string) error
}

// Clipboard writes the artifact to the clipboard. Raster formats go to the
// image clipboard as PNG; SVG is markup and goes to the text clipboard.
// Documents are rejected. Every failure, including a panic in the platform
// layer, is returned as *export.DeliveryError.
func (s *Service) Clipboard(ctx context.Context, artifact export.Artifact) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("clipboard write panicked: %v", r)
		}
		if err != nil {
			logging.WarnWithComponent(logging.ComponentClipboard, "Clipboard write failed",
				"filename", artifact.Filename, "format", artifact.Format, "error", err)
			err = &export.DeliveryError{Mode: string(export.DeliverClipboard), Err: err}
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	switch artifact.Format {
	case export.FormatPNG:
		return s.clipboard.WriteImage(artifact.Bytes)
	case export.FormatJPEG, export.FormatGIF:
		data, err := s.toPNG(artifact.Bytes)
		if err != nil {
			return err
		}
		return s.clipboard.WriteImage(data)
	case export.FormatSVG:
		return s.clipboard.WriteText(string(artifact.Bytes))
	default:
		return fmt.Errorf("format %s cannot be copied to the clipboard", artifact.Format)
	}
}

// toPNG re-encodes a JPEG or the first GIF frame; image clipboards only
// reliably accept PNG.
func (s *Service) toPNG(data []byte) ([]byte, error) {
	img, _, err := imageprocessing.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return imageprocessing.EncodePNG(img, 1, s.software)
}

// SystemClipboard writes through the OS clipboard.
type SystemClipboard struct {
	initOnce sync.Once
	initErr  error
}

func NewSystemClipboard() *SystemClipboard {
	return &SystemClipboard{}
}

func (c *SystemClipboard) WriteImage(png []byte) error {
	c.initOnce.Do(func() {
		if err := imgclip.Init(); err != nil {
			c.initErr = fmt.Errorf("%w: %v", ErrClipboardUnavailable, err)
		}
	})
	if c.initErr != nil {
		return c.initErr
	}
	imgclip.Write(imgclip.FmtImage, png)
	return nil
}

func (c *SystemClipboard) WriteText(text string) error {
	if err := textclip.WriteAll(text); err != nil {
		return fmt.Errorf("%w: %v", ErrClipboardUnavailable, err)
	}
	return nil
}
