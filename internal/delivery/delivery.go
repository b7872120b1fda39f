// Package delivery hands finished artifacts to the user: into download
// storage, onto the system clipboard, or into a print surface opened in the
// system browser.
package delivery

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rmitchellscott/chatsnap/internal/export"
	"github.com/rmitchellscott/chatsnap/internal/logging"
	"github.com/rmitchellscott/chatsnap/internal/storage"
)

// Receipt describes where a downloaded artifact ended up.
type Receipt struct {
	Filename string `json:"filename"`
	Location string `json:"location"`
	Size     int    `json:"size"`
}

// Options configures a Service.
type Options struct {
	Sink      storage.Backend
	Clipboard Clipboard
	Browser   Browser
	PrintTTL  time.Duration // how long a print surface file outlives its launch
	TempDir   string        // "" means os.TempDir
	Software  string        // PNG metadata for clipboard re-encodes
}

// Service delivers artifacts. The zero collaborators fall back to the system
// clipboard and browser.
type Service struct {
	sink      storage.Backend
	clipboard Clipboard
	browser   Browser
	printTTL  time.Duration
	tempDir   string
	software  string
}

// NewService creates a delivery service.
func NewService(opts Options) *Service {
	if opts.Clipboard == nil {
		opts.Clipboard = NewSystemClipboard()
	}
	if opts.Browser == nil {
		opts.Browser = NewSystemBrowser()
	}
	if opts.PrintTTL <= 0 {
		opts.PrintTTL = time.Minute
	}
	return &Service{
		sink:      opts.Sink,
		clipboard: opts.Clipboard,
		browser:   opts.Browser,
		printTTL:  opts.PrintTTL,
		tempDir:   opts.TempDir,
		software:  opts.Software,
	}
}

// Deliver routes artifact to the requested mode.
func (s *Service) Deliver(ctx context.Context, artifact export.Artifact, mode export.DeliveryMode) (Receipt, error) {
	switch mode {
	case export.DeliverClipboard:
		if err := s.Clipboard(ctx, artifact); err != nil {
			return Receipt{}, err
		}
		return Receipt{Filename: artifact.Filename, Location: "clipboard", Size: len(artifact.Bytes)}, nil
	case export.DeliverDownload, "":
		return s.Download(ctx, artifact)
	default:
		return Receipt{}, &export.DeliveryError{Mode: string(mode), Err: fmt.Errorf("unsupported delivery mode")}
	}
}

// Download stages the artifact in a temporary file, hands it to the sink
// under its suggested filename, and removes the temporary file on every
// path.
func (s *Service) Download(ctx context.Context, artifact export.Artifact) (Receipt, error) {
	fail := func(err error) (Receipt, error) {
		return Receipt{}, &export.DeliveryError{Mode: string(export.DeliverDownload), Err: err}
	}
	if s.sink == nil {
		return fail(fmt.Errorf("no download sink configured"))
	}
	if len(artifact.Bytes) == 0 {
		return fail(fmt.Errorf("artifact %s is empty", artifact.Filename))
	}

	tmp, err := os.CreateTemp(s.tempDir, "chatsnap-download-*")
	if err != nil {
		return fail(fmt.Errorf("failed to create temporary file: %w", err))
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			logging.WarnWithComponent(logging.ComponentDelivery, "Failed to release temporary download file", "path", tmp.Name(), "error", err)
		}
	}()

	if _, err := tmp.Write(artifact.Bytes); err != nil {
		return fail(fmt.Errorf("failed to stage artifact: %w", err))
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fail(fmt.Errorf("failed to rewind staged artifact: %w", err))
	}

	location, err := s.sink.Put(ctx, artifact.Filename, tmp, int64(len(artifact.Bytes)), artifact.MIMEType)
	if err != nil {
		return fail(err)
	}

	logging.InfoWithComponent(logging.ComponentDelivery, "Artifact saved",
		"filename", artifact.Filename, "location", location, "bytes", len(artifact.Bytes))
	return Receipt{Filename: artifact.Filename, Location: location, Size: len(artifact.Bytes)}, nil
}
