package delivery

import (
	"io"
	"os"
	"time"

	"github.com/pkg/browser"

	"github.com/rmitchellscott/chatsnap/internal/export"
	"github.com/rmitchellscott/chatsnap/internal/logging"
)

// Browser opens local files for the user.
type Browser interface {
	OpenFile(path string) error
}

// SystemBrowser opens files in the default browser.
type SystemBrowser struct{}

func NewSystemBrowser() SystemBrowser {
	// keep the launcher's own output out of the CLI progress display
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return SystemBrowser{}
}

func (SystemBrowser) OpenFile(path string) error {
	return browser.OpenFile(path)
}

// Print writes the print surface to a temporary file and opens it in the
// browser, which triggers the print dialog. It returns at once and reports
// nothing: whether the dialog appeared or the user saved a file cannot be
// observed. The file is removed once PrintTTL has passed after launch, or
// right away when the launch fails.
func (s *Service) Print(job export.PrintJob) {
	tmp, err := os.CreateTemp(s.tempDir, "chatsnap-print-*.html")
	if err != nil {
		logging.WarnWithComponent(logging.ComponentPrint, "Failed to create print surface", "error", err)
		return
	}
	path := tmp.Name()
	_, err = tmp.Write(job.HTML)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		logging.WarnWithComponent(logging.ComponentPrint, "Failed to write print surface", "path", path, "error", err)
		removeSurface(path)
		return
	}

	go func() {
		if err := s.browser.OpenFile(path); err != nil {
			logging.WarnWithComponent(logging.ComponentPrint, "Failed to open print surface", "path", path, "error", err)
			removeSurface(path)
			return
		}
		logging.InfoWithComponent(logging.ComponentPrint, "Print surface opened",
			"filename", job.Filename, "width", job.Width, "height", job.Height)
		time.AfterFunc(s.printTTL, func() { removeSurface(path) })
	}()
}

func removeSurface(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.WarnWithComponent(logging.ComponentPrint, "Failed to remove print surface", "path", path, "error", err)
	}
}
