package rendering

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/rmitchellscott/chatsnap/internal/config"
	"github.com/rmitchellscott/chatsnap/internal/logging"
)

var chromiumCandidates = []string{
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"headless-shell",
}

// getChromiumBinary resolves the browser executable from CHROMIUM_BIN,
// CHROME_BIN, or the first known binary on PATH.
func getChromiumBinary() (string, error) {
	for _, key := range []string{"CHROMIUM_BIN", "CHROME_BIN"} {
		path := config.Get(key, "")
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%s points to %s: %w", key, path, err)
		}
		return path, nil
	}

	for _, name := range chromiumCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no chromium binary found; set CHROMIUM_BIN")
}

// ChromeRenderer captures targets in a local headless Chromium driven over
// the DevTools protocol. One browser process serves every capture; each
// capture gets its own tab.
type ChromeRenderer struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancelTab   context.CancelFunc
	timeout     time.Duration
	pages       *PageBuilder

	mu     sync.Mutex
	closed bool
}

// NewChromeRenderer starts a headless browser. timeout bounds a single capture.
func NewChromeRenderer(timeout time.Duration) (*ChromeRenderer, error) {
	binary, err := getChromiumBinary()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(binary),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("font-render-hinting", "none"),
		chromedp.NoSandbox,
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelTab := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so a missing or broken binary fails here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start chromium %s: %w", binary, err)
	}

	logging.InfoWithComponent(logging.ComponentRenderer, "Chromium renderer started", "binary", binary)
	return &ChromeRenderer{
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		browserCtx:  browserCtx,
		cancelTab:   cancelTab,
		timeout:     timeout,
		pages:       NewPageBuilder(),
	}, nil
}

// Capture renders the target in a fresh tab and screenshots the capture node
// at opts.Scale device pixels per CSS pixel.
func (r *ChromeRenderer) Capture(ctx context.Context, target Target, opts RenderOptions) (image.Image, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if opts.Scale < 1 {
		opts.Scale = 1
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("chromium renderer is closed")
	}
	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	r.mu.Unlock()
	defer cancelTab()

	tabCtx, cancel := context.WithTimeout(tabCtx, r.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	doc, selector := r.pages.Build(target, opts)
	width, height := Viewport(target, opts)

	setup := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height), chromedp.EmulateScale(float64(opts.Scale))),
		chromedp.Navigate("about:blank"),
	}
	if opts.Transparent() {
		setup = append(setup, chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetDefaultBackgroundColorOverride().WithColor(&cdp.RGBA{R: 0, G: 0, B: 0, A: 0}).Do(ctx)
		}))
	}

	var present bool
	var failed []string
	setup = append(setup,
		setDocumentContent(doc),
		chromedp.WaitReady(`body[data-render-complete='true']`, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(`document.querySelector(%q) !== null`, selector), &present),
		chromedp.Evaluate(`JSON.parse(document.body.getAttribute('data-failed-images') || '[]')`, &failed),
	)
	if err := chromedp.Run(tabCtx, setup); err != nil {
		return nil, r.wrapErr(ctx, err)
	}

	if !present {
		return nil, fmt.Errorf("%w: selector %s matched nothing in %q", ErrDetachedTarget, selector, target.Name)
	}
	if len(failed) > 0 {
		return nil, fmt.Errorf("%w: %d image(s) could not be read: %s", ErrCrossOriginTaint, len(failed), strings.Join(failed, ", "))
	}

	var shot []byte
	if err := chromedp.Run(tabCtx, chromedp.Screenshot(selector, &shot, chromedp.ByQuery)); err != nil {
		return nil, r.wrapErr(ctx, err)
	}

	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, fmt.Errorf("failed to decode chromium screenshot: %w", err)
	}

	logging.DebugWithComponent(logging.ComponentRenderer, "Captured target",
		"target", target.Name, "width", img.Bounds().Dx(), "height", img.Bounds().Dy(), "scale", opts.Scale)
	return img, nil
}

func (r *ChromeRenderer) wrapErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("chromium capture timed out after %s: %w", r.timeout, err)
	}
	return fmt.Errorf("chromium capture failed: %w", err)
}

// setDocumentContent replaces the blank page with doc without a network
// round trip.
func setDocumentContent(doc string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, doc).Do(ctx)
	})
}

// Close shuts down the browser process.
func (r *ChromeRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.cancelTab()
	r.cancelAlloc()
	return nil
}
