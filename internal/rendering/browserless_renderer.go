package rendering

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rmitchellscott/chatsnap/internal/logging"
)

// BrowserlessRenderer captures screenshots using an external browserless service
type BrowserlessRenderer struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
	pages   *PageBuilder
}

// NewBrowserlessRenderer creates a new browserless renderer
func NewBrowserlessRenderer(baseURL string, timeout time.Duration) (*BrowserlessRenderer, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("BROWSERLESS_URL environment variable is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &BrowserlessRenderer{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		pages:   NewPageBuilder(),
	}, nil
}

// WaitForSelector represents browserless waitForSelector options
type WaitForSelector struct {
	Selector string `json:"selector"`
	Timeout  int    `json:"timeout"`
	Visible  bool   `json:"visible"`
}

// HTMLScreenshotRequest represents the request payload for browserless HTML screenshot API
type HTMLScreenshotRequest struct {
	HTML     string `json:"html"`
	Selector string `json:"selector,omitempty"`
	Viewport struct {
		Width             int `json:"width"`
		Height            int `json:"height"`
		DeviceScaleFactor int `json:"deviceScaleFactor"`
	} `json:"viewport"`
	Options struct {
		Type           string `json:"type"`
		FullPage       bool   `json:"fullPage"`
		OmitBackground bool   `json:"omitBackground"`
	} `json:"options"`
	GotoOptions struct {
		WaitUntil string `json:"waitUntil"`
		Timeout   int    `json:"timeout"`
	} `json:"gotoOptions"`
	WaitForSelector *WaitForSelector `json:"waitForSelector,omitempty"`
}

// Capture renders the target through the browserless /screenshot endpoint.
// Browserless does not expose the page state, so cross-origin failures show
// up as missing images rather than ErrCrossOriginTaint.
func (r *BrowserlessRenderer) Capture(ctx context.Context, target Target, opts RenderOptions) (image.Image, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if opts.Scale < 1 {
		opts.Scale = 1
	}

	doc, selector := r.pages.Build(target, opts)
	width, height := Viewport(target, opts)

	req := HTMLScreenshotRequest{HTML: doc, Selector: selector}
	req.Viewport.Width = width
	req.Viewport.Height = height
	req.Viewport.DeviceScaleFactor = opts.Scale

	req.Options.Type = "png"
	req.Options.FullPage = false
	req.Options.OmitBackground = opts.Transparent()

	req.GotoOptions.WaitUntil = "networkidle0"
	req.GotoOptions.Timeout = int(r.timeout / time.Millisecond)

	req.WaitForSelector = &WaitForSelector{
		Selector: "body[data-render-complete='true']",
		Timeout:  8000,
		Visible:  false,
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal HTML screenshot request: %w", err)
	}

	screenshotURL := fmt.Sprintf("%s/screenshot", r.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, screenshotURL, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to make request to browserless: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("browserless screenshot request failed with status %d: %s", resp.StatusCode, string(body))
	}

	img, err := png.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode browserless screenshot: %w", err)
	}

	logging.DebugWithComponent(logging.ComponentRenderer, "Captured target via browserless",
		"target", target.Name, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return img, nil
}

// Close cleans up the renderer (no-op for browserless)
func (r *BrowserlessRenderer) Close() error {
	return nil
}
