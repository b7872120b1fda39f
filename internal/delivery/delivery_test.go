package delivery

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmitchellscott/chatsnap/internal/export"
	"github.com/rmitchellscott/chatsnap/internal/storage"
)

type fakeClipboard struct {
	mu     sync.Mutex
	images [][]byte
	texts  []string
	err    error
	panic  bool
}

func (f *fakeClipboard) WriteImage(data []byte) error {
	if f.panic {
		panic("display connection lost")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.images = append(f.images, data)
	return nil
}

func (f *fakeClipboard) WriteText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

type fakeBrowser struct {
	opened chan string
	err    error
}

func (f *fakeBrowser) OpenFile(path string) error {
	f.opened <- path
	return f.err
}

// failingSink records the staged file it was given and then fails.
type failingSink struct {
	storage.Backend
	staged string
}

func (f *failingSink) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if file, ok := r.(*os.File); ok {
		f.staged = file.Name()
	}
	return "", errors.New("disk full")
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func solidRGBA(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDownloadStoresArtifactAndReleasesTempFile(t *testing.T) {
	dir := t.TempDir()
	tmpDir := t.TempDir()
	svc := NewService(Options{Sink: storage.NewFilesystemBackend(dir), TempDir: tmpDir, Clipboard: &fakeClipboard{}, Browser: &fakeBrowser{}})

	artifact := export.Artifact{Bytes: []byte("payload"), MIMEType: "image/png", Filename: "chatsnap-export-1.png", Format: export.FormatPNG}
	receipt, err := svc.Deliver(context.Background(), artifact, export.DeliverDownload)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "chatsnap-export-1.png"), receipt.Location)
	assert.Equal(t, 7, receipt.Size)
	data, err := os.ReadFile(receipt.Location)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	leftovers, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestDownloadFailureStillReleasesTempFile(t *testing.T) {
	tmpDir := t.TempDir()
	sink := &failingSink{}
	svc := NewService(Options{Sink: sink, TempDir: tmpDir, Clipboard: &fakeClipboard{}, Browser: &fakeBrowser{}})

	_, err := svc.Download(context.Background(), export.Artifact{Bytes: []byte("x"), Filename: "a.png"})
	var deliveryErr *export.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, "download", deliveryErr.Mode)

	require.NotEmpty(t, sink.staged)
	_, statErr := os.Stat(sink.staged)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownloadRejectsEmptyArtifact(t *testing.T) {
	svc := NewService(Options{Sink: storage.NewFilesystemBackend(t.TempDir()), Clipboard: &fakeClipboard{}, Browser: &fakeBrowser{}})
	_, err := svc.Download(context.Background(), export.Artifact{Filename: "a.png"})
	assert.Error(t, err)
}

func TestClipboardRoutesByFormat(t *testing.T) {
	clip := &fakeClipboard{}
	svc := NewService(Options{Clipboard: clip, Browser: &fakeBrowser{}})
	ctx := context.Background()

	raw := pngBytes(t)
	require.NoError(t, svc.Clipboard(ctx, export.Artifact{Bytes: raw, Format: export.FormatPNG}))

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, solidRGBA(3, 3, color.White), nil))
	require.NoError(t, svc.Clipboard(ctx, export.Artifact{Bytes: jpg.Bytes(), Format: export.FormatJPEG}))

	require.NoError(t, svc.Clipboard(ctx, export.Artifact{Bytes: []byte("<svg/>"), Format: export.FormatSVG}))

	require.Len(t, clip.images, 2)
	assert.Equal(t, raw, clip.images[0])
	assert.Equal(t, []byte{0x89, 0x50, 0x4E, 0x47}, clip.images[1][:4], "jpeg is re-encoded as png")
	assert.Equal(t, []string{"<svg/>"}, clip.texts)

	err := svc.Clipboard(ctx, export.Artifact{Bytes: []byte("%PDF"), Format: export.FormatPDF})
	assert.Error(t, err)
}

func TestClipboardPermissionDenied(t *testing.T) {
	denied := errors.New("permission denied")
	svc := NewService(Options{Clipboard: &fakeClipboard{err: denied}, Browser: &fakeBrowser{}})

	_, err := svc.Deliver(context.Background(), export.Artifact{Bytes: pngBytes(t), Format: export.FormatPNG}, export.DeliverClipboard)
	var deliveryErr *export.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, "clipboard", deliveryErr.Mode)
	assert.ErrorIs(t, err, denied)
}

func TestClipboardPanicBecomesDeliveryError(t *testing.T) {
	svc := NewService(Options{Clipboard: &fakeClipboard{panic: true}, Browser: &fakeBrowser{}})

	var err error
	assert.NotPanics(t, func() {
		err = svc.Clipboard(context.Background(), export.Artifact{Bytes: pngBytes(t), Format: export.FormatPNG})
	})
	var deliveryErr *export.DeliveryError
	assert.ErrorAs(t, err, &deliveryErr)
}

func TestPrintOpensSurfaceAndRemovesItLater(t *testing.T) {
	b := &fakeBrowser{opened: make(chan string, 1)}
	svc := NewService(Options{Browser: b, Clipboard: &fakeClipboard{}, PrintTTL: 20 * time.Millisecond, TempDir: t.TempDir()})

	svc.Print(export.PrintJob{HTML: []byte("<html>print</html>"), Width: 10, Height: 10, Filename: "x.pdf"})

	var path string
	select {
	case path = <-b.opened:
	case <-time.After(2 * time.Second):
		t.Fatal("print surface was never opened")
	}
	assert.Equal(t, ".html", filepath.Ext(path))

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPrintLaunchFailureIsNotObservable(t *testing.T) {
	b := &fakeBrowser{opened: make(chan string, 1), err: errors.New("popup blocked")}
	svc := NewService(Options{Browser: b, Clipboard: &fakeClipboard{}, PrintTTL: time.Hour, TempDir: t.TempDir()})

	// Print has no result to report
	svc.Print(export.PrintJob{HTML: []byte("<html></html>")})

	path := <-b.opened
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond, "failed launch releases the surface at once")
}

func TestDeliverUnknownMode(t *testing.T) {
	svc := NewService(Options{Clipboard: &fakeClipboard{}, Browser: &fakeBrowser{}})
	_, err := svc.Deliver(context.Background(), export.Artifact{Bytes: []byte("x")}, "fax")
	assert.Error(t, err)
}
