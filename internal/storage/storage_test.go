package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmitchellscott/chatsnap/internal/config"
)

func TestFilesystemBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	backend := NewFilesystemBackend(filepath.Join(dir, "exports"))
	ctx := context.Background()

	location, err := backend.Put(ctx, "chatsnap-export-1.png", strings.NewReader("abc"), 3, "image/png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "exports", "chatsnap-export-1.png"), location)

	rc, err := backend.Get(ctx, "chatsnap-export-1.png")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	_, err = backend.Put(ctx, "other.gif", strings.NewReader("gif"), 3, "image/gif")
	require.NoError(t, err)

	files, err := backend.ListWithInfo(ctx, "chatsnap-")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, int64(3), files[0].Size)

	require.NoError(t, backend.Delete(ctx, "chatsnap-export-1.png"))
	require.NoError(t, backend.Delete(ctx, "chatsnap-export-1.png"), "deleting twice is fine")
	_, err = backend.Get(ctx, "chatsnap-export-1.png")
	assert.Error(t, err)
}

func TestFilesystemBackendRejectsTraversal(t *testing.T) {
	backend := NewFilesystemBackend(t.TempDir())
	for _, key := range []string{"", "..", "../etc/passwd", "a/b.png", `a\b.png`} {
		_, err := backend.Put(context.Background(), key, strings.NewReader("x"), 1, "")
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestFilesystemBackendCancelledPutLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	backend := NewFilesystemBackend(dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := backend.Put(ctx, "a.png", strings.NewReader("x"), 1, "")
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCleanupOldExports(t *testing.T) {
	dir := t.TempDir()
	backend := NewFilesystemBackend(dir)
	ctx := context.Background()

	for _, name := range []string{"chatsnap-export-1.png", "chatsnap-export-2.png"} {
		_, err := backend.Put(ctx, name, strings.NewReader("x"), 1, "")
		require.NoError(t, err)
	}
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "chatsnap-export-1.png"), old, old))

	removed, err := CleanupOldExports(ctx, backend, "chatsnap-", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	files, err := backend.ListWithInfo(ctx, "")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "chatsnap-export-2.png", files[0].Key)
}

func TestNewSelectsFilesystem(t *testing.T) {
	backend, err := New(context.Background(), config.Config{Storage: "filesystem", DownloadDir: "out"})
	require.NoError(t, err)
	assert.Equal(t, "out", backend.(*FilesystemBackend).Dir())

	_, err = New(context.Background(), config.Config{Storage: "tape"})
	assert.Error(t, err)
}
