package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPrefersEnvironmentThenFileThenOverlay(t *testing.T) {
	t.Cleanup(func() { setOverlay(nil) })
	setOverlay(map[string]string{"CHATSNAP_TEST_KEY": "from-overlay"})

	assert.Equal(t, "from-overlay", Get("CHATSNAP_TEST_KEY", "def"))

	secret := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(secret, []byte("from-file\n"), 0o600))
	t.Setenv("CHATSNAP_TEST_KEY_FILE", secret)
	assert.Equal(t, "from-file", Get("CHATSNAP_TEST_KEY", "def"))

	t.Setenv("CHATSNAP_TEST_KEY", "from-env")
	assert.Equal(t, "from-env", Get("CHATSNAP_TEST_KEY", "def"))

	assert.Equal(t, "def", Get("CHATSNAP_TEST_UNSET", "def"))
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"2d":   48 * time.Hour,
		"500":  500 * time.Millisecond,
		"3s":   3 * time.Second,
		" 1M ": time.Minute,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDuration("soon")
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Cleanup(func() { setOverlay(nil) })
	t.Setenv("CHATSNAP_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "chatsnap", cfg.ProductName)
	assert.Equal(t, 90, cfg.DefaultQuality)
	assert.Equal(t, 10, cfg.DefaultGIFQuality)
	assert.Equal(t, 3*time.Second, cfg.SuccessWindow)
	assert.Equal(t, "print", cfg.DocumentMode)
	assert.Equal(t, "filesystem", cfg.Storage)
}

func TestLoadYAMLOverlay(t *testing.T) {
	t.Cleanup(func() { setOverlay(nil) })

	path := filepath.Join(t.TempDir(), "chatsnap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("product_name: mockups\nexport_default_quality: 75\nexport_document_mode: pdf\n"), 0o600))
	t.Setenv("CHATSNAP_CONFIG", path)
	t.Setenv("EXPORT_DEFAULT_QUALITY", "80")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mockups", cfg.ProductName)
	assert.Equal(t, 80, cfg.DefaultQuality, "environment wins over the file")
	assert.Equal(t, "pdf", cfg.DocumentMode)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Cleanup(func() { setOverlay(nil) })
	t.Setenv("CHATSNAP_CONFIG", "")
	t.Setenv("EXPORT_DOCUMENT_MODE", "fax")

	_, err := Load()
	assert.ErrorContains(t, err, "EXPORT_DOCUMENT_MODE")
}
