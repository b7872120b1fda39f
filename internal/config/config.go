package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the typed view of every setting the export pipeline surfaces read.
type Config struct {
	ProductName string

	DefaultQuality    int
	DefaultGIFQuality int
	SuccessWindow     time.Duration
	DocumentMode      string // "print" or "pdf"

	Renderer       string // "chrome", "browserless" or "raster"
	ChromiumBin    string
	BrowserlessURL string
	RenderTimeout  time.Duration

	Storage         string // "filesystem" or "s3"
	DownloadDir     string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3UseSSL        bool
	PrintSurfaceTTL time.Duration
	Retention       time.Duration // age after which stored exports are removed, 0 keeps them

	Port            string
	GinMode         string
	ExportRateLimit int           // exports per minute per client, 0 disables
	SessionTTL      time.Duration // idle sessions are dropped after this, 0 keeps them
}

// Load reads the configuration from the environment, the optional YAML file
// named by CHATSNAP_CONFIG, and built-in defaults, in that order of precedence.
func Load() (Config, error) {
	if path := os.Getenv("CHATSNAP_CONFIG"); path != "" {
		if err := LoadFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		ProductName:       Get("PRODUCT_NAME", "chatsnap"),
		DefaultQuality:    GetInt("EXPORT_DEFAULT_QUALITY", 90),
		DefaultGIFQuality: GetInt("EXPORT_GIF_QUALITY", 10),
		SuccessWindow:     GetDuration("EXPORT_SUCCESS_WINDOW", 3*time.Second),
		DocumentMode:      strings.ToLower(Get("EXPORT_DOCUMENT_MODE", "print")),
		Renderer:          strings.ToLower(Get("RENDERER", "chrome")),
		ChromiumBin:       Get("CHROMIUM_BIN", ""),
		BrowserlessURL:    Get("BROWSERLESS_URL", "http://localhost:3000"),
		RenderTimeout:     GetDuration("RENDER_TIMEOUT", 60*time.Second),
		Storage:           strings.ToLower(Get("EXPORT_STORAGE", "filesystem")),
		DownloadDir:       Get("EXPORT_DOWNLOAD_DIR", "exports"),
		S3Endpoint:        Get("S3_ENDPOINT", "localhost:9000"),
		S3AccessKey:       Get("S3_ACCESS_KEY", ""),
		S3SecretKey:       Get("S3_SECRET_KEY", ""),
		S3Bucket:          Get("S3_BUCKET", "chatsnap-exports"),
		S3UseSSL:          GetBool("S3_USE_SSL", false),
		PrintSurfaceTTL:   GetDuration("PRINT_SURFACE_TTL", time.Minute),
		Retention:         GetDuration("EXPORT_RETENTION", 24*time.Hour),
		Port:              Get("PORT", "8000"),
		GinMode:           Get("GIN_MODE", ""),
		ExportRateLimit:   GetInt("EXPORT_RATE_LIMIT", 30),
		SessionTTL:        GetDuration("SESSION_TTL", 30*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if c.ProductName == "" {
		return fmt.Errorf("PRODUCT_NAME must not be empty")
	}
	if c.DefaultQuality < 1 || c.DefaultQuality > 100 {
		return fmt.Errorf("EXPORT_DEFAULT_QUALITY must be between 1 and 100, got %d", c.DefaultQuality)
	}
	if c.DefaultGIFQuality < 1 || c.DefaultGIFQuality > 30 {
		return fmt.Errorf("EXPORT_GIF_QUALITY must be between 1 and 30, got %d", c.DefaultGIFQuality)
	}
	switch c.DocumentMode {
	case "print", "pdf":
	default:
		return fmt.Errorf("EXPORT_DOCUMENT_MODE must be print or pdf, got %q", c.DocumentMode)
	}
	switch c.Renderer {
	case "chrome", "browserless", "raster":
	default:
		return fmt.Errorf("RENDERER must be chrome, browserless or raster, got %q", c.Renderer)
	}
	switch c.Storage {
	case "filesystem", "s3":
	default:
		return fmt.Errorf("EXPORT_STORAGE must be filesystem or s3, got %q", c.Storage)
	}
	return nil
}

// LoadFile reads a flat YAML mapping of setting names to values and makes
// them available to Get behind the environment.
func LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for key, val := range raw {
		if val == nil {
			continue
		}
		values[strings.ToUpper(key)] = fmt.Sprint(val)
	}
	setOverlay(values)
	return nil
}
