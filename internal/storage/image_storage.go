package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rmitchellscott/chatsnap/internal/config"
	"github.com/rmitchellscott/chatsnap/internal/logging"
)

// New returns the backend selected by cfg.Storage.
func New(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.Storage {
	case "s3":
		return NewS3Backend(ctx, S3Options{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
	case "filesystem", "":
		return NewFilesystemBackend(cfg.DownloadDir), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

// CleanupOldExports removes artifacts older than maxAge and returns how many
// were removed. Individual delete failures are logged and skipped.
func CleanupOldExports(ctx context.Context, backend Backend, prefix string, maxAge time.Duration) (int, error) {
	files, err := backend.ListWithInfo(ctx, prefix)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, file := range files {
		if !file.ModTime.Before(cutoff) {
			continue
		}
		if err := backend.Delete(ctx, file.Key); err != nil {
			logging.WarnWithComponent(logging.ComponentDelivery, "Failed to remove old export", "key", file.Key, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
