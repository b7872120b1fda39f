package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	overlayMu sync.RWMutex
	overlay   map[string]string
)

// setOverlay replaces the values consulted after the environment.
func setOverlay(values map[string]string) {
	overlayMu.Lock()
	defer overlayMu.Unlock()
	overlay = values
}

func overlayValue(key string) (string, bool) {
	overlayMu.RLock()
	defer overlayMu.RUnlock()
	val, ok := overlay[key]
	return val, ok && val != ""
}

// Get returns the value of the environment variable `key` if set.
// If not set, and `key + "_FILE"` is set, the file at that path is read and
// its trimmed contents are returned. Next the YAML overlay loaded by
// LoadFile is consulted. If none of those are set, def is returned.
func Get(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if path := os.Getenv(key + "_FILE"); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	if val, ok := overlayValue(key); ok {
		return val
	}
	return def
}

// GetInt returns the integer value of `key`, or def when unset or invalid.
func GetInt(key string, def int) int {
	if val := Get(key, ""); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

// GetBool returns the boolean value of `key`.
// Recognised true values are: 1, t, true, y, yes (case-insensitive).
// Recognised false values are: 0, f, false, n, no.
func GetBool(key string, def bool) bool {
	if val := Get(key, ""); val != "" {
		switch strings.ToLower(val) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

// ParseDuration behaves like time.ParseDuration but also accepts "30d" for
// days and a bare integer for milliseconds.
func ParseDuration(s string) (time.Duration, error) {
	lower := strings.ToLower(strings.TrimSpace(s))
	if strings.HasSuffix(lower, "d") {
		days := strings.TrimSuffix(lower, "d")
		if n, err := strconv.Atoi(days); err == nil {
			return time.Duration(n) * 24 * time.Hour, nil
		}
	}
	if ms, err := strconv.Atoi(lower); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(lower)
}

// GetDuration returns the duration value of `key` parsed with ParseDuration,
// falling back to def.
func GetDuration(key string, def time.Duration) time.Duration {
	if val := Get(key, ""); val != "" {
		if d, err := ParseDuration(val); err == nil {
			return d
		}
	}
	return def
}
