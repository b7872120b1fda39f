package version

import "fmt"

// Set at build time with -ldflags "-X".
var (
	Version   = "0.1.0"
	BuildTime = "development"
	GitCommit = "unknown"
)

func String() string {
	return fmt.Sprintf("v%s", Version)
}

// Software identifies the producer in artifact metadata (PNG tEXt, PDF creator).
func Software(product string) string {
	return fmt.Sprintf("%s %s", product, String())
}

func Get() map[string]string {
	return map[string]string{
		"version":   Version,
		"buildTime": BuildTime,
		"gitCommit": GitCommit,
	}
}
