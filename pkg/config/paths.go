package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath expands a leading ~ and makes path absolute against the
// working directory. Empty input stays empty.
func ResolvePath(path string) string {
	path = expandHomeDir(path)
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// ArtifactsDir returns the resolved checkpoint root.
func (c *Config) ArtifactsDir() string {
	return ResolvePath(c.Artifacts.Dir)
}

// LogDir returns the resolved event log directory.
func (c *Config) LogDir() string {
	return ResolvePath(c.Logging.Dir)
}

func expandHomeDir(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
