package cdp

import (
	"errors"
	"strings"
	"time"
)

// Config controls how the Chrome DevTools adapter obtains a browser.
type Config struct {
	// RemoteURL attaches to an already running browser (ws:// or http://
	// devtools endpoint) instead of launching one.
	RemoteURL string
	// ExecPath overrides Chrome/Chromium discovery.
	ExecPath         string
	Headless         bool
	NoSandbox        bool
	UserDataDir      string
	ExtraFlags       map[string]any
	LaunchTimeout    time.Duration
	OperationTimeout time.Duration
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Headless:         true,
		LaunchTimeout:    30 * time.Second,
		OperationTimeout: 15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.LaunchTimeout <= 0 {
		c.LaunchTimeout = defaults.LaunchTimeout
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = defaults.OperationTimeout
	}
	c.RemoteURL = strings.TrimSpace(c.RemoteURL)
	c.ExecPath = strings.TrimSpace(c.ExecPath)
	return c
}

// Validate checks whether the config is usable.
func (c Config) Validate() error {
	if c.RemoteURL != "" && c.ExecPath != "" {
		return errors.New("remote_url and exec_path are mutually exclusive")
	}
	if c.RemoteURL != "" && !strings.HasPrefix(c.RemoteURL, "ws://") && !strings.HasPrefix(c.RemoteURL, "wss://") &&
		!strings.HasPrefix(c.RemoteURL, "http://") && !strings.HasPrefix(c.RemoteURL, "https://") {
		return errors.New("remote_url must be a ws:// or http:// devtools endpoint")
	}
	if c.LaunchTimeout < 0 || c.OperationTimeout < 0 {
		return errors.New("timeouts must be zero or positive")
	}
	return nil
}
