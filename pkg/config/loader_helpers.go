package config

import (
	"os"

	"gopkg.in/yaml.v3"

	herrors "github.com/ashparshp/hairone/pkg/errors"
)

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return herrors.Wrap(err, herrors.ErrCodeConfigParse, "parsing YAML").WithContext("path", path)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return herrors.Wrap(err, herrors.ErrCodeConfigParse, "parsing YAML").WithContext("path", path)
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base. Booleans only override when the
// key is present in raw, so an omitted key never resets a true default.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if override.BaseURL != "" {
		base.BaseURL = override.BaseURL
	}
	if override.APIBase != "" {
		base.APIBase = override.APIBase
	}

	if override.Browser.Engine != "" {
		base.Browser.Engine = override.Browser.Engine
	}
	if boolFieldSet(raw, "browser", "headless") {
		base.Browser.Headless = override.Browser.Headless
	}
	if boolFieldSet(raw, "browser", "no_sandbox") {
		base.Browser.NoSandbox = override.Browser.NoSandbox
	}
	if override.Browser.ExecPath != "" {
		base.Browser.ExecPath = override.Browser.ExecPath
	}
	if override.Browser.CDPURL != "" {
		base.Browser.CDPURL = override.Browser.CDPURL
	}
	if override.Browser.Viewport != "" {
		base.Browser.Viewport = override.Browser.Viewport
	}
	if override.Browser.ColorScheme != "" {
		base.Browser.ColorScheme = override.Browser.ColorScheme
	}
	if override.Browser.UserAgent != "" {
		base.Browser.UserAgent = override.Browser.UserAgent
	}
	if override.Browser.Locale != "" {
		base.Browser.Locale = override.Browser.Locale
	}
	if override.Browser.Timezone != "" {
		base.Browser.Timezone = override.Browser.Timezone
	}
	if len(override.Browser.Flags) > 0 {
		if base.Browser.Flags == nil {
			base.Browser.Flags = make(map[string]string, len(override.Browser.Flags))
		}
		for k, v := range override.Browser.Flags {
			base.Browser.Flags[k] = v
		}
	}
	if override.Browser.LaunchTimeout != 0 {
		base.Browser.LaunchTimeout = override.Browser.LaunchTimeout
	}

	if override.Timeouts.Navigation != 0 {
		base.Timeouts.Navigation = override.Timeouts.Navigation
	}
	if override.Timeouts.Wait != 0 {
		base.Timeouts.Wait = override.Timeouts.Wait
	}
	if override.Timeouts.Action != 0 {
		base.Timeouts.Action = override.Timeouts.Action
	}

	if override.Artifacts.Dir != "" {
		base.Artifacts.Dir = override.Artifacts.Dir
	}
	if boolFieldSet(raw, "artifacts", "full_page") {
		base.Artifacts.FullPage = override.Artifacts.FullPage
	}

	if override.Logging.Dir != "" {
		base.Logging.Dir = override.Logging.Dir
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if boolFieldSet(raw, "logging", "console") {
		base.Logging.Console = override.Logging.Console
	}

	if override.Run.Parallel != 0 {
		base.Run.Parallel = override.Run.Parallel
	}
	if boolFieldSet(raw, "run", "strict") {
		base.Run.Strict = override.Run.Strict
	}

	if boolFieldSet(raw, "preflight", "enabled") {
		base.Preflight.Enabled = override.Preflight.Enabled
	}
	if boolFieldSet(raw, "preflight", "retries") {
		base.Preflight.Retries = override.Preflight.Retries
	}
	if override.Preflight.Timeout != 0 {
		base.Preflight.Timeout = override.Preflight.Timeout
	}
}

func boolFieldSet(raw map[string]any, path ...string) bool {
	if len(path) == 0 || raw == nil {
		return false
	}
	current := any(raw)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return false
		}
		val, ok := m[key]
		if !ok {
			return false
		}
		current = val
	}
	return true
}
