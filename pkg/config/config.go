package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ashparshp/hairone/pkg/browser"
	herrors "github.com/ashparshp/hairone/pkg/errors"
)

// Config holds harness configuration.
type Config struct {
	// BaseURL is the origin of the application under test.
	BaseURL string `yaml:"base_url"`
	// APIBase is the backend origin the catalogue's mock routes are written
	// against. Mocks use ** prefixes, so this only matters for preflight.
	APIBase   string          `yaml:"api_base"`
	Browser   BrowserConfig   `yaml:"browser"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
	Artifacts ArtifactConfig  `yaml:"artifacts"`
	Logging   LoggingConfig   `yaml:"logging"`
	Run       RunConfig       `yaml:"run"`
	Preflight PreflightConfig `yaml:"preflight"`
}

// BrowserConfig selects and tunes the browser engine.
type BrowserConfig struct {
	// Engine is "cdp" (Chrome over DevTools) or "fake" (in-memory).
	Engine        string            `yaml:"engine"`
	Headless      bool              `yaml:"headless"`
	NoSandbox     bool              `yaml:"no_sandbox"`
	ExecPath      string            `yaml:"exec_path"`
	CDPURL        string            `yaml:"cdp_url"`
	Viewport      string            `yaml:"viewport"`
	ColorScheme   string            `yaml:"color_scheme"`
	UserAgent     string            `yaml:"user_agent"`
	Locale        string            `yaml:"locale"`
	Timezone      string            `yaml:"timezone"`
	Flags         map[string]string `yaml:"flags"`
	LaunchTimeout time.Duration     `yaml:"launch_timeout"`
}

// TimeoutConfig holds the default per-step bounds.
type TimeoutConfig struct {
	Navigation time.Duration `yaml:"navigation"`
	Wait       time.Duration `yaml:"wait"`
	Action     time.Duration `yaml:"action"`
}

// ArtifactConfig controls where checkpoints are written.
type ArtifactConfig struct {
	Dir      string `yaml:"dir"`
	FullPage bool   `yaml:"full_page"`
}

// LoggingConfig controls the JSONL event log.
type LoggingConfig struct {
	Dir     string `yaml:"dir"`
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// RunConfig controls scenario scheduling.
type RunConfig struct {
	// Parallel is the number of sessions run at once. 1 runs sequentially.
	Parallel int `yaml:"parallel"`
	// Strict makes soft failures of optional steps fail the run too.
	Strict bool `yaml:"strict"`
}

// PreflightConfig controls the base URL reachability probe.
type PreflightConfig struct {
	Enabled bool          `yaml:"enabled"`
	Retries int           `yaml:"retries"`
	Timeout time.Duration `yaml:"timeout"`
}

var validEngines = map[string]bool{"cdp": true, "fake": true}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "http://localhost:8081",
		APIBase: "http://localhost:5000/api",
		Browser: BrowserConfig{
			Engine:        "cdp",
			Headless:      true,
			Viewport:      "default",
			ColorScheme:   string(browser.ColorSchemeLight),
			LaunchTimeout: 30 * time.Second,
		},
		Timeouts: TimeoutConfig{
			Navigation: 60 * time.Second,
			Wait:       10 * time.Second,
			Action:     10 * time.Second,
		},
		Artifacts: ArtifactConfig{
			Dir: "verification",
		},
		Logging: LoggingConfig{
			Dir:     filepath.Join(".uiverify", "logs"),
			Level:   "info",
			Console: true,
		},
		Run: RunConfig{
			Parallel: 1,
		},
		Preflight: PreflightConfig{
			Enabled: true,
			Retries: 3,
			Timeout: 5 * time.Second,
		},
	}
}

// Load loads configuration from default locations with proper precedence:
// defaults, ~/.uiverify/config.yaml, ./.uiverify/config.yaml, then UIVERIFY_*
// environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".uiverify", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, loadError(userConfigPath, err)
		}
	}

	projectConfigPath := filepath.Join(".", ".uiverify", "config.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, loadError(projectConfigPath, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path on top of the
// defaults. Environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, loadError(path, err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadError(path string, err error) error {
	if herrors.IsCode(err, herrors.ErrCodeConfigParse) {
		return err
	}
	return herrors.Wrap(err, herrors.ErrCodeConfigLoad, "loading config").WithContext("path", path)
}

// applyEnvOverrides applies UIVERIFY_* environment variables.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("UIVERIFY_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("UIVERIFY_API_BASE"); v != "" {
		cfg.APIBase = v
	}
	if v := os.Getenv("UIVERIFY_ENGINE"); v != "" {
		cfg.Browser.Engine = v
	}
	if val, ok := envBool("UIVERIFY_HEADLESS"); ok {
		cfg.Browser.Headless = val
	}
	if val, ok := envBool("UIVERIFY_NO_SANDBOX"); ok {
		cfg.Browser.NoSandbox = val
	}
	if v := os.Getenv("UIVERIFY_CDP_URL"); v != "" {
		cfg.Browser.CDPURL = v
	}
	if v := os.Getenv("UIVERIFY_CHROME_PATH"); v != "" {
		cfg.Browser.ExecPath = v
	}
	if v := os.Getenv("UIVERIFY_VIEWPORT"); v != "" {
		cfg.Browser.Viewport = v
	}
	if v := os.Getenv("UIVERIFY_COLOR_SCHEME"); v != "" {
		cfg.Browser.ColorScheme = v
	}
	if v := os.Getenv("UIVERIFY_ARTIFACTS_DIR"); v != "" {
		cfg.Artifacts.Dir = v
	}
	if v := os.Getenv("UIVERIFY_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
	if v := os.Getenv("UIVERIFY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("UIVERIFY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return herrors.Wrap(err, herrors.ErrCodeConfigInvalid, "invalid UIVERIFY_TIMEOUT")
		}
		cfg.Timeouts.Wait = d
	}
	if v := os.Getenv("UIVERIFY_PARALLEL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return herrors.Wrap(err, herrors.ErrCodeConfigInvalid, "invalid UIVERIFY_PARALLEL")
		}
		cfg.Run.Parallel = n
	}
	if val, ok := envBool("UIVERIFY_STRICT"); ok {
		cfg.Run.Strict = val
	}
	if val, ok := envBool("UIVERIFY_PREFLIGHT"); ok {
		cfg.Preflight.Enabled = val
	}
	if v := os.Getenv("UIVERIFY_CHROME_FLAGS"); v != "" {
		if cfg.Browser.Flags == nil {
			cfg.Browser.Flags = make(map[string]string)
		}
		for _, flag := range splitCommaList(v) {
			name, value, _ := strings.Cut(flag, "=")
			cfg.Browser.Flags[strings.TrimLeft(name, "-")] = value
		}
	}
	return nil
}

func splitCommaList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func envBool(key string) (bool, bool) {
	val := os.Getenv(key)
	if val == "" {
		return false, false
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// Validate checks the configuration for values no run could use.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return herrors.Newf(herrors.ErrCodeConfigInvalid, format, args...)
	}

	if strings.TrimSpace(c.BaseURL) == "" {
		return invalid("base_url is required")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return invalid("base_url must be an http(s) URL, got %q", c.BaseURL)
	}
	if !validEngines[c.Browser.Engine] {
		return invalid("browser.engine must be cdp or fake, got %q", c.Browser.Engine)
	}
	if c.Browser.CDPURL != "" && c.Browser.ExecPath != "" {
		return invalid("browser.cdp_url and browser.exec_path are mutually exclusive")
	}
	if _, err := browser.ParseViewport(c.Browser.Viewport); err != nil {
		return herrors.Wrap(err, herrors.ErrCodeConfigInvalid, "invalid browser.viewport")
	}
	switch browser.ColorScheme(c.Browser.ColorScheme) {
	case browser.ColorSchemeLight, browser.ColorSchemeDark:
	default:
		return invalid("browser.color_scheme must be light or dark, got %q", c.Browser.ColorScheme)
	}
	if c.Timeouts.Navigation <= 0 || c.Timeouts.Wait <= 0 || c.Timeouts.Action <= 0 {
		return invalid("timeouts must be positive")
	}
	if strings.TrimSpace(c.Artifacts.Dir) == "" {
		return invalid("artifacts.dir is required")
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return invalid("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if c.Run.Parallel < 1 {
		return invalid("run.parallel must be at least 1, got %d", c.Run.Parallel)
	}
	if c.Preflight.Retries < 0 {
		return invalid("preflight.retries must be zero or positive")
	}
	return nil
}

// SessionConfig builds the default browser session configuration.
// Scenario overrides are applied on top by the runner.
func (c *Config) SessionConfig() browser.SessionConfig {
	vp, err := browser.ParseViewport(c.Browser.Viewport)
	if err != nil {
		vp = browser.DefaultSessionConfig().Viewport
	}
	return browser.SessionConfig{
		BaseURL:           c.BaseURL,
		Viewport:          vp,
		ColorScheme:       browser.ColorScheme(c.Browser.ColorScheme),
		UserAgent:         c.Browser.UserAgent,
		Locale:            c.Browser.Locale,
		Timezone:          c.Browser.Timezone,
		NavigationTimeout: c.Timeouts.Navigation,
	}
}

// String renders the effective configuration for `uiverify config`.
func (c *Config) String() string {
	return fmt.Sprintf("base_url=%s engine=%s viewport=%s color_scheme=%s artifacts=%s parallel=%d strict=%t",
		c.BaseURL, c.Browser.Engine, c.Browser.Viewport, c.Browser.ColorScheme, c.Artifacts.Dir, c.Run.Parallel, c.Run.Strict)
}
