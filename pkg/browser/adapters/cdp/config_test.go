package cdp

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashparshp/hairone/pkg/browser"
)

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{RemoteURL: "  ws://127.0.0.1:9222/devtools/browser/abc  "}.withDefaults()

	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", cfg.RemoteURL)
	assert.Equal(t, 30*time.Second, cfg.LaunchTimeout)
	assert.Equal(t, 15*time.Second, cfg.OperationTimeout)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "defaults", cfg: DefaultConfig()},
		{name: "remote http", cfg: Config{RemoteURL: "http://localhost:9222"}},
		{name: "remote and exec", cfg: Config{RemoteURL: "ws://x", ExecPath: "/usr/bin/chromium"}, wantErr: "mutually exclusive"},
		{name: "bad scheme", cfg: Config{RemoteURL: "localhost:9222"}, wantErr: "devtools endpoint"},
		{name: "negative timeout", cfg: Config{LaunchTimeout: -time.Second}, wantErr: "timeouts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewRuntimeRejectsInvalidConfig(t *testing.T) {
	_, err := NewRuntime(Config{RemoteURL: "ftp://nope"})
	assert.Error(t, err)
}

func TestAllocatorOptionsIncludeOverrides(t *testing.T) {
	r, err := NewRuntime(Config{ExecPath: "/opt/chrome", NoSandbox: true, ExtraFlags: map[string]any{"lang": "en-IN"}})
	require.NoError(t, err)

	base, err := NewRuntime(Config{})
	require.NoError(t, err)

	// no-sandbox, exec path and one extra flag on top of the base set
	assert.Len(t, r.allocatorOptions(), len(base.allocatorOptions())+3)
}

func TestBuildLocateScriptQuotesArguments(t *testing.T) {
	script, err := buildLocateScript(browser.Text(`Say "hi"`))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(script, "(() => {"))
	assert.Contains(t, script, `const kind = "text", value = "Say \"hi\"", name = "";`)
	assert.Contains(t, script, handleAttr)
}

func TestHandleSelector(t *testing.T) {
	sel := handleSelector(browser.Element{Handle: "h12"})
	assert.Equal(t, `[data-uiverify-handle="h12"]`, sel)
}
