package scenario

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashparshp/hairone/pkg/browser"
	herrors "github.com/ashparshp/hairone/pkg/errors"
	"github.com/ashparshp/hairone/pkg/fixture"
	"github.com/ashparshp/hairone/pkg/netmock"
)

const galleryYAML = `
name: shop gallery
tags: [shop]
session:
  viewport: desktop
identity: owner
mocks:
  - pattern: "**/api/shops/:id"
    json:
      name: Test Shop
      gallery: ["https://placehold.co/400x300"]
  - pattern: "**/api/shops/:id/reviews"
    json: []
steps:
  - kind: navigate
    url: /shop/shop1
  - kind: waitVisible
    target: text=Test Shop
    timeout: 5s
  - kind: assertCount
    target: css=img[src*="placehold.co"]
    count: 1
    at_least: true
  - kind: screenshot
    checkpoint: gallery
`

func TestParseSingleScenario(t *testing.T) {
	got, err := Parse([]byte(galleryYAML), "gallery.yaml")
	require.NoError(t, err)
	require.Len(t, got, 1)

	s := got[0]
	assert.Equal(t, "shop gallery", s.Name)
	assert.Equal(t, "gallery.yaml", s.Source)
	assert.Equal(t, "owner", s.Identity)
	assert.Equal(t, "desktop", s.Session.Viewport)
	require.Len(t, s.Mocks, 2)
	require.Len(t, s.Steps, 4)
	assert.Equal(t, 5*time.Second, s.Steps[1].Timeout)
	assert.True(t, s.Steps[2].AtLeast)

	require.NoError(t, s.Validate(nil))
	require.NotNil(t, s.Steps[1].Locator)
	assert.Equal(t, browser.Text("Test Shop"), *s.Steps[1].Locator)
	assert.Equal(t, browser.CSS(`img[src*="placehold.co"]`), *s.Steps[2].Locator)
}

func TestParseScenarioListAndMultipleDocuments(t *testing.T) {
	data := `
scenarios:
  - name: one
    steps: [{kind: navigate, url: /}]
  - name: two
    steps: [{kind: reload}]
---
name: three
steps:
  - kind: sleep
    duration: 1s
`
	got, err := Parse([]byte(data), "many.yaml")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "one", got[0].Name)
	assert.Equal(t, "two", got[1].Name)
	assert.Equal(t, "three", got[2].Name)
	assert.Equal(t, time.Second, got[2].Steps[0].Duration)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("- just\n- a list\n"), "bad.yaml")
	assert.True(t, herrors.IsCode(err, herrors.ErrCodeScenarioInvalid))

	_, err = Parse([]byte(""), "empty.yaml")
	assert.True(t, herrors.IsCode(err, herrors.ErrCodeScenarioInvalid))

	_, err = Parse([]byte("name: [unclosed"), "broken.yaml")
	assert.True(t, herrors.IsCode(err, herrors.ErrCodeScenarioInvalid))
}

func TestLoadPaths(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "admin")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	write := func(path, name string) {
		body := "name: " + name + "\nsteps:\n  - kind: navigate\n    url: /\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	write(filepath.Join(dir, "a.yaml"), "a")
	write(filepath.Join(nested, "b.yml"), "b")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	got, err := LoadPaths(dir)
	require.NoError(t, err)
	var names []string
	for _, s := range got {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, names)

	got, err = LoadPaths(filepath.Join(dir, "**", "*.yml"), filepath.Join(nested, "b.yml"))
	require.NoError(t, err)
	require.Len(t, got, 1, "a file named twice loads once")
	assert.Equal(t, "b", got[0].Name)

	_, err = LoadPaths(filepath.Join(dir, "missing.yaml"))
	assert.True(t, herrors.IsCode(err, herrors.ErrCodeScenarioInvalid))
}

func TestValidate(t *testing.T) {
	known := func(name string) bool { return name == "admin" }
	valid := func(steps ...Step) *Scenario {
		return &Scenario{Name: "s", Steps: steps}
	}

	tests := []struct {
		name string
		s    *Scenario
		ok   bool
	}{
		{"ok", valid(Navigate("/"), WaitVisible(browser.Text("Home"))), true},
		{"no name", &Scenario{Steps: []Step{Navigate("/")}}, false},
		{"no steps", &Scenario{Name: "s"}, false},
		{"navigate without url", valid(Step{Kind: StepNavigate}), false},
		{"click without locator", valid(Step{Kind: StepClick}), false},
		{"bad target", valid(Step{Kind: StepClick, Target: "bogus=thing"}), false},
		{"negative count", valid(AssertCount(browser.CSS("img"), -1)), false},
		{"sleep needs duration", valid(Step{Kind: StepSleep}), false},
		{"screenshot needs name", valid(Step{Kind: StepScreenshot}), false},
		{"unknown kind", valid(Step{Kind: "hover"}), false},
		{"seed known", valid(SeedNamed("admin")), true},
		{"seed unknown", valid(SeedNamed("root")), false},
		{"seed nothing", valid(Step{Kind: StepSeed}), false},
		{"negative timeout", valid(Navigate("/").Within(-time.Second)), false},
		{
			"bad viewport",
			&Scenario{Name: "s", Session: Session{Viewport: "huge"}, Steps: []Step{Navigate("/")}},
			false,
		},
		{
			"bad color scheme",
			&Scenario{Name: "s", Session: Session{ColorScheme: "sepia"}, Steps: []Step{Navigate("/")}},
			false,
		},
		{
			"bad mock pattern",
			&Scenario{Name: "s", Mocks: []Mock{{Pattern: "**/api/[", JSON: 1}}, Steps: []Step{Navigate("/")}},
			false,
		},
		{
			"mock with json and body",
			&Scenario{Name: "s", Mocks: []Mock{{Pattern: "**/api", JSON: 1, Body: "x"}}, Steps: []Step{Navigate("/")}},
			false,
		},
		{
			"unknown scenario identity",
			&Scenario{Name: "s", Identity: "ghost", Steps: []Step{Navigate("/")}},
			false,
		},
		{
			"inline fixture without token",
			&Scenario{Name: "s", Fixture: &fixture.Identity{Name: "x"}, Steps: []Step{Navigate("/")}},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate(known)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, herrors.ClassConfig, herrors.Class(err))
		})
	}
}

func TestValidateReportsStepNumber(t *testing.T) {
	s := &Scenario{Name: "login", Steps: []Step{Navigate("/"), {Kind: StepFill}}}
	err := s.Validate(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step: 2")
	assert.Contains(t, err.Error(), "scenario: login")
}

func TestSessionApply(t *testing.T) {
	base := browser.DefaultSessionConfig()
	base.BaseURL = "http://localhost:8081"

	cfg, err := Session{Viewport: "mobile", ColorScheme: "dark", Permissions: []string{"geolocation"}}.Apply(base)
	require.NoError(t, err)
	assert.Equal(t, 390, cfg.Viewport.Width)
	assert.Equal(t, browser.ColorSchemeDark, cfg.ColorScheme)
	assert.Equal(t, []string{"geolocation"}, cfg.Permissions)
	assert.Equal(t, base.BaseURL, cfg.BaseURL)

	same, err := Session{}.Apply(base)
	require.NoError(t, err)
	assert.Equal(t, base, same)
}

func TestMockResponder(t *testing.T) {
	s, err := Parse([]byte(`
name: m
mocks:
  - pattern: "**/api/shops/:id"
    status: 201
    headers: {X-Mock: "1"}
    json: {owner: {name: Ravi}, tags: [a, b]}
  - pattern: "**/health"
    body: ok
steps: [{kind: navigate, url: /}]
`), "m.yaml")
	require.NoError(t, err)

	reg, err := s[0].Registry()
	require.NoError(t, err)

	resp, ok := reg.Handle(netmock.Request{Method: "GET", URL: "http://localhost:5000/api/shops/7"})
	require.True(t, ok)
	assert.Equal(t, 201, resp.Status)
	assert.Equal(t, "1", resp.Headers["X-Mock"])
	var body map[string]any
	require.NoError(t, sonic.Unmarshal(resp.Body, &body))
	assert.Equal(t, map[string]any{"name": "Ravi"}, body["owner"])

	resp, ok = reg.Handle(netmock.Request{Method: "GET", URL: "http://localhost:5000/health"})
	require.True(t, ok)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Contains(t, resp.ContentType, "text/plain")
}

func TestStepBuilders(t *testing.T) {
	step := Click(browser.Role("button", "Continue")).AsOptional().Within(2 * time.Second).Capture("after-continue")
	assert.True(t, step.Optional)
	assert.Equal(t, 2*time.Second, step.Timeout)
	assert.Equal(t, "after-continue", step.Checkpoint)
	assert.Equal(t, `click role=button[name="Continue"]`, step.Label())
	assert.Equal(t, "login", step.Named("login").Label())

	seed := SeedNamed("admin").WithReload()
	assert.True(t, seed.Reload)
	assert.Equal(t, "seed admin", seed.Label())
}

func TestNormalizeYAML(t *testing.T) {
	in := map[any]any{"a": []any{map[any]any{1: "x"}}}
	out := normalizeYAML(in)
	assert.Equal(t, map[string]any{"a": []any{map[string]any{"1": "x"}}}, out)
}
