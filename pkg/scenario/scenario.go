// Package scenario defines verification scenarios: session settings, mock
// routes, a seeded identity, and an ordered list of steps.
package scenario

import (
	"time"

	"github.com/ashparshp/hairone/pkg/browser"
	"github.com/ashparshp/hairone/pkg/fixture"
	"github.com/ashparshp/hairone/pkg/netmock"
)

// StepKind names what a step does.
type StepKind string

const (
	StepNavigate         StepKind = "navigate"
	StepReload           StepKind = "reload"
	StepWaitVisible      StepKind = "waitVisible"
	StepWaitHidden       StepKind = "waitHidden"
	StepWaitURL          StepKind = "waitURL"
	StepFill             StepKind = "fill"
	StepClick            StepKind = "click"
	StepAssertVisible    StepKind = "assertVisible"
	StepAssertNotVisible StepKind = "assertNotVisible"
	StepAssertCount      StepKind = "assertCount"
	StepScreenshot       StepKind = "screenshot"
	StepSleep            StepKind = "sleep"
	StepSeed             StepKind = "seed"
)

// NeedsLocator reports whether steps of this kind act on an element.
func (k StepKind) NeedsLocator() bool {
	switch k {
	case StepWaitVisible, StepWaitHidden, StepFill, StepClick,
		StepAssertVisible, StepAssertNotVisible, StepAssertCount:
		return true
	}
	return false
}

// Step is one instruction. Which fields apply depends on Kind.
type Step struct {
	Kind StepKind `yaml:"kind"`
	Name string   `yaml:"name,omitempty"`

	// URL is the route for navigate, or the glob for waitURL.
	URL string `yaml:"url,omitempty"`
	// Target is shorthand for Locator, in browser.ParseLocator notation.
	Target  string           `yaml:"target,omitempty"`
	Locator *browser.Locator `yaml:"locator,omitempty"`
	Value   string           `yaml:"value,omitempty"`

	// Count and AtLeast apply to assertCount.
	Count   int  `yaml:"count,omitempty"`
	AtLeast bool `yaml:"at_least,omitempty"`

	// Identity names a fixture to seed; Fixture declares one inline.
	Identity string            `yaml:"identity,omitempty"`
	Fixture  *fixture.Identity `yaml:"fixture,omitempty"`
	// Reload makes a seed step reload the page afterwards.
	Reload bool `yaml:"reload,omitempty"`

	Duration time.Duration `yaml:"duration,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Optional bool          `yaml:"optional,omitempty"`

	// Checkpoint captures a screenshot with this name after the step passes.
	Checkpoint string `yaml:"checkpoint,omitempty"`
	FullPage   *bool  `yaml:"full_page,omitempty"`
}

// Label is a short description for logs and the summary.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	switch {
	case s.Locator != nil:
		return string(s.Kind) + " " + s.Locator.String()
	case s.Target != "":
		return string(s.Kind) + " " + s.Target
	case s.URL != "":
		return string(s.Kind) + " " + s.URL
	case s.Identity != "":
		return string(s.Kind) + " " + s.Identity
	case s.Checkpoint != "":
		return string(s.Kind) + " " + s.Checkpoint
	}
	return string(s.Kind)
}

// Session holds per-scenario overrides of the configured session defaults.
type Session struct {
	Viewport    string   `yaml:"viewport,omitempty"`
	ColorScheme string   `yaml:"color_scheme,omitempty"`
	UserAgent   string   `yaml:"user_agent,omitempty"`
	Locale      string   `yaml:"locale,omitempty"`
	Timezone    string   `yaml:"timezone,omitempty"`
	Permissions []string `yaml:"permissions,omitempty"`
}

// Apply layers the overrides onto base.
func (s Session) Apply(base browser.SessionConfig) (browser.SessionConfig, error) {
	if s.Viewport != "" {
		vp, err := browser.ParseViewport(s.Viewport)
		if err != nil {
			return base, err
		}
		base.Viewport = vp
	}
	if s.ColorScheme != "" {
		base.ColorScheme = browser.ColorScheme(s.ColorScheme)
	}
	if s.UserAgent != "" {
		base.UserAgent = s.UserAgent
	}
	if s.Locale != "" {
		base.Locale = s.Locale
	}
	if s.Timezone != "" {
		base.Timezone = s.Timezone
	}
	if len(s.Permissions) > 0 {
		base.Permissions = append([]string(nil), s.Permissions...)
	}
	return base, nil
}

// Mock is a declarative mock route.
type Mock struct {
	Pattern     string            `yaml:"pattern"`
	Method      string            `yaml:"method,omitempty"`
	Status      int               `yaml:"status,omitempty"`
	JSON        any               `yaml:"json,omitempty"`
	Body        string            `yaml:"body,omitempty"`
	ContentType string            `yaml:"content_type,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
}

// Responder builds the netmock responder for m.
func (m Mock) Responder() netmock.Responder {
	status := m.Status
	if status == 0 {
		status = 200
	}
	if m.JSON != nil {
		return netmock.ResponderFunc(func(req netmock.Request) (netmock.Response, error) {
			resp, err := netmock.JSONStatus(status, normalizeYAML(m.JSON)).Respond(req)
			resp.Headers = m.Headers
			return resp, err
		})
	}
	contentType := m.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	resp := netmock.Static(status, contentType, []byte(m.Body))
	resp.Headers = m.Headers
	return resp
}

// normalizeYAML converts map[any]any nodes, which JSON encoders reject, into
// map[string]any.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[toString(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	}
	return v
}

// Scenario is one self-contained verification.
type Scenario struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	Session     Session  `yaml:"session,omitempty"`
	Mocks       []Mock   `yaml:"mocks,omitempty"`

	// Identity names a fixture seeded before the first navigation; Fixture
	// declares one inline.
	Identity string            `yaml:"identity,omitempty"`
	Fixture  *fixture.Identity `yaml:"fixture,omitempty"`

	FullPage bool   `yaml:"full_page,omitempty"`
	Steps    []Step `yaml:"steps"`

	// Routes registers programmatic mocks after the declarative ones.
	Routes func(*netmock.Registry) error `yaml:"-"`
	// Source is the file the scenario came from, if any.
	Source string `yaml:"-"`
}

// Registry builds a fresh mock registry for one run of the scenario.
func (s *Scenario) Registry(opts ...netmock.Option) (*netmock.Registry, error) {
	reg := netmock.New(opts...)
	for _, m := range s.Mocks {
		if err := reg.RegisterMethod(m.Method, m.Pattern, m.Responder()); err != nil {
			return nil, err
		}
	}
	if s.Routes != nil {
		if err := s.Routes(reg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
