package browser

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Viewport defines the browser viewport size.
type Viewport struct {
	Width             int     `json:"width" yaml:"width"`
	Height            int     `json:"height" yaml:"height"`
	DeviceScaleFactor float64 `json:"device_scale_factor,omitempty" yaml:"device_scale_factor,omitempty"`
}

// String renders the viewport as WIDTHxHEIGHT.
func (v Viewport) String() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

var viewportPresets = map[string]Viewport{
	"mobile":  {Width: 390, Height: 844, DeviceScaleFactor: 1},
	"desktop": {Width: 1280, Height: 800, DeviceScaleFactor: 1},
	"default": {Width: 1280, Height: 720, DeviceScaleFactor: 1},
}

// ParseViewport accepts a preset name (mobile, desktop, default) or WIDTHxHEIGHT.
func ParseViewport(s string) (Viewport, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if vp, ok := viewportPresets[s]; ok {
		return vp, nil
	}
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return Viewport{}, fmt.Errorf("unknown viewport %q (want mobile, desktop, or WIDTHxHEIGHT)", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Viewport{}, fmt.Errorf("invalid viewport width %q", w)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Viewport{}, fmt.Errorf("invalid viewport height %q", h)
	}
	if width <= 0 || height <= 0 {
		return Viewport{}, fmt.Errorf("viewport must be positive, got %dx%d", width, height)
	}
	return Viewport{Width: width, Height: height, DeviceScaleFactor: 1}, nil
}

// ColorScheme is the prefers-color-scheme media feature emulated by a session.
type ColorScheme string

const (
	ColorSchemeLight ColorScheme = "light"
	ColorSchemeDark  ColorScheme = "dark"
)

// SessionConfig configures a browser session.
type SessionConfig struct {
	SessionID   string      `json:"session_id"`
	BaseURL     string      `json:"base_url,omitempty"`
	Viewport    Viewport    `json:"viewport"`
	ColorScheme ColorScheme `json:"color_scheme,omitempty"`
	UserAgent   string      `json:"user_agent,omitempty"`
	Locale      string      `json:"locale,omitempty"`
	Timezone    string      `json:"timezone,omitempty"`
	// Permissions are granted to every origin. Nothing is granted by default.
	Permissions       []string      `json:"permissions,omitempty"`
	NavigationTimeout time.Duration `json:"navigation_timeout,omitempty"`
}

// DefaultSessionConfig returns the recommended session defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Viewport:          viewportPresets["default"],
		ColorScheme:       ColorSchemeLight,
		NavigationTimeout: 30 * time.Second,
	}
}

// WithDefaults fills zero fields from DefaultSessionConfig.
func (c SessionConfig) WithDefaults() SessionConfig {
	def := DefaultSessionConfig()
	if c.Viewport.Width == 0 || c.Viewport.Height == 0 {
		c.Viewport = def.Viewport
	}
	if c.Viewport.DeviceScaleFactor == 0 {
		c.Viewport.DeviceScaleFactor = 1
	}
	if c.ColorScheme == "" {
		c.ColorScheme = def.ColorScheme
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = def.NavigationTimeout
	}
	return c
}

// Validate reports configuration that no engine could honour.
func (c SessionConfig) Validate() error {
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return fmt.Errorf("viewport must be positive, got %s", c.Viewport)
	}
	switch c.ColorScheme {
	case "", ColorSchemeLight, ColorSchemeDark:
	default:
		return fmt.Errorf("invalid color scheme %q (want light or dark)", c.ColorScheme)
	}
	for _, p := range c.Permissions {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("permission names must not be empty")
		}
	}
	return nil
}

// ResolveURL joins a route onto the session base URL. Absolute URLs pass through.
func (c SessionConfig) ResolveURL(route string) string {
	if strings.Contains(route, "://") || route == "about:blank" {
		return route
	}
	base := strings.TrimRight(c.BaseURL, "/")
	if route == "" {
		return base + "/"
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return base + route
}

// LocatorKind selects how a locator matches elements.
type LocatorKind string

const (
	// LocatorText matches elements whose visible text contains the value.
	LocatorText LocatorKind = "text"
	// LocatorTextExact matches elements whose visible text equals the value.
	LocatorTextExact LocatorKind = "text-exact"
	// LocatorPlaceholder matches inputs by placeholder text.
	LocatorPlaceholder LocatorKind = "placeholder"
	// LocatorRole matches by ARIA role and optional accessible name.
	LocatorRole LocatorKind = "role"
	// LocatorCSS matches a CSS selector.
	LocatorCSS LocatorKind = "css"
)

// Pick resolves a multi-element match to the element a step acts on.
type Pick string

const (
	PickFirst  Pick = "first"
	PickLast   Pick = "last"
	PickNth    Pick = "nth"
	PickUnique Pick = "unique"
)

// Locator describes how to find elements on the page.
//
// Engines return every element matching Kind/Value/Name in document order;
// Pick and Index are applied by the caller.
type Locator struct {
	Kind  LocatorKind `json:"kind" yaml:"kind"`
	Value string      `json:"value" yaml:"value"`
	Name  string      `json:"name,omitempty" yaml:"name,omitempty"`
	Pick  Pick        `json:"pick,omitempty" yaml:"pick,omitempty"`
	Index int         `json:"index,omitempty" yaml:"index,omitempty"`
}

// Text matches elements containing s.
func Text(s string) Locator { return Locator{Kind: LocatorText, Value: s} }

// ExactText matches elements whose text is exactly s.
func ExactText(s string) Locator { return Locator{Kind: LocatorTextExact, Value: s} }

// Placeholder matches inputs by placeholder.
func Placeholder(s string) Locator { return Locator{Kind: LocatorPlaceholder, Value: s} }

// Role matches by role and accessible name.
func Role(role, name string) Locator { return Locator{Kind: LocatorRole, Value: role, Name: name} }

// CSS matches a CSS selector.
func CSS(selector string) Locator { return Locator{Kind: LocatorCSS, Value: selector} }

// Last picks the final match.
func (l Locator) Last() Locator {
	l.Pick = PickLast
	return l
}

// Nth picks the zero-based i-th match.
func (l Locator) Nth(i int) Locator {
	l.Pick = PickNth
	l.Index = i
	return l
}

// Unique requires exactly one match; more is an ambiguity failure.
func (l Locator) Unique() Locator {
	l.Pick = PickUnique
	return l
}

// String renders the locator in the text=... notation used in logs.
func (l Locator) String() string {
	var sb strings.Builder
	sb.WriteString(string(l.Kind))
	sb.WriteString("=")
	sb.WriteString(l.Value)
	if l.Name != "" {
		sb.WriteString(fmt.Sprintf("[name=%q]", l.Name))
	}
	switch l.Pick {
	case PickLast, PickUnique:
		sb.WriteString(" >> ")
		sb.WriteString(string(l.Pick))
	case PickNth:
		sb.WriteString(fmt.Sprintf(" >> nth=%d", l.Index))
	}
	return sb.String()
}

// ParseLocator reads the notation produced by String, e.g.
// `placeholder=9876543210 >> last` or `role=button[name="Continue"]`.
// Input without a kind= prefix is a text locator.
func ParseLocator(s string) (Locator, error) {
	main, pick, hasPick := strings.Cut(strings.TrimSpace(s), " >> ")
	var loc Locator
	kind, value, ok := strings.Cut(main, "=")
	switch LocatorKind(kind) {
	case LocatorText, LocatorTextExact, LocatorPlaceholder, LocatorCSS:
		loc = Locator{Kind: LocatorKind(kind), Value: value}
	case LocatorRole:
		role, name, _ := strings.Cut(value, "[name=")
		loc = Locator{Kind: LocatorRole, Value: role}
		if name != "" {
			unquoted, err := strconv.Unquote(strings.TrimSuffix(name, "]"))
			if err != nil {
				return Locator{}, fmt.Errorf("invalid role name in %q", s)
			}
			loc.Name = unquoted
		}
	default:
		if ok && kind != "" && !strings.ContainsAny(kind, " ") {
			return Locator{}, fmt.Errorf("unknown locator kind %q", kind)
		}
		loc = Text(main)
	}
	if hasPick {
		switch p := strings.TrimSpace(pick); {
		case p == string(PickFirst):
		case p == string(PickLast):
			loc = loc.Last()
		case p == string(PickUnique):
			loc = loc.Unique()
		case strings.HasPrefix(p, "nth="):
			n, err := strconv.Atoi(strings.TrimPrefix(p, "nth="))
			if err != nil {
				return Locator{}, fmt.Errorf("invalid nth in %q", s)
			}
			loc = loc.Nth(n)
		default:
			return Locator{}, fmt.Errorf("unknown pick %q", p)
		}
	}
	return loc, loc.Validate()
}

// Validate checks that the locator is well formed.
func (l Locator) Validate() error {
	switch l.Kind {
	case LocatorText, LocatorTextExact, LocatorPlaceholder, LocatorRole, LocatorCSS:
	default:
		return fmt.Errorf("unknown locator kind %q", l.Kind)
	}
	if strings.TrimSpace(l.Value) == "" {
		return fmt.Errorf("%s locator needs a value", l.Kind)
	}
	switch l.Pick {
	case "", PickFirst, PickLast, PickUnique:
	case PickNth:
		if l.Index < 0 {
			return fmt.Errorf("nth index must be >= 0, got %d", l.Index)
		}
	default:
		return fmt.Errorf("unknown pick %q", l.Pick)
	}
	return nil
}

// Element is a snapshot of one matched DOM node.
type Element struct {
	// Handle is an engine-specific reference used by Click and Fill.
	Handle  string            `json:"handle"`
	Tag     string            `json:"tag"`
	Text    string            `json:"text,omitempty"`
	Visible bool              `json:"visible"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// ScriptID identifies a scheduled init script.
type ScriptID string

// Request is an outbound request paused by the engine.
type Request struct {
	ID           string            `json:"id"`
	Method       string            `json:"method"`
	URL          string            `json:"url"`
	Headers      map[string]string `json:"headers,omitempty"`
	Body         []byte            `json:"body,omitempty"`
	ResourceType string            `json:"resource_type,omitempty"`
}

// Fulfillment is a canned response substituted for the network.
type Fulfillment struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// Interceptor decides the fate of every outbound request. Returning nil lets
// the request continue to the network unmodified.
type Interceptor func(Request) *Fulfillment

// ConsoleMessage is a line the page wrote to its console, or an uncaught exception.
type ConsoleMessage struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// ConsoleHandler receives page console output.
type ConsoleHandler func(ConsoleMessage)
