// Package fake is an in-memory browser engine. It renders server-side HTML
// from Go callbacks, routes page fetches through the session interceptor, and
// answers locator queries with goquery. Unit tests and --engine fake dry runs
// use it in place of Chrome.
package fake

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/ashparshp/hairone/pkg/browser"
)

// Page is one route of an in-memory application.
type Page struct {
	// OnLoad runs after the init scripts on every load of the route. It may
	// fetch, mutate view state, or Redirect.
	OnLoad func(v *View)
	// Render produces the body HTML from the current view state. It is called
	// on every query, so state changes show up without a reload.
	Render func(v *View) string
	// Actions handle clicks on elements (or their ancestors) carrying
	// data-action="<name>", and fills on inputs carrying data-on-fill.
	Actions map[string]func(v *View)
}

type appRoute struct {
	pattern  string
	segments []string
	page     Page
}

// App is a set of routes served from one origin.
type App struct {
	origin   string
	routes   []appRoute
	notFound Page
}

// NewApp creates an application served at origin (scheme://host[:port]).
func NewApp(origin string) *App {
	return &App{
		origin: strings.TrimRight(origin, "/"),
		notFound: Page{Render: func(v *View) string {
			return `<h1>Unmatched Route</h1><p>Page could not be found.</p>`
		}},
	}
}

// Origin returns the scheme://host the app is served from.
func (a *App) Origin() string { return a.origin }

// Handle registers page for a path pattern. Segments starting with ':' bind
// a parameter. Earlier registrations win.
func (a *App) Handle(pattern string, page Page) *App {
	a.routes = append(a.routes, appRoute{
		pattern:  pattern,
		segments: splitPath(pattern),
		page:     page,
	})
	return a
}

// NotFound replaces the page served for unknown paths.
func (a *App) NotFound(page Page) *App {
	a.notFound = page
	return a
}

func (a *App) match(path string) (Page, map[string]string) {
	parts := splitPath(path)
	for _, r := range a.routes {
		if len(r.segments) != len(parts) {
			continue
		}
		params := make(map[string]string)
		ok := true
		for i, seg := range r.segments {
			if strings.HasPrefix(seg, ":") {
				params[seg[1:]] = parts[i]
				continue
			}
			if seg != parts[i] {
				ok = false
				break
			}
		}
		if ok {
			return r.page, params
		}
	}
	return a.notFound, map[string]string{}
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// View is the state of one page load. All View methods run under the
// session lock and must only be called from Page callbacks.
type View struct {
	sess       *Session
	generation int
	url        *url.URL
	params     map[string]string
	state      map[string]any
	inputs     map[string]string
	redirect   string
	fetched    map[string]bool
}

// URL returns the URL of the loaded document.
func (v *View) URL() *url.URL { return v.url }

// Param returns a path parameter bound by the route pattern.
func (v *View) Param(name string) string { return v.params[name] }

// Get returns a value stored with Set.
func (v *View) Get(key string) any { return v.state[key] }

// GetString returns a string value stored with Set, or "".
func (v *View) GetString(key string) string {
	s, _ := v.state[key].(string)
	return s
}

// Set stores per-load UI state.
func (v *View) Set(key string, value any) { v.state[key] = value }

// Input returns the value filled into the input keyed by name, id, or placeholder.
func (v *View) Input(key string) string { return v.inputs[key] }

// Storage reads localStorage.
func (v *View) Storage(key string) (string, bool) {
	val, ok := v.sess.storage[key]
	return val, ok
}

// SetStorage writes localStorage.
func (v *View) SetStorage(key, value string) { v.sess.storage[key] = value }

// RemoveStorage deletes a localStorage key.
func (v *View) RemoveStorage(key string) { delete(v.sess.storage, key) }

// Redirect navigates to path once the current callback returns.
func (v *View) Redirect(path string) { v.redirect = path }

// Log writes to the page console.
func (v *View) Log(level, text string) {
	if v.sess.console != nil {
		v.sess.console(browser.ConsoleMessage{Level: level, Text: text})
	}
}

// After schedules fn to run against this view after d, unless the page has
// navigated away by then.
func (v *View) After(d time.Duration, fn func(v *View)) {
	sess := v.sess
	generation := v.generation
	time.AfterFunc(d, func() {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if sess.isClosed() || sess.generation != generation {
			return
		}
		fn(v)
		_ = sess.settle(v)
	})
}

// Fetch issues a request from the page. It passes through the session
// interceptor first, then the runtime's upstream network.
func (v *View) Fetch(method, rawURL string, body []byte) (int, []byte) {
	target := rawURL
	if ref, err := url.Parse(rawURL); err == nil {
		target = v.url.ResolveReference(ref).String()
	}
	f := v.sess.roundTrip(browser.Request{
		ID:           uuid.NewString(),
		Method:       strings.ToUpper(method),
		URL:          target,
		Body:         body,
		ResourceType: "Fetch",
	})
	return f.Status, f.Body
}

// FetchJSON sends body as JSON and decodes a 2xx response into out.
func (v *View) FetchJSON(method, rawURL string, body any, out any) (int, error) {
	var payload []byte
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return 0, err
		}
		payload = data
	}
	status, resp := v.Fetch(method, rawURL, payload)
	if status < 200 || status >= 300 {
		return status, fmt.Errorf("%s %s: status %d", method, rawURL, status)
	}
	if out != nil && len(resp) > 0 {
		if err := sonic.Unmarshal(resp, out); err != nil {
			return status, err
		}
	}
	return status, nil
}
