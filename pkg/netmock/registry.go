// Package netmock answers a browser session's outbound requests with canned
// responses. Routes are URL globs evaluated in registration order; the first
// match wins and unmatched requests continue to the network.
package netmock

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ashparshp/hairone/pkg/browser"
	herrors "github.com/ashparshp/hairone/pkg/errors"
	"github.com/ashparshp/hairone/pkg/logging"
)

// Route is one registered pattern.
type Route struct {
	Pattern   string
	Method    string
	Responder Responder

	pattern *pattern
}

// Entry is one intercepted request in the registry's history.
type Entry struct {
	Time     time.Time `json:"time"`
	Method   string    `json:"method"`
	URL      string    `json:"url"`
	Mocked   bool      `json:"mocked"`
	Pattern  string    `json:"pattern,omitempty"`
	Status   int       `json:"status,omitempty"`
	Error    string    `json:"error,omitempty"`
	Resource string    `json:"resource,omitempty"`
}

// Registry holds mock routes for one session.
type Registry struct {
	mu     sync.RWMutex
	routes []*Route
	log    []Entry

	logger  *logging.Logger
	metrics *browser.Metrics
}

// Option customizes a Registry.
type Option func(*Registry)

// WithLogger writes every intercepted request to the network log.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithMetrics counts intercepted and mocked requests.
func WithMetrics(m *browser.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a route matching any method.
func (r *Registry) Register(pattern string, responder Responder) error {
	return r.RegisterMethod("", pattern, responder)
}

// RegisterMethod adds a route restricted to method. An empty method matches
// every method.
func (r *Registry) RegisterMethod(method, pattern string, responder Responder) error {
	if responder == nil {
		return herrors.New(herrors.ErrCodeInvalidInput, "route needs a responder").WithContext("pattern", pattern)
	}
	compiled, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	route := &Route{
		Pattern:   pattern,
		Method:    strings.ToUpper(strings.TrimSpace(method)),
		Responder: responder,
		pattern:   compiled,
	}
	r.mu.Lock()
	r.routes = append(r.routes, route)
	r.mu.Unlock()
	return nil
}

// Routes returns the registered routes in match order.
func (r *Registry) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Route, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, *route)
	}
	return out
}

// Match returns the first route accepting method and url, with any captured
// path parameters. An OPTIONS request prefers a route registered for OPTIONS
// and otherwise falls back to any route for the URL, which handle answers as
// a preflight.
func (r *Registry) Match(method, url string) (*Route, map[string]string, bool) {
	method = strings.ToUpper(method)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if method == http.MethodOptions {
		for _, route := range r.routes {
			if route.Method != http.MethodOptions {
				continue
			}
			if params, ok := route.pattern.match(url); ok {
				return route, params, true
			}
		}
	}
	for _, route := range r.routes {
		if route.Method != "" && route.Method != method && method != http.MethodOptions {
			continue
		}
		if params, ok := route.pattern.match(url); ok {
			return route, params, true
		}
	}
	return nil, nil, false
}

// Handle resolves req. The boolean is false when no route matched and the
// request should continue unmodified. A failing responder yields a 500 for
// this request only.
func (r *Registry) Handle(req Request) (Response, bool) {
	return r.handle(req, "")
}

func (r *Registry) handle(req Request, sessionID string) (Response, bool) {
	route, params, ok := r.Match(req.Method, req.URL)
	if !ok {
		r.record(sessionID, req, nil, Response{}, nil)
		return Response{}, false
	}
	req.Params = params

	// CORS preflight for a mocked URL: answer it so the real request follows.
	if strings.EqualFold(req.Method, http.MethodOptions) && !strings.EqualFold(route.Method, http.MethodOptions) {
		resp := Response{Status: http.StatusNoContent}
		r.record(sessionID, req, route, resp, nil)
		return resp, true
	}

	resp, err := respond(route, req)
	if err != nil {
		resp = errorResponse(err)
	}
	resp = resp.withDefaults()
	r.record(sessionID, req, route, resp, err)
	return resp, true
}

func respond(route *Route, req Request) (resp Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("responder panic: %v", rec)
		}
	}()
	return route.Responder.Respond(req)
}

func (r *Registry) record(sessionID string, req Request, route *Route, resp Response, err error) {
	entry := Entry{
		Time:     time.Now(),
		Method:   req.Method,
		URL:      req.URL,
		Mocked:   route != nil,
		Resource: req.ResourceType,
	}
	if route != nil {
		entry.Pattern = route.Pattern
		entry.Status = resp.Status
	}
	if err != nil {
		entry.Error = err.Error()
	}

	r.mu.Lock()
	r.log = append(r.log, entry)
	r.mu.Unlock()

	r.logger.Request(req.Method, req.URL, entry.Mocked, entry.Status)
	r.metrics.RecordRequest(sessionID, req.Method, req.URL, entry.Mocked)
	if err != nil {
		r.metrics.RecordResponderFailure(sessionID, req.URL)
		structured := herrors.Wrap(err, herrors.ErrCodeResponderFailed, "mock responder failed").
			WithContext("pattern", route.Pattern)
		r.logger.Warn(logging.CategoryNetwork, "responder_failed", structured.Error(), map[string]any{
			"url":    req.URL,
			"method": req.Method,
		})
	}
}

// Log returns every request seen so far, in arrival order.
func (r *Registry) Log() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Entry(nil), r.log...)
}

// Mocked returns only the requests a route answered.
func (r *Registry) Mocked() []Entry {
	var out []Entry
	for _, e := range r.Log() {
		if e.Mocked {
			out = append(out, e)
		}
	}
	return out
}

// Attach installs the registry as sess's interceptor. It must run before
// the first navigation so no request escapes unmocked.
func (r *Registry) Attach(ctx context.Context, sess browser.BrowserSession) error {
	sessionID := sess.ID()
	return sess.SetInterceptor(ctx, func(br browser.Request) *browser.Fulfillment {
		req := Request{
			Method:       br.Method,
			URL:          br.URL,
			Headers:      br.Headers,
			Body:         br.Body,
			ResourceType: br.ResourceType,
		}
		resp, ok := r.handle(req, sessionID)
		if !ok {
			return nil
		}
		return resp.fulfillment(req)
	})
}
