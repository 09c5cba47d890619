package fake

import (
	"context"
	"sync"
	"time"

	"github.com/ashparshp/hairone/pkg/browser"
)

// Runtime hands out sessions against one App.
type Runtime struct {
	app       *App
	navDelay  time.Duration
	launchErr error
	upstream  func(browser.Request) browser.Fulfillment

	mu       sync.Mutex
	sessions []*Session
	closed   bool
}

// Option customizes a Runtime.
type Option func(*Runtime)

// WithNavigationDelay makes every navigation take d, so navigation timeouts
// can be exercised.
func WithNavigationDelay(d time.Duration) Option {
	return func(r *Runtime) { r.navDelay = d }
}

// WithLaunchError makes NewSession fail as if the engine could not start.
func WithLaunchError(err error) Option {
	return func(r *Runtime) { r.launchErr = err }
}

// WithUpstream answers requests that no interceptor fulfilled. The default
// upstream is offline and answers 502.
func WithUpstream(fn func(browser.Request) browser.Fulfillment) Option {
	return func(r *Runtime) { r.upstream = fn }
}

// NewRuntime creates an engine serving app.
func NewRuntime(app *App, opts ...Option) *Runtime {
	r := &Runtime{
		app: app,
		upstream: func(browser.Request) browser.Fulfillment {
			return browser.Fulfillment{
				Status:  502,
				Headers: map[string]string{"Content-Type": "application/json"},
				Body:    []byte(`{"error":"network unreachable"}`),
			}
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewSession opens an isolated context with empty storage on about:blank.
func (r *Runtime) NewSession(ctx context.Context, cfg browser.SessionConfig) (browser.BrowserSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, browser.ErrUnavailable
	}
	if r.launchErr != nil {
		return nil, r.launchErr
	}
	s := newSession(r, cfg)
	r.sessions = append(r.sessions, s)
	return s, nil
}

// Sessions returns every session created so far, open or closed.
func (r *Runtime) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, len(r.sessions))
	copy(out, r.sessions)
	return out
}

// Close stops handing out sessions.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
