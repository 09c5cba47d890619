package browser

import (
	"context"
	"fmt"
	"sync"

	herrors "github.com/ashparshp/hairone/pkg/errors"
	"github.com/ashparshp/hairone/pkg/logging"
	"github.com/ashparshp/hairone/pkg/session"
)

// Manager owns browser sessions for a runtime and guarantees each is torn
// down exactly once.
type Manager struct {
	runtime  Runtime
	sessions map[string]BrowserSession
	mu       sync.Mutex

	metrics *Metrics
	logger  *logging.Logger
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithMetrics records session lifecycle counters on m.
func WithMetrics(m *Metrics) ManagerOption {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithLogger logs session lifecycle events.
func WithLogger(l *logging.Logger) ManagerOption {
	return func(mgr *Manager) { mgr.logger = l }
}

// NewManager creates a Manager backed by the provided runtime.
func NewManager(runtime Runtime, opts ...ManagerOption) *Manager {
	m := &Manager{
		runtime:  runtime,
		sessions: make(map[string]BrowserSession),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Metrics returns the collector the manager records to, if any.
func (m *Manager) Metrics() *Metrics {
	if m == nil {
		return nil
	}
	return m.metrics
}

// Open allocates a new browser session. Engine start-up failures come back
// as ENGINE_LAUNCH errors and are never retried.
func (m *Manager) Open(ctx context.Context, cfg SessionConfig) (BrowserSession, error) {
	if m == nil || m.runtime == nil {
		return nil, LaunchError(ErrUnavailable)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, herrors.Wrap(err, herrors.ErrCodeConfigInvalid, "invalid session config")
	}
	if cfg.SessionID == "" {
		cfg.SessionID = session.GenerateSessionID("session")
	}

	m.mu.Lock()
	if _, exists := m.sessions[cfg.SessionID]; exists {
		m.mu.Unlock()
		return nil, herrors.New(herrors.ErrCodeInvalidInput, fmt.Sprintf("session already exists: %s", cfg.SessionID))
	}
	m.mu.Unlock()

	sess, err := m.runtime.NewSession(ctx, cfg)
	if err != nil {
		m.metrics.RecordLaunchFailure()
		m.logger.Error(logging.CategorySession, "launch_failed", err.Error(), map[string]any{"session_id": cfg.SessionID})
		return nil, LaunchError(err)
	}

	m.mu.Lock()
	m.sessions[sess.ID()] = sess
	m.mu.Unlock()

	m.metrics.RecordSessionCreated(sess.ID())
	m.logger.Info(logging.CategorySession, "session_opened", "", map[string]any{
		"session_id":   sess.ID(),
		"viewport":     cfg.Viewport.String(),
		"color_scheme": string(cfg.ColorScheme),
		"permissions":  cfg.Permissions,
	})
	return sess, nil
}

// Close tears a session down. Only the first call for a session reaches the
// engine; later calls are no-ops.
func (m *Manager) Close(sess BrowserSession) error {
	if m == nil || sess == nil {
		return nil
	}
	m.mu.Lock()
	tracked, ok := m.sessions[sess.ID()]
	if ok {
		delete(m.sessions, sess.ID())
	}
	m.mu.Unlock()
	if !ok || tracked == nil {
		return nil
	}

	err := tracked.Close()
	m.metrics.RecordSessionClosed(tracked.ID())
	details := map[string]any{"session_id": tracked.ID()}
	if err != nil {
		details["error"] = err.Error()
	}
	m.logger.Info(logging.CategorySession, "session_closed", "", details)
	return err
}

// WithSession opens a session, runs fn, and closes the session on every exit
// path including a panic inside fn, which is re-raised after teardown.
func (m *Manager) WithSession(ctx context.Context, cfg SessionConfig, fn func(context.Context, BrowserSession) error) (err error) {
	sess, err := m.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(sess); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(ctx, sess)
}

// Active returns the number of sessions not yet closed.
func (m *Manager) Active() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown closes all sessions and releases the runtime.
func (m *Manager) Shutdown() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	sessions := make([]BrowserSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	var lastErr error
	for _, sess := range sessions {
		if err := m.Close(sess); err != nil {
			lastErr = err
		}
	}
	if m.runtime != nil {
		if err := m.runtime.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
