package browser

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	herrors "github.com/ashparshp/hairone/pkg/errors"
)

type stubSession struct {
	id       string
	cfg      SessionConfig
	done     chan struct{}
	closeErr error

	mu     sync.Mutex
	closes int
}

func newStubSession(cfg SessionConfig) *stubSession {
	return &stubSession{id: cfg.SessionID, cfg: cfg, done: make(chan struct{})}
}

func (s *stubSession) ID() string                                 { return s.id }
func (s *stubSession) Config() SessionConfig                      { return s.cfg }
func (s *stubSession) Navigate(context.Context, string) error     { return nil }
func (s *stubSession) Reload(context.Context) error               { return nil }
func (s *stubSession) URL(context.Context) (string, error)        { return "about:blank", nil }
func (s *stubSession) RemoveInitScript(context.Context, ScriptID) error {
	return nil
}
func (s *stubSession) AddInitScript(context.Context, string) (ScriptID, error) {
	return "1", nil
}
func (s *stubSession) SetInterceptor(context.Context, Interceptor) error { return nil }
func (s *stubSession) OnConsole(ConsoleHandler)                          {}
func (s *stubSession) Query(context.Context, Locator) ([]Element, error) {
	return nil, nil
}
func (s *stubSession) Click(context.Context, Element) error        { return nil }
func (s *stubSession) Fill(context.Context, Element, string) error { return nil }
func (s *stubSession) Screenshot(context.Context, bool) ([]byte, error) {
	return nil, nil
}
func (s *stubSession) LocalStorage(context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}
func (s *stubSession) Done() <-chan struct{} { return s.done }

func (s *stubSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	if s.closes == 1 {
		close(s.done)
	}
	return s.closeErr
}

func (s *stubSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type stubRuntime struct {
	launchErr error
	closeErr  error
	sessions  []*stubSession
	closed    bool
}

func (r *stubRuntime) NewSession(_ context.Context, cfg SessionConfig) (BrowserSession, error) {
	if r.launchErr != nil {
		return nil, r.launchErr
	}
	s := newStubSession(cfg)
	s.closeErr = r.closeErr
	r.sessions = append(r.sessions, s)
	return s, nil
}

func (r *stubRuntime) Close() error {
	r.closed = true
	return nil
}

func TestManagerOpenAppliesDefaults(t *testing.T) {
	rt := &stubRuntime{}
	metrics := NewMetrics()
	mgr := NewManager(rt, WithMetrics(metrics))

	sess, err := mgr.Open(context.Background(), SessionConfig{})
	require.NoError(t, err)

	cfg := sess.Config()
	assert.NotEmpty(t, cfg.SessionID)
	assert.Equal(t, 1280, cfg.Viewport.Width)
	assert.Equal(t, ColorSchemeLight, cfg.ColorScheme)
	assert.Equal(t, 1, mgr.Active())
	assert.Equal(t, int64(1), metrics.Snapshot().ActiveSessions)
}

func TestManagerOpenRejectsInvalidConfig(t *testing.T) {
	mgr := NewManager(&stubRuntime{})

	_, err := mgr.Open(context.Background(), SessionConfig{ColorScheme: "sepia"})
	require.Error(t, err)
	assert.True(t, herrors.IsCode(err, herrors.ErrCodeConfigInvalid))
}

func TestManagerOpenDuplicateID(t *testing.T) {
	mgr := NewManager(&stubRuntime{})

	_, err := mgr.Open(context.Background(), SessionConfig{SessionID: "admin"})
	require.NoError(t, err)
	_, err = mgr.Open(context.Background(), SessionConfig{SessionID: "admin"})
	assert.True(t, herrors.IsCode(err, herrors.ErrCodeInvalidInput))
}

func TestManagerOpenLaunchFailure(t *testing.T) {
	metrics := NewMetrics()
	mgr := NewManager(&stubRuntime{launchErr: errors.New("chrome not found")}, WithMetrics(metrics))

	_, err := mgr.Open(context.Background(), SessionConfig{})
	require.Error(t, err)
	assert.Equal(t, herrors.ClassEnvironment, herrors.Class(err))
	assert.Equal(t, int64(1), metrics.LaunchFailures.Load())
	assert.Zero(t, mgr.Active())
}

func TestManagerNilRuntime(t *testing.T) {
	var mgr *Manager
	_, err := mgr.Open(context.Background(), SessionConfig{})
	assert.True(t, herrors.IsCode(err, herrors.ErrCodeEngineLaunch))
	assert.NoError(t, mgr.Shutdown())
	assert.Zero(t, mgr.Active())
}

func TestManagerCloseOnlyOnce(t *testing.T) {
	rt := &stubRuntime{}
	mgr := NewManager(rt)

	sess, err := mgr.Open(context.Background(), SessionConfig{SessionID: "s1"})
	require.NoError(t, err)

	require.NoError(t, mgr.Close(sess))
	require.NoError(t, mgr.Close(sess))
	assert.Equal(t, 1, rt.sessions[0].closeCount())
	assert.True(t, IsClosed(sess))
}

func TestWithSessionClosesOnSuccessAndError(t *testing.T) {
	rt := &stubRuntime{}
	mgr := NewManager(rt)

	err := mgr.WithSession(context.Background(), SessionConfig{}, func(ctx context.Context, s BrowserSession) error {
		assert.False(t, IsClosed(s))
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("step failed")
	err = mgr.WithSession(context.Background(), SessionConfig{}, func(context.Context, BrowserSession) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.Len(t, rt.sessions, 2)
	for _, s := range rt.sessions {
		assert.Equal(t, 1, s.closeCount())
	}
	assert.Zero(t, mgr.Active())
}

func TestWithSessionClosesOnPanic(t *testing.T) {
	rt := &stubRuntime{}
	mgr := NewManager(rt)

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = mgr.WithSession(context.Background(), SessionConfig{}, func(context.Context, BrowserSession) error {
			panic("kaboom")
		})
	})
	require.Len(t, rt.sessions, 1)
	assert.Equal(t, 1, rt.sessions[0].closeCount())
	assert.Zero(t, mgr.Active())
}

func TestWithSessionReportsCloseError(t *testing.T) {
	closeErr := errors.New("target already gone")
	mgr := NewManager(&stubRuntime{closeErr: closeErr})

	err := mgr.WithSession(context.Background(), SessionConfig{}, func(context.Context, BrowserSession) error {
		return nil
	})
	assert.ErrorIs(t, err, closeErr)

	stepErr := errors.New("step failed")
	err = mgr.WithSession(context.Background(), SessionConfig{}, func(context.Context, BrowserSession) error {
		return stepErr
	})
	assert.ErrorIs(t, err, stepErr)
}

func TestManagerShutdown(t *testing.T) {
	rt := &stubRuntime{}
	mgr := NewManager(rt)
	for i := 0; i < 3; i++ {
		_, err := mgr.Open(context.Background(), SessionConfig{})
		require.NoError(t, err)
	}

	require.NoError(t, mgr.Shutdown())
	assert.True(t, rt.closed)
	assert.Zero(t, mgr.Active())
	for _, s := range rt.sessions {
		assert.Equal(t, 1, s.closeCount())
	}
}
