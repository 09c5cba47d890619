package fixture

import (
	"context"
	"slices"
	"sync"

	"github.com/ashparshp/hairone/pkg/browser"
	herrors "github.com/ashparshp/hairone/pkg/errors"
	"github.com/ashparshp/hairone/pkg/logging"
	"github.com/ashparshp/hairone/pkg/telemetry"
)

const clearScript = "(() => { try { localStorage.clear(); } catch (e) {} })();"

// Injector schedules identity scripts on sessions. Each session carries at
// most one: seeding again replaces the previous identity.
type Injector struct {
	mu      sync.Mutex
	scripts map[string]browser.ScriptID
	keys    map[string][]string

	logger *logging.Logger
	hub    *telemetry.Hub
	runID  string
}

// InjectorOption customizes an Injector.
type InjectorOption func(*Injector)

// WithLogger logs every seed.
func WithLogger(l *logging.Logger) InjectorOption {
	return func(in *Injector) { in.logger = l }
}

// WithTelemetry publishes fixture.seeded events.
func WithTelemetry(hub *telemetry.Hub, runID string) InjectorOption {
	return func(in *Injector) {
		in.hub = hub
		in.runID = runID
	}
}

// NewInjector creates an Injector.
func NewInjector(opts ...InjectorOption) *Injector {
	in := &Injector{
		scripts: make(map[string]browser.ScriptID),
		keys:    make(map[string][]string),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Seed schedules identity to be written before application code on the next
// navigation or reload. The current document is not touched. Keys the
// previously seeded identity wrote and this one does not are removed on that
// load.
func (in *Injector) Seed(ctx context.Context, sess browser.BrowserSession, identity Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}
	entries, err := identity.Entries()
	if err != nil {
		return err
	}
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	err = in.replace(ctx, sess, keys, func(prev []string) (string, error) {
		return identity.scriptRemoving(staleKeys(prev, keys))
	})
	if err != nil {
		return err
	}

	in.logger.Info(logging.CategoryFixture, "seeded", "", map[string]any{
		"identity": identity.Name,
		"role":     identity.User.Role,
		"user_id":  identity.User.ID,
	})
	in.hub.Publish(telemetry.Event{
		Type:      telemetry.EventFixtureSeeded,
		RunID:     in.runID,
		SessionID: sess.ID(),
		Data:      map[string]any{"identity": identity.Name, "role": identity.User.Role},
	})
	return nil
}

// SeedAndReload seeds identity and reloads so the application boots as that
// user, as when a signed-in user returns to the app.
func (in *Injector) SeedAndReload(ctx context.Context, sess browser.BrowserSession, identity Identity) error {
	if err := in.Seed(ctx, sess, identity); err != nil {
		return err
	}
	return sess.Reload(ctx)
}

// Clear replaces any seeded identity with a script that empties storage on
// the next load.
func (in *Injector) Clear(ctx context.Context, sess browser.BrowserSession) error {
	err := in.replace(ctx, sess, nil, func([]string) (string, error) { return clearScript, nil })
	if err != nil {
		return err
	}
	in.logger.Info(logging.CategoryFixture, "cleared", "", nil)
	return nil
}

// replace swaps the session's identity script for the one render builds
// from the keys the previous identity wrote, and records keys as written.
func (in *Injector) replace(ctx context.Context, sess browser.BrowserSession, keys []string, render func(prev []string) (string, error)) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	script, err := render(in.keys[sess.ID()])
	if err != nil {
		return err
	}
	if prev, ok := in.scripts[sess.ID()]; ok {
		if err := sess.RemoveInitScript(ctx, prev); err != nil {
			return wrapSessionErr(sess, err, "removing previous identity script")
		}
		delete(in.scripts, sess.ID())
	}
	id, err := sess.AddInitScript(ctx, script)
	if err != nil {
		return wrapSessionErr(sess, err, "scheduling identity script")
	}
	in.scripts[sess.ID()] = id
	in.keys[sess.ID()] = keys
	return nil
}

func staleKeys(prev, next []string) []string {
	var stale []string
	for _, k := range prev {
		if !slices.Contains(next, k) {
			stale = append(stale, k)
		}
	}
	return stale
}

// Forget drops bookkeeping for a closed session.
func (in *Injector) Forget(sess browser.BrowserSession) {
	in.mu.Lock()
	delete(in.scripts, sess.ID())
	delete(in.keys, sess.ID())
	in.mu.Unlock()
}

func wrapSessionErr(sess browser.BrowserSession, err error, msg string) error {
	if browser.IsSessionClosed(err) {
		return err
	}
	return herrors.Wrap(err, herrors.ErrCodeInternal, msg).WithContext("session_id", sess.ID())
}
