package runner

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ashparshp/hairone/pkg/browser"
	herrors "github.com/ashparshp/hairone/pkg/errors"
	"github.com/ashparshp/hairone/pkg/fixture"
	"github.com/ashparshp/hairone/pkg/logging"
	"github.com/ashparshp/hairone/pkg/netmock"
	"github.com/ashparshp/hairone/pkg/scenario"
	"github.com/ashparshp/hairone/pkg/session"
	"github.com/ashparshp/hairone/pkg/telemetry"
)

// Execute runs sc end to end: open a session, attach mocks, seed the
// fixture, run the steps, and close the session exactly once whatever
// happens in between.
func (r *Runner) Execute(ctx context.Context, mgr *browser.Manager, sc *scenario.Scenario) RunResult {
	res := RunResult{Scenario: sc.Name, Started: time.Now()}
	fail := func(err error) RunResult {
		res.Err = err
		res.Steps = skippedSteps(sc)
		res.Elapsed = time.Since(res.Started)
		r.logger.WithScenario(sc.Name, res.SessionID).Error(logging.CategoryScenario, "setup_failed", err.Error(), map[string]any{
			"code":  string(herrors.GetCode(err)),
			"class": string(herrors.Class(err)),
		})
		r.publish(telemetry.EventScenarioFailed, res.SessionID, sc.Name, map[string]any{"error": err.Error()})
		return res
	}

	cfg, err := sc.Session.Apply(r.session)
	if err != nil {
		return fail(herrors.Wrap(err, herrors.ErrCodeScenarioInvalid, "invalid session overrides").WithContext("scenario", sc.Name))
	}
	cfg.SessionID = session.GenerateSessionID(sc.Name)

	var identity *fixture.Identity
	if sc.Identity != "" || sc.Fixture != nil {
		id, err := r.resolveIdentity(sc.Identity, sc.Fixture)
		if err != nil {
			return fail(err)
		}
		identity = &id
	}

	ran := false
	err = mgr.WithSession(ctx, cfg, func(ctx context.Context, sess browser.BrowserSession) error {
		res.SessionID = sess.ID()
		log := r.logger.WithScenario(sc.Name, sess.ID())

		reg, err := sc.Registry(netmock.WithLogger(log), netmock.WithMetrics(r.metrics))
		if err != nil {
			return err
		}
		defer func() { res.Requests = reg.Log() }()
		if err := reg.Attach(ctx, sess); err != nil {
			return err
		}
		if identity != nil {
			if err := r.injector.Seed(ctx, sess, *identity); err != nil {
				return err
			}
		}
		defer r.injector.Forget(sess)

		res = r.Run(ctx, sess, sc)
		ran = true
		return nil
	})
	switch {
	case err != nil && !ran:
		return fail(err)
	case err != nil:
		r.logger.WithScenario(sc.Name, res.SessionID).Warn(logging.CategorySession, "close_failed", err.Error(), nil)
	}
	return res
}

// RunAll executes scenarios on independent sessions, at most parallel at a
// time. Results keep the input order.
func (r *Runner) RunAll(ctx context.Context, mgr *browser.Manager, scenarios []*scenario.Scenario, parallel int) []RunResult {
	if parallel < 1 {
		parallel = 1
	}
	results := make([]RunResult, len(scenarios))

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			results[i] = r.Execute(ctx, mgr, sc)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
