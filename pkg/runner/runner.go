// Package runner drives scenarios against browser sessions. Steps run
// strictly in order on one session; every wait is bounded, and its expiry is
// a soft failure that aborts the scenario unless the step is optional.
package runner

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/ashparshp/hairone/pkg/browser"
	"github.com/ashparshp/hairone/pkg/capture"
	"github.com/ashparshp/hairone/pkg/fixture"
	"github.com/ashparshp/hairone/pkg/logging"
	"github.com/ashparshp/hairone/pkg/scenario"
	"github.com/ashparshp/hairone/pkg/telemetry"
)

const (
	DefaultWaitTimeout   = 10 * time.Second
	DefaultActionTimeout = 10 * time.Second
	DefaultPollInterval  = 100 * time.Millisecond
)

// Runner executes scenarios. It is safe for concurrent use across sessions.
type Runner struct {
	logger  *logging.Logger
	metrics *browser.Metrics
	hub     *telemetry.Hub
	runID   string

	injector   *fixture.Injector
	identities map[string]fixture.Identity

	session       browser.SessionConfig
	artifactsRoot string
	fullPage      bool

	waitTimeout   time.Duration
	actionTimeout time.Duration
	pollInterval  time.Duration
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLogger sets the run logger. Each scenario logs through a scoped child.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics records navigations, actions and checkpoints.
func WithMetrics(m *browser.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithTelemetry publishes scenario and step events.
func WithTelemetry(hub *telemetry.Hub, runID string) Option {
	return func(r *Runner) {
		r.hub = hub
		r.runID = runID
	}
}

// WithIdentities makes named fixtures available to scenarios and seed steps.
func WithIdentities(ids map[string]fixture.Identity) Option {
	return func(r *Runner) { r.identities = ids }
}

// WithInjector replaces the default state injector.
func WithInjector(in *fixture.Injector) Option {
	return func(r *Runner) { r.injector = in }
}

// WithSessionDefaults sets the session config scenarios override.
func WithSessionDefaults(cfg browser.SessionConfig) Option {
	return func(r *Runner) { r.session = cfg }
}

// WithArtifacts sets the checkpoint root and the default full-page setting.
func WithArtifacts(root string, fullPage bool) Option {
	return func(r *Runner) {
		r.artifactsRoot = root
		r.fullPage = fullPage
	}
}

// WithTimeouts sets the default wait and action timeouts. Zero keeps the default.
func WithTimeouts(wait, action time.Duration) Option {
	return func(r *Runner) {
		if wait > 0 {
			r.waitTimeout = wait
		}
		if action > 0 {
			r.actionTimeout = action
		}
	}
}

// WithPollInterval sets how often waits re-query the page.
func WithPollInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		session:       browser.DefaultSessionConfig(),
		artifactsRoot: "verification",
		waitTimeout:   DefaultWaitTimeout,
		actionTimeout: DefaultActionTimeout,
		pollInterval:  DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.injector == nil {
		r.injector = fixture.NewInjector(
			fixture.WithLogger(r.logger),
			fixture.WithTelemetry(r.hub, r.runID),
		)
	}
	return r
}

// Identity resolves a named fixture.
func (r *Runner) Identity(name string) (fixture.Identity, bool) {
	id, ok := r.identities[name]
	return id, ok
}

// Run executes sc's steps on sess. Mocks and the initial fixture must already
// be in place; Execute does that. Run never closes sess.
func (r *Runner) Run(ctx context.Context, sess browser.BrowserSession, sc *scenario.Scenario) RunResult {
	res := RunResult{Scenario: sc.Name, SessionID: sess.ID(), Started: time.Now()}

	ctx, span := telemetry.StartSpan(ctx, "scenario "+sc.Name,
		telemetry.AttrRunID.String(r.runID),
		telemetry.AttrScenario.String(sc.Name),
		telemetry.AttrSessionID.String(sess.ID()),
	)
	defer span.End()

	log := r.logger.WithScenario(sc.Name, sess.ID())
	sess.OnConsole(func(m browser.ConsoleMessage) {
		log.Info(logging.CategoryPage, "console", m.Text, map[string]any{"level": m.Level})
	})

	x := &execution{
		runner: r,
		sess:   sess,
		sc:     sc,
		log:    log,
		capturer: capture.New(r.artifactsRoot, sc.Name,
			capture.WithFullPage(r.fullPage || sc.FullPage),
			capture.WithLogger(log),
			capture.WithMetrics(r.metrics),
		),
	}

	log.Info(logging.CategoryScenario, "started", sc.Name, map[string]any{"steps": len(sc.Steps)})
	r.publish(telemetry.EventScenarioStarted, sess.ID(), sc.Name, map[string]any{"steps": len(sc.Steps)})

	for i, step := range sc.Steps {
		if res.Aborted {
			res.Steps = append(res.Steps, StepResult{
				Index:    i + 1,
				Kind:     step.Kind,
				Label:    step.Label(),
				Optional: step.Optional,
				Outcome:  OutcomeSkipped,
			})
			r.publish(telemetry.EventStepSkipped, sess.ID(), sc.Name, map[string]any{"index": i + 1})
			continue
		}

		sr := x.step(ctx, i, step)
		switch {
		case sr.Outcome == OutcomeHardFail:
			res.Aborted = true
		case sr.Outcome == OutcomeSoftFail && step.Optional:
			if art, err := x.capturer.Checkpoint(ctx, sess, stepSlug(i, "failed")); err == nil {
				sr.Artifact = art.Path
			}
		case sr.Outcome == OutcomeSoftFail:
			res.Aborted = true
		}
		if res.Aborted {
			res.Err = sr.err
		}
		res.Steps = append(res.Steps, sr)
	}

	if res.Aborted && !browser.IsClosed(sess) {
		if art, err := x.capturer.Checkpoint(ctx, sess, "error"); err != nil {
			log.Warn(logging.CategoryArtifact, "error_checkpoint_failed", err.Error(), nil)
		} else if n := len(res.Steps); n > 0 {
			for i := n - 1; i >= 0; i-- {
				if res.Steps[i].Outcome != OutcomeSkipped {
					res.Steps[i].Artifact = art.Path
					break
				}
			}
		}
	}

	res.Artifacts = x.capturer.Artifacts()
	res.Elapsed = time.Since(res.Started)

	details := map[string]any{
		"elapsed_ms":    res.Elapsed.Milliseconds(),
		"soft_failures": res.SoftFailures(),
		"aborted":       res.Aborted,
		"artifacts":     len(res.Artifacts),
	}
	if res.Failed() {
		span.SetStatus(codes.Error, "scenario failed")
		telemetry.RecordError(ctx, res.Err)
		log.Error(logging.CategoryScenario, "failed", sc.Name, details)
		r.publish(telemetry.EventScenarioFailed, sess.ID(), sc.Name, details)
	} else {
		span.SetStatus(codes.Ok, "")
		log.Info(logging.CategoryScenario, "completed", sc.Name, details)
		r.publish(telemetry.EventScenarioCompleted, sess.ID(), sc.Name, details)
	}
	return res
}

func (r *Runner) publish(t telemetry.EventType, sessionID, scenarioName string, data map[string]any) {
	r.hub.Publish(telemetry.Event{
		Type:       t,
		RunID:      r.runID,
		SessionID:  sessionID,
		ScenarioID: scenarioName,
		Data:       data,
	})
}
