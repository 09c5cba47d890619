package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/ashparshp/hairone/pkg/browser"
	"github.com/ashparshp/hairone/pkg/capture"
	herrors "github.com/ashparshp/hairone/pkg/errors"
	"github.com/ashparshp/hairone/pkg/fixture"
	"github.com/ashparshp/hairone/pkg/logging"
	"github.com/ashparshp/hairone/pkg/scenario"
	"github.com/ashparshp/hairone/pkg/telemetry"
)

// execution is the state of one scenario run on one session.
type execution struct {
	runner   *Runner
	sess     browser.BrowserSession
	sc       *scenario.Scenario
	log      *logging.Logger
	capturer *capture.Capturer
}

func stepSlug(i int, suffix string) string {
	return fmt.Sprintf("step%02d-%s", i+1, suffix)
}

func (x *execution) step(ctx context.Context, i int, step scenario.Step) StepResult {
	r := x.runner
	ctx, span := telemetry.StartSpan(ctx, "step "+string(step.Kind),
		telemetry.AttrStepIndex.Int(i+1),
		telemetry.AttrStepKind.String(string(step.Kind)),
		telemetry.AttrStepOptional.Bool(step.Optional),
	)
	defer span.End()

	sr := StepResult{Index: i + 1, Kind: step.Kind, Label: step.Label(), Optional: step.Optional}
	r.publish(telemetry.EventStepStarted, x.sess.ID(), x.sc.Name, map[string]any{"index": sr.Index, "label": sr.Label})

	start := time.Now()
	art, err := x.do(ctx, step)
	if err == nil && step.Checkpoint != "" && step.Kind != scenario.StepScreenshot {
		art, err = x.capturer.CheckpointWith(ctx, x.sess, step.Checkpoint, x.fullPage(step))
	}
	sr.Elapsed = time.Since(start)
	sr.Artifact = art.Path

	details := map[string]any{
		"index":      sr.Index,
		"label":      sr.Label,
		"elapsed_ms": sr.Elapsed.Milliseconds(),
	}
	if err == nil {
		sr.Outcome = OutcomeOK
		span.SetAttributes(telemetry.AttrStepOutcome.String(string(sr.Outcome)))
		x.log.Info(logging.CategoryStep, "passed", sr.Label, details)
		r.publish(telemetry.EventStepCompleted, x.sess.ID(), x.sc.Name, details)
		return sr
	}

	sr.err = err
	sr.Outcome = outcomeOf(err)
	sr.Code = herrors.GetCode(err)
	sr.Error = err.Error()
	sr.URL = x.currentURL(ctx)

	span.SetAttributes(telemetry.AttrStepOutcome.String(string(sr.Outcome)))
	span.RecordError(err)
	span.SetStatus(codes.Error, string(sr.Code))

	details["outcome"] = string(sr.Outcome)
	details["code"] = string(sr.Code)
	details["error"] = sr.Error
	details["url"] = sr.URL
	details["optional"] = step.Optional
	if sr.Outcome == OutcomeSoftFail && step.Optional {
		x.log.Warn(logging.CategoryStep, "optional_failed", sr.Label, details)
	} else {
		x.log.Error(logging.CategoryStep, "failed", sr.Label, details)
	}
	r.publish(telemetry.EventStepFailed, x.sess.ID(), x.sc.Name, details)
	return sr
}

// outcomeOf maps a step error to its outcome. Locator, assertion, mock and
// artifact failures are soft; everything else ends the scenario.
func outcomeOf(err error) Outcome {
	switch herrors.Class(err) {
	case herrors.ClassSoft, herrors.ClassMock:
		return OutcomeSoftFail
	}
	return OutcomeHardFail
}

func (x *execution) currentURL(ctx context.Context) string {
	if browser.IsClosed(x.sess) {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	u, err := x.sess.URL(ctx)
	if err != nil {
		return ""
	}
	return u
}

func (x *execution) fullPage(step scenario.Step) bool {
	if step.FullPage != nil {
		return *step.FullPage
	}
	return x.runner.fullPage || x.sc.FullPage
}

func (x *execution) waitTimeout(step scenario.Step) time.Duration {
	if step.Timeout > 0 {
		return step.Timeout
	}
	return x.runner.waitTimeout
}

func (x *execution) actionTimeout(step scenario.Step) time.Duration {
	if step.Timeout > 0 {
		return step.Timeout
	}
	return x.runner.actionTimeout
}

func (x *execution) do(ctx context.Context, step scenario.Step) (capture.Artifact, error) {
	switch step.Kind {
	case scenario.StepNavigate:
		return capture.Artifact{}, x.navigate(ctx, step, x.sess.Config().ResolveURL(step.URL))
	case scenario.StepReload:
		return capture.Artifact{}, x.navigate(ctx, step, "")
	case scenario.StepWaitVisible:
		_, err := x.waitVisible(ctx, *step.Locator, x.waitTimeout(step), herrors.ErrCodeLocatorTimeout)
		return capture.Artifact{}, err
	case scenario.StepAssertVisible:
		_, err := x.waitVisible(ctx, *step.Locator, x.waitTimeout(step), herrors.ErrCodeAssertionFailed)
		return capture.Artifact{}, err
	case scenario.StepWaitHidden:
		return capture.Artifact{}, x.waitHidden(ctx, *step.Locator, x.waitTimeout(step))
	case scenario.StepAssertNotVisible:
		return capture.Artifact{}, x.holdAbsent(ctx, *step.Locator, x.waitTimeout(step))
	case scenario.StepAssertCount:
		return capture.Artifact{}, x.waitCount(ctx, *step.Locator, step.Count, step.AtLeast, x.waitTimeout(step))
	case scenario.StepWaitURL:
		return capture.Artifact{}, x.waitURL(ctx, step.URL, x.waitTimeout(step))
	case scenario.StepClick:
		return capture.Artifact{}, x.act(ctx, "click", *step.Locator, x.actionTimeout(step), func(ctx context.Context, el browser.Element) error {
			return x.sess.Click(ctx, el)
		})
	case scenario.StepFill:
		return capture.Artifact{}, x.act(ctx, "fill", *step.Locator, x.actionTimeout(step), func(ctx context.Context, el browser.Element) error {
			return x.sess.Fill(ctx, el, step.Value)
		})
	case scenario.StepScreenshot:
		return x.screenshot(ctx, step)
	case scenario.StepSleep:
		return capture.Artifact{}, x.sleep(ctx, step.Duration)
	case scenario.StepSeed:
		return capture.Artifact{}, x.seed(ctx, step)
	}
	return capture.Artifact{}, herrors.Newf(herrors.ErrCodeScenarioInvalid, "unknown step kind %q", step.Kind)
}

// navigate loads target, or reloads when target is empty. A step timeout
// tightens the session's navigation timeout.
func (x *execution) navigate(ctx context.Context, step scenario.Step, target string) error {
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}
	start := time.Now()
	var err error
	if target == "" {
		err = x.sess.Reload(ctx)
	} else {
		err = x.sess.Navigate(ctx, target)
	}
	if err != nil {
		return err
	}
	if target == "" {
		target = x.currentURL(ctx)
	}
	x.runner.metrics.RecordNavigate(x.sess.ID(), target, time.Since(start))
	return nil
}

func (x *execution) screenshot(ctx context.Context, step scenario.Step) (capture.Artifact, error) {
	name := step.Checkpoint
	if strings.HasSuffix(strings.ToLower(name), ".png") {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(x.runner.artifactsRoot, path)
		}
		return x.capturer.Capture(ctx, x.sess, path, x.fullPage(step))
	}
	return x.capturer.CheckpointWith(ctx, x.sess, name, x.fullPage(step))
}

func (x *execution) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-x.sess.Done():
		return browser.SessionClosedError(x.sess.ID(), nil)
	case <-ctx.Done():
		return cancelled(ctx)
	}
}

func (x *execution) seed(ctx context.Context, step scenario.Step) error {
	identity, err := x.runner.resolveIdentity(step.Identity, step.Fixture)
	if err != nil {
		return err
	}
	if step.Reload {
		return x.runner.injector.SeedAndReload(ctx, x.sess, identity)
	}
	return x.runner.injector.Seed(ctx, x.sess, identity)
}

func (r *Runner) resolveIdentity(name string, inline *fixture.Identity) (fixture.Identity, error) {
	if inline != nil {
		id := *inline
		if id.Name == "" {
			id.Name = name
		}
		return id, nil
	}
	id, ok := r.identities[name]
	if !ok {
		return fixture.Identity{}, herrors.Newf(herrors.ErrCodeFixtureInvalid, "unknown identity %q", name)
	}
	if id.Name == "" {
		id.Name = name
	}
	return id, nil
}

func cancelled(ctx context.Context) error {
	return herrors.Wrap(ctx.Err(), herrors.ErrCodeInternal, "scenario cancelled")
}

var errWaitExpired = errors.New("wait expired")
