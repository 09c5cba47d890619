package scenario

import (
	"fmt"
	"strings"

	"github.com/ashparshp/hairone/pkg/browser"
	herrors "github.com/ashparshp/hairone/pkg/errors"
)

// IdentityLookup reports whether a named fixture exists.
type IdentityLookup func(name string) bool

// Normalize expands Target shorthands into Locators.
func (s *Scenario) Normalize() error {
	for i := range s.Steps {
		step := &s.Steps[i]
		if step.Locator == nil && step.Target != "" {
			loc, err := browser.ParseLocator(step.Target)
			if err != nil {
				return stepError(s, i, err.Error())
			}
			step.Locator = &loc
		}
	}
	return nil
}

// Validate checks the scenario is runnable. known resolves named identities;
// nil accepts any name.
func (s *Scenario) Validate(known IdentityLookup) error {
	if strings.TrimSpace(s.Name) == "" {
		return herrors.New(herrors.ErrCodeScenarioInvalid, "scenario needs a name").WithContext("source", s.Source)
	}
	if len(s.Steps) == 0 {
		return herrors.New(herrors.ErrCodeScenarioInvalid, "scenario has no steps").WithContext("scenario", s.Name)
	}
	if err := s.Normalize(); err != nil {
		return err
	}
	cfg, err := s.Session.Apply(browser.DefaultSessionConfig())
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return herrors.Wrap(err, herrors.ErrCodeScenarioInvalid, "invalid session overrides").WithContext("scenario", s.Name)
	}
	for _, m := range s.Mocks {
		if m.JSON != nil && m.Body != "" {
			return herrors.New(herrors.ErrCodeScenarioInvalid, "mock sets both json and body").
				WithContext("scenario", s.Name).WithContext("pattern", m.Pattern)
		}
	}
	if _, err := s.Registry(); err != nil {
		return err
	}
	if s.Fixture != nil {
		if err := s.Fixture.Validate(); err != nil {
			return err
		}
	}
	if s.Identity != "" && known != nil && !known(s.Identity) {
		return herrors.Newf(herrors.ErrCodeScenarioInvalid, "unknown identity %q", s.Identity).WithContext("scenario", s.Name)
	}
	for i, step := range s.Steps {
		if err := validateStep(s, i, step, known); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(s *Scenario, i int, step Step, known IdentityLookup) error {
	if step.Timeout < 0 || step.Duration < 0 {
		return stepError(s, i, "durations must not be negative")
	}
	if step.Kind.NeedsLocator() {
		if step.Locator == nil {
			return stepError(s, i, fmt.Sprintf("%s needs a locator or target", step.Kind))
		}
		if err := step.Locator.Validate(); err != nil {
			return stepError(s, i, err.Error())
		}
	}
	switch step.Kind {
	case StepNavigate, StepWaitURL:
		if strings.TrimSpace(step.URL) == "" {
			return stepError(s, i, fmt.Sprintf("%s needs a url", step.Kind))
		}
	case StepAssertCount:
		if step.Count < 0 {
			return stepError(s, i, "count must not be negative")
		}
	case StepScreenshot:
		if strings.TrimSpace(step.Checkpoint) == "" {
			return stepError(s, i, "screenshot needs a checkpoint name")
		}
	case StepSleep:
		if step.Duration <= 0 {
			return stepError(s, i, "sleep needs a positive duration")
		}
	case StepSeed:
		switch {
		case step.Fixture != nil:
			if err := step.Fixture.Validate(); err != nil {
				return err
			}
		case step.Identity == "":
			return stepError(s, i, "seed needs an identity or fixture")
		case known != nil && !known(step.Identity):
			return stepError(s, i, fmt.Sprintf("unknown identity %q", step.Identity))
		}
	case StepReload, StepWaitVisible, StepWaitHidden, StepFill, StepClick,
		StepAssertVisible, StepAssertNotVisible:
	default:
		return stepError(s, i, fmt.Sprintf("unknown step kind %q", step.Kind))
	}
	return nil
}

func stepError(s *Scenario, i int, msg string) error {
	return herrors.New(herrors.ErrCodeScenarioInvalid, msg).
		WithContext("scenario", s.Name).
		WithContext("step", i+1)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
