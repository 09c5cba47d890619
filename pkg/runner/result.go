package runner

import (
	"time"

	"github.com/ashparshp/hairone/pkg/capture"
	herrors "github.com/ashparshp/hairone/pkg/errors"
	"github.com/ashparshp/hairone/pkg/netmock"
	"github.com/ashparshp/hairone/pkg/scenario"
)

// Outcome is the tagged result of one step.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeSoftFail Outcome = "soft-fail"
	OutcomeHardFail Outcome = "hard-fail"
	OutcomeSkipped  Outcome = "skipped"
)

// StepResult records what happened to one step.
type StepResult struct {
	Index    int               `json:"index"`
	Kind     scenario.StepKind `json:"kind"`
	Label    string            `json:"label"`
	Optional bool              `json:"optional,omitempty"`
	Outcome  Outcome           `json:"outcome"`
	Elapsed  time.Duration     `json:"elapsed"`
	Artifact string            `json:"artifact,omitempty"`
	// URL is the page URL when the step failed.
	URL   string            `json:"url,omitempty"`
	Code  herrors.ErrorCode `json:"code,omitempty"`
	Error string            `json:"error,omitempty"`

	err error
}

// Err returns the step's failure, if any.
func (s StepResult) Err() error { return s.err }

// RunResult is the outcome of one scenario.
type RunResult struct {
	Scenario  string             `json:"scenario"`
	SessionID string             `json:"session_id,omitempty"`
	Started   time.Time          `json:"started"`
	Elapsed   time.Duration      `json:"elapsed"`
	Steps     []StepResult       `json:"steps"`
	Artifacts []capture.Artifact `json:"artifacts,omitempty"`
	Requests  []netmock.Entry    `json:"requests,omitempty"`
	Aborted   bool               `json:"aborted,omitempty"`

	// Err is the failure that stopped the scenario: a launch or setup error
	// before any step ran, or the step failure that aborted it.
	Err error `json:"-"`
}

// HardFailed reports a hard step failure or a setup failure.
func (r RunResult) HardFailed() bool {
	for _, s := range r.Steps {
		if s.Outcome == OutcomeHardFail {
			return true
		}
	}
	return r.Err != nil && outcomeOf(r.Err) == OutcomeHardFail
}

// Failed reports whether the scenario did not pass: any hard failure, or a
// soft failure on a step that was not optional.
func (r RunResult) Failed() bool {
	if r.HardFailed() || r.Aborted {
		return true
	}
	for _, s := range r.Steps {
		if s.Outcome == OutcomeSoftFail && !s.Optional {
			return true
		}
	}
	return false
}

// SoftFailures counts soft-failed steps, optional ones included.
func (r RunResult) SoftFailures() int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == OutcomeSoftFail {
			n++
		}
	}
	return n
}

// Class is the failure class that decides the process exit status.
func (r RunResult) Class() herrors.FailureClass {
	if r.Err != nil && len(r.ran()) == 0 {
		return herrors.Class(r.Err)
	}
	if r.HardFailed() {
		return herrors.ClassHard
	}
	if r.Failed() || r.SoftFailures() > 0 {
		return herrors.ClassSoft
	}
	return herrors.ClassNone
}

func (r RunResult) ran() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Outcome != OutcomeSkipped {
			out = append(out, s)
		}
	}
	return out
}

func skippedSteps(sc *scenario.Scenario) []StepResult {
	out := make([]StepResult, len(sc.Steps))
	for i, step := range sc.Steps {
		out[i] = StepResult{
			Index:    i + 1,
			Kind:     step.Kind,
			Label:    step.Label(),
			Optional: step.Optional,
			Outcome:  OutcomeSkipped,
		}
	}
	return out
}
