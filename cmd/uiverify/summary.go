package main

import (
	"fmt"
	"time"

	"github.com/ashparshp/hairone/pkg/browser"
	"github.com/ashparshp/hairone/pkg/logging"
	"github.com/ashparshp/hairone/pkg/runner"
	"github.com/ashparshp/hairone/pkg/terminal"
)

// recentErrorLimit bounds the run log errors echoed after a failing run.
const recentErrorLimit = 5

type summaryOptions struct {
	strict  bool
	runLog  string
	metrics browser.MetricsSnapshot
}

func verdict(res runner.RunResult, strict bool) (string, terminal.Tone) {
	switch {
	case res.Err != nil && allSkipped(res):
		return "ERROR", terminal.ToneFail
	case res.Failed():
		return "FAIL", terminal.ToneFail
	case res.SoftFailures() > 0 && strict:
		return "FAIL", terminal.ToneFail
	case res.SoftFailures() > 0:
		return "SOFT", terminal.ToneWarn
	}
	return "PASS", terminal.ToneOK
}

func allSkipped(res runner.RunResult) bool {
	for _, s := range res.Steps {
		if s.Outcome != runner.OutcomeSkipped {
			return false
		}
	}
	return true
}

// countFailed counts the scenarios that decide a non-zero exit status.
func countFailed(results []runner.RunResult, strict bool) int {
	n := 0
	for _, res := range results {
		if label, _ := verdict(res, strict); label == "FAIL" || label == "ERROR" {
			n++
		}
	}
	return n
}

func renderSummary(w *terminal.Writer, results []runner.RunResult, opts summaryOptions) {
	w.Header("Results")
	var passed, soft, failed int
	var checkpoints int
	for _, res := range results {
		label, tone := verdict(res, opts.strict)
		switch label {
		case "PASS":
			passed++
		case "SOFT":
			soft++
		default:
			failed++
		}
		checkpoints += len(res.Artifacts)

		w.Println("%s %s %s", w.Badge(label, tone), w.Bold(res.Scenario),
			w.Paint(fmt.Sprintf("(%s)", res.Elapsed.Round(time.Millisecond)), terminal.ToneDim))
		if res.Err != nil && allSkipped(res) {
			w.Line(terminal.ToneFail, "       %v", res.Err)
		}
		for _, step := range res.Steps {
			if step.Outcome != runner.OutcomeSoftFail && step.Outcome != runner.OutcomeHardFail {
				continue
			}
			tone := terminal.ToneFail
			if step.Outcome == runner.OutcomeSoftFail {
				tone = terminal.ToneWarn
			}
			optional := ""
			if step.Optional {
				optional = " (optional)"
			}
			w.Line(tone, "%s", w.Fit(fmt.Sprintf("       step %d [%s] %s%s: %s", step.Index, step.Code, step.Label, optional, step.Error), 0))
			if step.URL != "" {
				w.Dim("         at %s", step.URL)
			}
			if step.Artifact != "" {
				w.Dim("         screenshot %s", step.Artifact)
			}
		}
	}

	w.Divider()
	totals := []string{w.Paint(fmt.Sprintf("%d passed", passed), terminal.ToneOK)}
	if soft > 0 {
		totals = append(totals, w.Paint(fmt.Sprintf("%d soft", soft), terminal.ToneWarn))
	}
	if failed > 0 {
		totals = append(totals, w.Paint(fmt.Sprintf("%d failed", failed), terminal.ToneFail))
	}
	line := ""
	for i, t := range totals {
		if i > 0 {
			line += ", "
		}
		line += t
	}
	w.Println("%s of %d scenarios", line, len(results))
	w.Dim("%d checkpoints, %d requests mocked of %d intercepted", checkpoints, opts.metrics.RequestsMocked, opts.metrics.RequestsIntercepted)
	if opts.runLog != "" {
		if failed > 0 {
			if recent := recentErrors(opts.runLog, recentErrorLimit); len(recent) > 0 {
				w.Println("%s", w.Paint("Recent errors", terminal.ToneFail))
				w.List(recent)
			}
		}
		w.Dim("run log: %s", opts.runLog)
	}
}

// recentErrors tails the run log for the last limit error events, formatted
// as "scenario: type: message".
func recentErrors(path string, limit int) []string {
	events, err := logging.ReadRecentEvents(path, 500)
	if err != nil {
		return nil
	}
	var out []string
	for _, ev := range events {
		if ev.Level != logging.LevelError {
			continue
		}
		line := ev.EventType
		if ev.Message != "" {
			line += ": " + ev.Message
		}
		if ev.Scenario != "" {
			line = ev.Scenario + ": " + line
		}
		out = append(out, line)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
