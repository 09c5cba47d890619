package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/ashparshp/hairone/pkg/browser"
	"github.com/ashparshp/hairone/pkg/browser/adapters/cdp"
	"github.com/ashparshp/hairone/pkg/browser/adapters/fake"
	"github.com/ashparshp/hairone/pkg/config"
	"github.com/ashparshp/hairone/pkg/demoapp"
	"github.com/ashparshp/hairone/pkg/logging"
	"github.com/ashparshp/hairone/pkg/preflight"
	"github.com/ashparshp/hairone/pkg/runner"
	"github.com/ashparshp/hairone/pkg/session"
	"github.com/ashparshp/hairone/pkg/telemetry"
	"github.com/ashparshp/hairone/pkg/terminal"
)

func newRunCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [scenario-name | file | dir | glob]...",
		Short: "Run scenarios and capture checkpoints",
		Long: `Run executes the selected scenarios, each in its own browser session.
Arguments naming a built-in scenario select it; other arguments are YAML
files, directories (searched for *.yaml and *.yml) or globs. Without
arguments every built-in scenario runs.`,
		Example: `  uiverify run
  uiverify run admin-login access-control
  uiverify run --engine fake --tag finance
  uiverify run scenarios/ --parallel 4 --report report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, o, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&o.engine, "engine", "", "browser engine: cdp or fake")
	flags.StringVar(&o.baseURL, "base-url", "", "origin the app under test is served from")
	flags.StringVar(&o.apiBase, "api-base", "", "API base the fake engine's demo app calls")
	flags.StringVar(&o.artifacts, "artifacts", "", "checkpoint directory")
	flags.IntVarP(&o.parallel, "parallel", "p", 1, "scenarios to run at once")
	flags.StringSliceVarP(&o.tags, "tag", "t", nil, "only run scenarios with one of these tags")
	flags.BoolVar(&o.strict, "strict", false, "fail the run on soft failures of optional steps too")
	flags.BoolVar(&o.trace, "trace", false, "print OpenTelemetry spans to stderr")
	flags.BoolVar(&o.noPreflight, "no-preflight", false, "skip the base URL reachability check")
	flags.StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus textfile metrics here")
	flags.StringVar(&o.reportFile, "report", "", "write a JSON report of every result here")
	return cmd
}

func runScenarios(cmd *cobra.Command, o *options, args []string) error {
	ctx := cmd.Context()
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return err
	}
	ids, err := o.identities()
	if err != nil {
		return err
	}
	scenarios, err := selectScenarios(args, o.tags)
	if err != nil {
		return err
	}
	if errs := validateAll(scenarios, ids); len(errs) > 0 {
		out := o.writer()
		for _, e := range errs {
			out.Error("%v", e)
		}
		return reported(fmt.Errorf("%d invalid scenarios", len(errs)), exitInvalid)
	}

	runID := session.NewRunID()
	logger, err := logging.NewLogger(cfg.LogDir(), runID)
	if err != nil {
		return withExitCode(err, exitEnvironment)
	}
	defer logger.Close()
	logger.SetMinLevel(logging.Level(strings.ToLower(cfg.Logging.Level)))
	if cfg.Logging.Console && !o.quiet {
		logger.SetConsole(o.stderr)
	}

	hub := telemetry.NewHub()
	defer hub.Close()
	metrics := browser.NewMetrics()
	metrics.EnableTelemetry(hub, runID)

	if o.trace {
		tp, err := telemetry.NewTracerProvider("uiverify", o.stderr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return withExitCode(err, exitEnvironment)
	}
	mgr := browser.NewManager(rt, browser.WithMetrics(metrics), browser.WithLogger(logger))
	defer func() {
		if err := mgr.Shutdown(); err != nil {
			logger.Warn(logging.CategoryRun, "shutdown_failed", err.Error(), nil)
		}
	}()

	if cfg.Browser.Engine == "cdp" && cfg.Preflight.Enabled {
		checker := preflight.New(
			preflight.WithRetries(cfg.Preflight.Retries),
			preflight.WithTimeout(cfg.Preflight.Timeout),
			preflight.WithLogger(logger),
		)
		if err := checker.Check(ctx, cfg.BaseURL); err != nil {
			logger.Error(logging.CategoryRun, "preflight_failed", err.Error(), map[string]any{"base_url": cfg.BaseURL})
			return withExitCode(err, exitEnvironment)
		}
	}

	r := runner.New(
		runner.WithLogger(logger),
		runner.WithMetrics(metrics),
		runner.WithTelemetry(hub, runID),
		runner.WithIdentities(ids),
		runner.WithSessionDefaults(cfg.SessionConfig()),
		runner.WithArtifacts(cfg.ArtifactsDir(), cfg.Artifacts.FullPage),
		runner.WithTimeouts(cfg.Timeouts.Wait, cfg.Timeouts.Action),
	)

	logger.Info(logging.CategoryRun, "run_started", fmt.Sprintf("running %d scenarios", len(scenarios)), map[string]any{
		"engine":   cfg.Browser.Engine,
		"base_url": cfg.BaseURL,
		"parallel": cfg.Run.Parallel,
	})
	hub.Publish(telemetry.Event{Type: telemetry.EventRunStarted, Timestamp: time.Now(), RunID: runID})

	stopProgress := func() {}
	if !o.quiet && terminal.IsTerminal(o.stderr) {
		stopProgress = showProgress(hub, terminal.NewProgress(o.stderr, len(scenarios)))
	}
	results := r.RunAll(ctx, mgr, scenarios, cfg.Run.Parallel)
	stopProgress()

	code := exitCodeForResults(results, cfg.Run.Strict)
	hub.Publish(telemetry.Event{Type: telemetry.EventRunCompleted, Timestamp: time.Now(), RunID: runID,
		Data: map[string]any{"exit_code": code}})

	if o.metricsFile != "" {
		if err := metrics.WriteTextfile(o.metricsFile); err != nil {
			logger.Warn(logging.CategoryRun, "metrics_write_failed", err.Error(), map[string]any{"path": o.metricsFile})
		}
	}
	if o.reportFile != "" {
		if err := writeReport(o.reportFile, runID, results); err != nil {
			logger.Warn(logging.CategoryRun, "report_write_failed", err.Error(), map[string]any{"path": o.reportFile})
		}
	}

	renderSummary(o.writer(), results, summaryOptions{
		strict:  cfg.Run.Strict,
		runLog:  logger.RunLogPath(),
		metrics: metrics.Snapshot(),
	})

	if code != exitOK {
		return reported(fmt.Errorf("%d of %d scenarios did not pass", countFailed(results, cfg.Run.Strict), len(results)), code)
	}
	return nil
}

// newRuntime builds the browser engine named by the config.
func newRuntime(cfg *config.Config) (browser.Runtime, error) {
	if cfg.Browser.Engine == "fake" {
		return fake.NewRuntime(demoapp.New(cfg.BaseURL, cfg.APIBase)), nil
	}
	flags := make(map[string]any, len(cfg.Browser.Flags))
	for name, value := range cfg.Browser.Flags {
		if value == "" {
			flags[name] = true
			continue
		}
		flags[name] = value
	}
	rt, err := cdp.NewRuntime(cdp.Config{
		RemoteURL:     cfg.Browser.CDPURL,
		ExecPath:      cfg.Browser.ExecPath,
		Headless:      cfg.Browser.Headless,
		NoSandbox:     cfg.Browser.NoSandbox,
		ExtraFlags:    flags,
		LaunchTimeout: cfg.Browser.LaunchTimeout,
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// showProgress feeds scenario events into a progress line and returns a
// function that stops both.
func showProgress(hub *telemetry.Hub, progress *terminal.Progress) func() {
	events, unsubscribe := hub.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			switch ev.Type {
			case telemetry.EventScenarioStarted:
				progress.Begin(ev.ScenarioID)
			case telemetry.EventScenarioCompleted:
				progress.Finish(ev.ScenarioID, false)
			case telemetry.EventScenarioFailed:
				progress.Finish(ev.ScenarioID, true)
			}
		}
	}()
	progress.Start()
	return func() {
		unsubscribe()
		<-done
		progress.Stop()
	}
}

type report struct {
	RunID     string             `json:"run_id"`
	Generated time.Time          `json:"generated"`
	Results   []runner.RunResult `json:"results"`
	Errors    map[string]string  `json:"errors,omitempty"`
}

func writeReport(path, runID string, results []runner.RunResult) error {
	rep := report{RunID: runID, Generated: time.Now().UTC(), Results: results}
	for _, res := range results {
		if res.Err != nil {
			if rep.Errors == nil {
				rep.Errors = make(map[string]string)
			}
			rep.Errors[res.Scenario] = res.Err.Error()
		}
	}
	data, err := sonic.ConfigStd.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
