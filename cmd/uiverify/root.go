package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashparshp/hairone/pkg/catalog"
	"github.com/ashparshp/hairone/pkg/config"
	herrors "github.com/ashparshp/hairone/pkg/errors"
	"github.com/ashparshp/hairone/pkg/fixture"
	"github.com/ashparshp/hairone/pkg/scenario"
	"github.com/ashparshp/hairone/pkg/terminal"
)

// options holds flag values shared by every subcommand.
type options struct {
	stdout io.Writer
	stderr io.Writer

	configPath     string
	identitiesFile string
	quiet          bool
	noColor        bool

	engine      string
	baseURL     string
	apiBase     string
	artifacts   string
	metricsFile string
	reportFile  string
	tags        []string
	parallel    int
	strict      bool
	trace       bool
	noPreflight bool
}

func newRootCmd(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "uiverify",
		Short: "Scripted browser verification for the HairOne web client",
		Long: `uiverify runs verification scenarios in isolated browser sessions.
Each scenario mocks the API, seeds a signed-in identity, drives the page and
captures screenshot checkpoints. Exit status is 0 when everything passed, 1 on
a failed scenario, 2 on invalid configuration or scenarios, and 3 when the
browser or the app under test is unavailable.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "config file (default: ~/.uiverify/config.yaml then ./.uiverify/config.yaml)")
	flags.StringVar(&o.identitiesFile, "identities", "", "YAML file of extra named identities")
	flags.BoolVarP(&o.quiet, "quiet", "q", false, "suppress console logging and progress")
	flags.BoolVar(&o.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newRunCmd(o), newListCmd(o), newValidateCmd(o), newConfigCmd(o))
	return root
}

func (o *options) writer() *terminal.Writer {
	return terminal.NewWithOutput(o.stdout, !o.noColor && terminal.IsTerminal(o.stdout))
}

// loadConfig layers files, environment and command-line flags.
func (o *options) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, withExitCode(err, exitInvalid)
	}

	changed := cmd.Flags().Changed
	if changed("engine") {
		cfg.Browser.Engine = o.engine
	}
	if changed("base-url") {
		cfg.BaseURL = o.baseURL
	}
	if changed("api-base") {
		cfg.APIBase = o.apiBase
	}
	if changed("artifacts") {
		cfg.Artifacts.Dir = o.artifacts
	}
	if changed("parallel") {
		cfg.Run.Parallel = o.parallel
	}
	if changed("strict") {
		cfg.Run.Strict = o.strict
	}
	if o.noPreflight {
		cfg.Preflight.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, withExitCode(err, exitInvalid)
	}
	return cfg, nil
}

// identities returns the built-in identities plus any from --identities.
func (o *options) identities() (map[string]fixture.Identity, error) {
	ids := catalog.Identities()
	if o.identitiesFile == "" {
		return ids, nil
	}
	extra, err := fixture.LoadFile(o.identitiesFile)
	if err != nil {
		return nil, withExitCode(err, exitInvalid)
	}
	for name, id := range extra {
		ids[name] = id
	}
	return ids, nil
}

// selectScenarios resolves arguments to scenarios. An argument naming a
// built-in scenario selects it; anything else is a file, directory or glob.
// No arguments selects every built-in. Tags keep scenarios carrying any of
// them.
func selectScenarios(args, tags []string) ([]*scenario.Scenario, error) {
	builtins := catalog.Scenarios()
	var selected []*scenario.Scenario
	if len(args) == 0 {
		selected = builtins
	} else {
		byName := make(map[string]*scenario.Scenario, len(builtins))
		for _, sc := range builtins {
			byName[sc.Name] = sc
		}
		var paths []string
		for _, arg := range args {
			if sc, ok := byName[arg]; ok {
				selected = append(selected, sc)
				continue
			}
			paths = append(paths, arg)
		}
		if len(paths) > 0 {
			loaded, err := scenario.LoadPaths(paths...)
			if err != nil {
				return nil, withExitCode(err, exitInvalid)
			}
			selected = append(selected, loaded...)
		}
	}

	if len(tags) > 0 {
		filtered := selected[:0]
		for _, sc := range selected {
			if hasAnyTag(sc, tags) {
				filtered = append(filtered, sc)
			}
		}
		selected = filtered
	}
	if len(selected) == 0 {
		return nil, withExitCode(herrors.New(herrors.ErrCodeScenarioInvalid, "no scenarios selected"), exitInvalid)
	}
	return selected, nil
}

func hasAnyTag(sc *scenario.Scenario, tags []string) bool {
	for _, want := range tags {
		for _, have := range sc.Tags {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

// validateAll checks every scenario against the known identities and
// reports every problem, not just the first.
func validateAll(scenarios []*scenario.Scenario, ids map[string]fixture.Identity) []error {
	known := func(name string) bool {
		_, ok := ids[name]
		return ok
	}
	var errs []error
	seen := make(map[string]string, len(scenarios))
	for _, sc := range scenarios {
		if err := sc.Validate(known); err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, dup := seen[sc.Name]; dup {
			errs = append(errs, herrors.New(herrors.ErrCodeScenarioInvalid, "duplicate scenario name").
				WithContext("scenario", sc.Name).
				WithContext("first", prev).
				WithContext("second", sourceOf(sc)))
			continue
		}
		seen[sc.Name] = sourceOf(sc)
	}
	return errs
}

func sourceOf(sc *scenario.Scenario) string {
	if sc.Source == "" {
		return "built-in"
	}
	return sc.Source
}

func printRemediation(w io.Writer, err error) {
	var structured *herrors.Error
	if !errors.As(err, &structured) {
		return
	}
	if structured.UserMessage != "" {
		fmt.Fprintf(w, "  %s\n", structured.UserMessage)
	}
	for _, tip := range structured.Remediation {
		fmt.Fprintf(w, "  - %s\n", tip)
	}
}
