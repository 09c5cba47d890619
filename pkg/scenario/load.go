package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	herrors "github.com/ashparshp/hairone/pkg/errors"
)

type scenarioFile struct {
	Scenarios []*Scenario `yaml:"scenarios"`
}

// Parse decodes one YAML document stream. Each document is either a single
// scenario or a mapping with a scenarios: list.
func Parse(data []byte, source string) ([]*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var out []*Scenario
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, herrors.Wrap(err, herrors.ErrCodeScenarioInvalid, "parsing scenario YAML").
				WithContext("source", source)
		}
		found, err := decodeDocument(&node)
		if err != nil {
			return nil, herrors.Wrap(err, herrors.ErrCodeScenarioInvalid, "decoding scenario").
				WithContext("source", source)
		}
		for _, s := range found {
			s.Source = source
		}
		out = append(out, found...)
	}
	if len(out) == 0 {
		return nil, herrors.New(herrors.ErrCodeScenarioInvalid, "no scenarios found").WithContext("source", source)
	}
	return out, nil
}

func decodeDocument(node *yaml.Node) ([]*Scenario, error) {
	root := node
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping", root.Line)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "scenarios" {
			var file scenarioFile
			if err := root.Decode(&file); err != nil {
				return nil, err
			}
			return file.Scenarios, nil
		}
	}
	var single Scenario
	if err := root.Decode(&single); err != nil {
		return nil, err
	}
	return []*Scenario{&single}, nil
}

// LoadFile reads scenarios from one file.
func LoadFile(path string) ([]*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, herrors.Wrap(err, herrors.ErrCodeScenarioInvalid, "reading scenario file").
			WithContext("path", path)
	}
	return Parse(data, path)
}

// LoadPaths reads every scenario named by paths. A directory contributes
// every *.yaml and *.yml file below it; other arguments may be doublestar
// globs such as scenarios/**/*.yaml.
func LoadPaths(paths ...string) ([]*Scenario, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		switch {
		case err == nil && info.IsDir():
			matches, err := doublestar.FilepathGlob(filepath.Join(p, "**", "*.{yaml,yml}"))
			if err != nil {
				return nil, herrors.Wrap(err, herrors.ErrCodeScenarioInvalid, "listing scenarios").WithContext("path", p)
			}
			sort.Strings(matches)
			for _, m := range matches {
				add(m)
			}
		case err == nil:
			add(p)
		default:
			matches, globErr := doublestar.FilepathGlob(p)
			if globErr != nil || len(matches) == 0 {
				return nil, herrors.Wrap(err, herrors.ErrCodeScenarioInvalid, "scenario path not found").WithContext("path", p)
			}
			sort.Strings(matches)
			for _, m := range matches {
				add(m)
			}
		}
	}

	var out []*Scenario
	for _, f := range files {
		found, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}
