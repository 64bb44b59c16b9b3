package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/inkrouter/ink-router/internal/pkg/errors"
)

// corpusFile is the YAML shape of one pipeline corpus file.
type corpusFile struct {
	Name          string  `yaml:"name"`
	MinConfidence float64 `yaml:"min_confidence"`
	Triggers      []string `yaml:"triggers"`
	Entries       []Entry  `yaml:"entries"`
}

// Load builds a registry from the built-in corpus plus any corpus files in
// dir. A file whose pipeline name matches a built-in pipeline replaces it; a
// new name appends after the built-ins in file-name order. An empty dir loads
// the built-in corpus only.
//
// Any malformed file or duplicate pipeline is a ConfigError: the process must
// not start serving from a broken corpus.
func Load(dir string) (*Registry, error) {
	pipelines := DefaultPipelines()

	if dir != "" {
		loaded, err := loadDir(dir)
		if err != nil {
			return nil, err
		}
		pipelines = merge(pipelines, loaded)
	}

	return NewRegistry(pipelines)
}

func loadDir(dir string) ([]Pipeline, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("reading corpus dir %s", dir), err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			names = append(names, name)
		}
	}
	// Deterministic declaration order regardless of directory iteration order.
	sort.Strings(names)

	pipelines := make([]Pipeline, 0, len(names))
	declaredIn := make(map[string]string, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		p, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		if prev, ok := declaredIn[p.Name]; ok {
			return nil, errors.ConfigError(
				fmt.Sprintf("pipeline %s declared in both %s and %s", p.Name, prev, name), nil)
		}
		declaredIn[p.Name] = name
		pipelines = append(pipelines, p)
	}

	return pipelines, nil
}

func loadFile(path string) (Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, errors.ConfigError(fmt.Sprintf("reading corpus file %s", path), err)
	}

	var cf corpusFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return Pipeline{}, errors.ConfigError(fmt.Sprintf("parsing corpus file %s", path), err)
	}

	if cf.Name == "" {
		return Pipeline{}, errors.ConfigError(fmt.Sprintf("corpus file %s has no pipeline name", path), nil)
	}
	if cf.MinConfidence == 0 {
		cf.MinConfidence = 0.2
	}

	return Pipeline{
		Name:          cf.Name,
		MinConfidence: cf.MinConfidence,
		Triggers:      cf.Triggers,
		Entries:       cf.Entries,
	}, nil
}

// merge replaces built-in pipelines by name and appends new ones, preserving
// built-in declaration order first.
func merge(builtin, loaded []Pipeline) []Pipeline {
	byName := make(map[string]Pipeline, len(loaded))
	for _, p := range loaded {
		byName[p.Name] = p
	}

	out := make([]Pipeline, 0, len(builtin)+len(loaded))
	seen := make(map[string]bool, len(builtin))
	for _, p := range builtin {
		if override, ok := byName[p.Name]; ok {
			out = append(out, override)
		} else {
			out = append(out, p)
		}
		seen[p.Name] = true
	}
	for _, p := range loaded {
		if !seen[p.Name] {
			out = append(out, p)
		}
	}

	return out
}
