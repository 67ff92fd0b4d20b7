package suite

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest selects which registered suites a run executes. An empty include
// list means all suites; exclude is applied after include.
type Manifest struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// LoadManifest reads a manifest from a YAML file. An empty path returns the
// zero manifest, which selects everything.
func LoadManifest(path string) (Manifest, error) {
	if path == "" {
		return Manifest{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return m, nil
}

// Filter returns the suites selected by the manifest, preserving order.
func (m Manifest) Filter(suites []Suite) []Suite {
	included := make(map[string]bool, len(m.Include))
	for _, name := range m.Include {
		included[name] = true
	}
	excluded := make(map[string]bool, len(m.Exclude))
	for _, name := range m.Exclude {
		excluded[name] = true
	}

	var selected []Suite
	for _, s := range suites {
		if len(m.Include) > 0 && !included[s.Name] {
			continue
		}
		if excluded[s.Name] {
			continue
		}
		selected = append(selected, s)
	}
	return selected
}
