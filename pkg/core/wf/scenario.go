package wf

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one entry of a verification scenario grid: a simulation
// configuration plus the mutation overlay to apply to its output.
type Scenario struct {
	Name         string  `yaml:"name"`
	Config       Config  `yaml:",inline"`
	Sites        int     `yaml:"sites"`
	MutationRate float64 `yaml:"mutation_rate"`
}

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadScenarios reads a YAML scenario grid using strict parsing: unknown
// fields are rejected rather than silently dropped.
func LoadScenarios(path string) ([]Scenario, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var sf scenarioFile
	if err := decoder.Decode(&sf); err != nil {
		return nil, fmt.Errorf("YAML syntax error in scenario file: %w", err)
	}
	if len(sf.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario file %s defines no scenarios", path)
	}
	return sf.Scenarios, nil
}
