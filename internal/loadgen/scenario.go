package loadgen

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario tunes a simulation run: which service to hit, which seeded
// accounts to play with and how the journeys pace themselves.
type Scenario struct {
	ServiceURL     string   `yaml:"serviceUrl"`
	Accounts       []string `yaml:"accounts"`
	AmountMin      float64  `yaml:"amountMin"`
	AmountMax      float64  `yaml:"amountMax"`
	StepDelayMinMs int      `yaml:"stepDelayMinMs"`
	StepDelayMaxMs int      `yaml:"stepDelayMaxMs"`
}

// DefaultScenario targets a local service seeded with the built-in demo
// book.
func DefaultScenario() Scenario {
	return Scenario{
		ServiceURL:     "http://localhost:8080",
		Accounts:       []string{"01000001", "01000002", "01000003"},
		AmountMin:      5,
		AmountMax:      250,
		StepDelayMinMs: 100,
		StepDelayMaxMs: 300,
	}
}

// LoadScenario reads a scenario file. An empty path selects the defaults;
// fields missing from the file keep their default values.
func LoadScenario(path string) (Scenario, error) {
	sc := DefaultScenario()
	if path == "" {
		return sc, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario file: %w", err)
	}
	if len(sc.Accounts) == 0 {
		return Scenario{}, fmt.Errorf("scenario file %s lists no accounts", path)
	}
	if sc.AmountMax < sc.AmountMin {
		return Scenario{}, fmt.Errorf("scenario amountMax %v below amountMin %v", sc.AmountMax, sc.AmountMin)
	}
	return sc, nil
}
