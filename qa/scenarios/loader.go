// Package scenarios replays YAML instruction sequences against a session
// manager and checks the resulting tables.
package scenarios

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fieldassign/core/model"
	"github.com/kilianp07/fieldassign/pkg/roster"
)

// Expect lists the checks applied after a step. Unset fields are skipped.
type Expect struct {
	Rule     string `yaml:"rule,omitempty"`
	Assigned *int   `yaml:"assigned,omitempty"`
	// Routes maps a staff ID to the exact sites it visits, in visit order.
	Routes map[string][]string `yaml:"routes,omitempty"`
	Scores map[string]int      `yaml:"scores,omitempty"`
	// Unchanged requires the table to equal the one before the step.
	Unchanged bool `yaml:"unchanged,omitempty"`
}

// Step is either an instruction, a preset or a reset.
type Step struct {
	Instruction string `yaml:"instruction,omitempty"`
	Preset      string `yaml:"preset,omitempty"`
	Reset       bool   `yaml:"reset,omitempty"`
	Expect      Expect `yaml:"expect"`
}

// Totals are checked once every step has run.
type Totals struct {
	Runs     int `yaml:"runs"`
	Messages int `yaml:"messages"`
}

type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Seed        uint64 `yaml:"seed"`
	// Roster is a roster file relative to the scenario. Empty uses the
	// built-in roster.
	Roster      string `yaml:"roster,omitempty"`
	NoviceStaff string `yaml:"novice_staff,omitempty"`
	// Keywords replace the engine defaults when set.
	NoviceKeywords  []string `yaml:"novice_keywords,omitempty"`
	TroubleKeywords []string `yaml:"trouble_keywords,omitempty"`
	Steps       []Step `yaml:"steps"`
	Expected    Totals `yaml:"expected"`

	dir string
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario name is required", path)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("%s: scenario has no steps", path)
	}
	for i, st := range sc.Steps {
		if err := st.validate(); err != nil {
			return nil, fmt.Errorf("%s: step %d: %w", path, i+1, err)
		}
	}
	sc.dir = filepath.Dir(path)
	return &sc, nil
}

func (s Step) validate() error {
	n := 0
	if s.Instruction != "" {
		n++
	}
	if s.Preset != "" {
		n++
	}
	if s.Reset {
		n++
	}
	if n != 1 {
		return fmt.Errorf("exactly one of instruction, preset or reset is required")
	}
	if s.Expect.Rule != "" {
		if _, ok := model.ParseInstructionKind(s.Expect.Rule); !ok {
			return fmt.Errorf("unknown rule %q", s.Expect.Rule)
		}
	}
	return nil
}

// LoadRoster returns the roster the scenario runs against.
func (sc *Scenario) LoadRoster() (model.Roster, error) {
	if sc.Roster == "" {
		return roster.Default(), nil
	}
	path := sc.Roster
	if !filepath.IsAbs(path) {
		path = filepath.Join(sc.dir, path)
	}
	return roster.Load(path)
}
