// Package roster loads the staff, sites and office reference data.
package roster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fieldassign/core/model"
)

// Default returns the built-in demo roster: three staff members, five sites
// around Yokohama and the office every route starts from.
func Default() model.Roster {
	return model.Roster{
		Office: model.Office{Name: "Office (start)", Location: model.Location{Lat: 35.4658, Lon: 139.6223}},
		Staff: []model.Staff{
			{ID: "A", Name: "Sato (A)", Skill: model.SkillVeteran, Interpersonal: model.LevelLow, Color: "red"},
			{ID: "B", Name: "Suzuki (B)", Skill: model.SkillMidLevel, Interpersonal: model.LevelHigh, Color: "blue"},
			{ID: "C", Name: "Tanaka (C)", Skill: model.SkillNovice, Interpersonal: model.LevelHigh, Color: "green"},
		},
		Sites: []model.Site{
			{Name: "Aoba Apartments", Location: model.Location{Lat: 35.55, Lon: 139.53}, Difficulty: model.LevelHigh, Stress: model.LevelLow},
			{Name: "Chuo Building", Location: model.Location{Lat: 35.45, Lon: 139.63}, Difficulty: model.LevelLow, Stress: model.LevelHigh},
			{Name: "Kohoku Warehouse", Location: model.Location{Lat: 35.52, Lon: 139.60}, Difficulty: model.LevelMedium, Stress: model.LevelLow},
			{Name: "Midori Ward Office", Location: model.Location{Lat: 35.51, Lon: 139.54}, Difficulty: model.LevelLow, Stress: model.LevelMedium},
			{Name: "Minami Mall", Location: model.Location{Lat: 35.42, Lon: 139.60}, Difficulty: model.LevelHigh, Stress: model.LevelHigh},
		},
	}
}

// Load reads a YAML roster file and validates it.
func Load(path string) (model.Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Roster{}, err
	}
	return Parse(data)
}

// Parse decodes and validates a YAML roster.
func Parse(data []byte) (model.Roster, error) {
	var r model.Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return model.Roster{}, fmt.Errorf("decode roster: %w", err)
	}
	if err := r.Validate(); err != nil {
		return model.Roster{}, fmt.Errorf("invalid roster: %w", err)
	}
	return r, nil
}

// LoadOrDefault loads path, or returns Default when path is empty.
func LoadOrDefault(path string) (model.Roster, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}
