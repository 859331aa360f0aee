package model

import (
	"errors"
	"fmt"
)

// Roster bundles the reference data of a deployment: the staff, the job sites
// and the office all routes start from.
type Roster struct {
	Office Office  `json:"office" yaml:"office"`
	Staff  []Staff `json:"staff" yaml:"staff"`
	Sites  []Site  `json:"sites" yaml:"sites"`
}

// Validate checks the roster is internally consistent.
func (r Roster) Validate() error {
	var errs []error
	ids := make(map[StaffID]struct{}, len(r.Staff))
	for i, s := range r.Staff {
		if s.ID == Unassigned {
			errs = append(errs, fmt.Errorf("staff[%d]: id is required", i))
			continue
		}
		if _, dup := ids[s.ID]; dup {
			errs = append(errs, fmt.Errorf("staff[%d]: duplicate id %s", i, s.ID))
		}
		ids[s.ID] = struct{}{}
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("staff %s: name is required", s.ID))
		}
		if s.Skill == SkillUnknown {
			errs = append(errs, fmt.Errorf("staff %s: skill is required", s.ID))
		}
		if s.Interpersonal != LevelLow && s.Interpersonal != LevelHigh {
			errs = append(errs, fmt.Errorf("staff %s: interpersonal must be low or high, got %s", s.ID, s.Interpersonal))
		}
	}
	names := make(map[string]struct{}, len(r.Sites))
	for i, s := range r.Sites {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("sites[%d]: name is required", i))
			continue
		}
		if _, dup := names[s.Name]; dup {
			errs = append(errs, fmt.Errorf("sites[%d]: duplicate name %q", i, s.Name))
		}
		names[s.Name] = struct{}{}
		if s.Difficulty == LevelUnknown {
			errs = append(errs, fmt.Errorf("site %q: difficulty is required", s.Name))
		}
		if s.Stress == LevelUnknown {
			errs = append(errs, fmt.Errorf("site %q: stress is required", s.Name))
		}
		if s.Assigned() {
			if _, ok := ids[s.Assignment.Staff]; !ok {
				errs = append(errs, fmt.Errorf("site %q: assignee %s is not in the staff list", s.Name, s.Assignment.Staff))
			}
		}
	}
	return errors.Join(errs...)
}

// Site returns the site with the given name.
func (r Roster) Site(name string) (Site, bool) {
	for _, s := range r.Sites {
		if s.Name == name {
			return s, true
		}
	}
	return Site{}, false
}
