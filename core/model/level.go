package model

import (
	"fmt"
	"strings"
)

// Level is a three step categorical rating used for site difficulty, site
// stress and staff interpersonal rating.
type Level int

const (
	LevelUnknown Level = iota
	LevelLow
	LevelMedium
	LevelHigh
)

// String returns a human-readable representation of the level.
func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseLevel converts a textual level. Matching ignores case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return LevelLow, nil
	case "medium", "mid":
		return LevelMedium, nil
	case "high":
		return LevelHigh, nil
	default:
		return LevelUnknown, fmt.Errorf("unknown level %q", s)
	}
}

func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// SkillLevel describes the technical seniority of a staff member.
type SkillLevel int

const (
	SkillUnknown SkillLevel = iota
	SkillNovice
	SkillMidLevel
	SkillVeteran
)

// String returns a human-readable representation of the skill level.
func (s SkillLevel) String() string {
	switch s {
	case SkillNovice:
		return "novice"
	case SkillMidLevel:
		return "midlevel"
	case SkillVeteran:
		return "veteran"
	default:
		return "unknown"
	}
}

// ParseSkillLevel converts a textual skill level. Matching ignores case.
func ParseSkillLevel(s string) (SkillLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "novice":
		return SkillNovice, nil
	case "midlevel", "mid-level", "mid":
		return SkillMidLevel, nil
	case "veteran":
		return SkillVeteran, nil
	default:
		return SkillUnknown, fmt.Errorf("unknown skill level %q", s)
	}
}

func (s SkillLevel) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SkillLevel) UnmarshalText(b []byte) error {
	v, err := ParseSkillLevel(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
