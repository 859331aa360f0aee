package config

import (
	"fmt"
	"strings"

	"github.com/kilianp07/fieldassign/core/assign"
	"github.com/kilianp07/fieldassign/core/model"
)

// ServerConfig defines the HTTP API listener.
type ServerConfig struct {
	Address string `json:"address"`
	// Token protects /api/ with bearer authentication when set.
	Token           string `json:"token"`
	ShutdownSeconds int    `json:"shutdown_seconds"`
	// RateLimit caps API requests per second. Zero disables limiting.
	RateLimit float64 `json:"rate_limit"`
	Burst     int     `json:"burst"`
}

// SetDefaults applies sane defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.ShutdownSeconds <= 0 {
		c.ShutdownSeconds = 5
	}
}

// Validate checks mandatory fields.
func (c ServerConfig) Validate() error {
	if !strings.Contains(c.Address, ":") {
		return fmt.Errorf("address %q must be host:port", c.Address)
	}
	if c.RateLimit < 0 || c.Burst < 0 {
		return fmt.Errorf("rate_limit and burst must not be negative")
	}
	return nil
}

// EngineConfig tunes instruction classification and random draws.
type EngineConfig struct {
	NoviceKeywords  []string `json:"novice_keywords"`
	TroubleKeywords []string `json:"trouble_keywords"`
	// NoviceStaffID designates the staff member easy sites go to. Empty picks
	// the first novice of the roster.
	NoviceStaffID string `json:"novice_staff_id"`
	// Seed makes runs reproducible when non-zero.
	Seed uint64 `json:"seed"`
}

// SetDefaults applies the built-in keyword lists.
func (c *EngineConfig) SetDefaults() {
	if len(c.NoviceKeywords) == 0 {
		c.NoviceKeywords = append([]string(nil), model.DefaultNoviceKeywords...)
	}
	if len(c.TroubleKeywords) == 0 {
		c.TroubleKeywords = append([]string(nil), model.DefaultTroubleKeywords...)
	}
}

// Validate rejects blank keywords, which would match every instruction.
func (c EngineConfig) Validate() error {
	for _, k := range append(append([]string(nil), c.NoviceKeywords...), c.TroubleKeywords...) {
		if k == "" {
			return fmt.Errorf("keywords must not be empty")
		}
	}
	return nil
}

// Options converts the section into engine options.
func (c EngineConfig) Options() assign.Options {
	return assign.Options{
		NoviceKeywords:  c.NoviceKeywords,
		TroubleKeywords: c.TroubleKeywords,
		NoviceStaff:     model.StaffID(c.NoviceStaffID),
		Seed:            c.Seed,
	}
}

// RosterConfig points at the roster file. An empty path uses the built-in
// demo roster.
type RosterConfig struct {
	Path string `json:"path"`
}
