package runlog

import "fmt"

// Config defines settings for run log storage and rotation.
type Config struct {
	// Backend selects the store type: "memory", "jsonl", "rotating" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Path == "" && c.Backend != "memory" {
		if c.Backend == "sqlite" {
			c.Path = "runs.db"
		} else {
			c.Path = "runs.jsonl"
		}
	}
	if c.Backend == "rotating" && c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "jsonl", "rotating", "sqlite":
	default:
		return fmt.Errorf("unknown runlog backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("runlog path is required")
	}
	return nil
}

// Open creates the store selected by cfg.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "jsonl":
		return NewJSONLStore(cfg.Path)
	case "rotating":
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown runlog backend %s", cfg.Backend)
	}
}
