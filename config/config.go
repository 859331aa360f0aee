// Package config loads the service configuration from a YAML or JSON file
// with K_ prefixed environment overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/fieldassign/core/metrics"
	"github.com/kilianp07/fieldassign/core/runlog"
	"github.com/kilianp07/fieldassign/infra/logger"
	"github.com/kilianp07/fieldassign/infra/mqtt"
)

// EnvPrefix prefixes environment overrides. Nested keys are separated by a
// double underscore, e.g. K_SERVER__ADDRESS.
const EnvPrefix = "K_"

type Config struct {
	Server  ServerConfig   `json:"server"`
	Engine  EngineConfig   `json:"engine"`
	Roster  RosterConfig   `json:"roster"`
	RunLog  runlog.Config  `json:"runlog"`
	Metrics metrics.Config `json:"metrics"`
	MQTT    mqtt.Config    `json:"mqtt"`
	Logging logger.Options `json:"logging"`
}

// Load reads the configuration file at path. An empty path skips the file
// and builds the configuration from defaults and the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Engine.SetDefaults()
	c.RunLog.SetDefaults()
	c.MQTT.SetDefaults()
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	add := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}
	add("server", c.Server.Validate())
	add("engine", c.Engine.Validate())
	add("runlog", c.RunLog.Validate())
	add("mqtt", c.MQTT.Validate())
	switch c.Logging.Format {
	case "json", "console":
	default:
		add("logging", fmt.Errorf("unknown format %s", c.Logging.Format))
	}
	return errors.Join(errs...)
}
