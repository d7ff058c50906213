// Package config loads the icusim configuration from a YAML or JSON file with
// K_ prefixed environment overrides, e.g. K_SIMULATION__ROUNDS=500.
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

	"github.com/kilianp07/icusim/core/metrics"
	"github.com/kilianp07/icusim/core/runlog"
	"github.com/kilianp07/icusim/infra/monitoring"
	"github.com/kilianp07/icusim/infra/mqtt"
)

type Config struct {
	Simulation SimulationConfig  `json:"simulation"`
	Input      InputConfig       `json:"input"`
	Output     OutputConfig      `json:"output"`
	RunLog     runlog.Config     `json:"runlog"`
	Metrics    metrics.Config    `json:"metrics"`
	MQTT       mqtt.Config       `json:"mqtt"`
	API        APIConfig         `json:"api"`
	Sentry     monitoring.Config `json:"sentry"`
}

// Load reads path, applies environment overrides, defaults and validation.
// An empty path loads the environment only.
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
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Simulation.SetDefaults()
	c.Input.SetDefaults()
	c.Output.SetDefaults()
	c.RunLog.SetDefaults()
	c.API.SetDefaults()
	if c.MQTT.Enabled() {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section and joins the errors.
func (c Config) Validate() error {
	return errors.Join(
		c.Simulation.Validate(),
		c.Input.Validate(),
		c.Output.Validate(),
		c.RunLog.Validate(),
		c.MQTT.Validate(),
	)
}
