package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/evopt/core/metrics"
	"github.com/kilianp07/evopt/core/model"
	"github.com/kilianp07/evopt/core/optim"
	"github.com/kilianp07/evopt/core/planner"
	"github.com/kilianp07/evopt/core/planner/history"
	"github.com/kilianp07/evopt/infra/mqtt"
)

type Config struct {
	Horizon  model.Horizon   `json:"horizon"`
	Vehicles []VehicleConfig `json:"vehicles"`
	Plant    optim.Plant     `json:"plant"`
	Forecast ForecastConfig  `json:"forecast"`
	Planner  planner.Config  `json:"planner"`
	History  history.Config  `json:"history"`
	MQTT     mqtt.Config     `json:"mqtt"`
	Metrics  metrics.Config  `json:"metrics"`
	API      APIConfig       `json:"api"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
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
	// Optional environment overrides
	if err := k.Load(env.Provider("EVOPT_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "evopt_")
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

// SetDefaults applies sane defaults to every section.
func (c *Config) SetDefaults() {
	if c.Horizon.Steps == 0 {
		c.Horizon.Steps = 48
	}
	if c.Horizon.StepHours == 0 {
		c.Horizon.StepHours = 0.5
	}
	c.Forecast.SetDefaults()
	c.Planner.SetDefaults()
	c.History.SetDefaults()
	c.MQTT.SetDefaults()
	c.Metrics.SetDefaults()
	c.API.SetDefaults()
}

// Validate checks every section so configuration mistakes surface at load
// time rather than on the first optimization run.
func (c Config) Validate() error {
	if err := c.Horizon.Validate(); err != nil {
		return err
	}
	for i, vc := range c.Vehicles {
		if err := vc.Validate(i); err != nil {
			return err
		}
	}
	if err := c.Plant.Validate(c.Horizon); err != nil {
		return err
	}
	if err := c.Forecast.Validate(); err != nil {
		return err
	}
	if err := c.Planner.Validate(); err != nil {
		return err
	}
	if err := c.History.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	return nil
}

// Fleet converts the configured vehicle list to registry specs.
func (c Config) Fleet() []model.Vehicle {
	out := make([]model.Vehicle, len(c.Vehicles))
	for i, vc := range c.Vehicles {
		out[i] = vc.Vehicle(i)
	}
	return out
}
