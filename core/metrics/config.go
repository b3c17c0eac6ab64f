package metrics

import "github.com/kilianp07/evopt/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr is the listen address of the metrics endpoint when a
	// prometheus sink is configured, e.g. ":9090".
	PrometheusAddr string `json:"prometheus_addr"`
}

// SetDefaults fills unset fields with sane values.
func (c *Config) SetDefaults() {
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = ":9090"
	}
}

// PrometheusEnabled reports whether a prometheus sink is configured.
func (c Config) PrometheusEnabled() bool {
	for _, s := range c.Sinks {
		if s.Type == "prometheus" {
			return true
		}
	}
	return false
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	return nil
}
