package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Enabled            bool          `env:"MONITORING_ENABLED" yaml:"enabled" default:"true"`
	Port               int           `env:"MONITORING_PORT" yaml:"port" default:"9090"`
	HealthCheckTimeout time.Duration `env:"HEALTH_CHECK_TIMEOUT" yaml:"health_check_timeout" default:"10s"`
	FailureThreshold   int           `env:"HEALTH_FAILURE_THRESHOLD" yaml:"failure_threshold" default:"3"`
}

// Validate checks the ops server settings.
func (c *MonitoringConfig) Validate() error {
	var result error
	if c.Enabled && (c.Port < 1 || c.Port > 65535) {
		result = multierror.Append(result, fmt.Errorf("monitoring_port must be between 1 and 65535, got %d", c.Port))
	}
	if c.HealthCheckTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("health_check_timeout must be greater than 0"))
	}
	if c.FailureThreshold < 1 {
		result = multierror.Append(result, fmt.Errorf("health_failure_threshold must be at least 1"))
	}
	return result
}
