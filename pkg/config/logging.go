package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// LoggingConfig holds logging configuration shared by every command.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" yaml:"log_level" default:"info"`
	Format string `env:"LOG_FORMAT" yaml:"log_format" default:"json"`
}

// Validate checks level and format values.
func (c LoggingConfig) Validate() error {
	var result error

	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		result = multierror.Append(result, fmt.Errorf("log_level must be one of [debug, info, warn, error], got %q", c.Level))
	}

	if c.Format != "json" && c.Format != "text" {
		result = multierror.Append(result, fmt.Errorf("log_format must be either 'json' or 'text', got %q", c.Format))
	}

	return result
}
