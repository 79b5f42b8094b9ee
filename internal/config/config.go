// Package config holds the bot's application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/milordbot/pkg/config"
	"github.com/lewisedginton/milordbot/pkg/logger"
)

// AppConfig holds all application configuration
type AppConfig struct {
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"milordbot"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	Slack      SlackConfig          `yaml:"slack"`
	Bot        BotConfig            `yaml:"bot"`
	Purge      PurgeConfig          `yaml:"purge"`
	Storage    StorageConfig        `yaml:"storage"`
	Render     RenderConfig         `yaml:"render"`
	Monitoring MonitoringConfig     `yaml:"monitoring"`
	Logging    config.LoggingConfig `yaml:",inline"`
}

// Load reads configuration from the optional YAML file at path and the
// environment, then validates it.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := config.GetConfig(&cfg, path, false); err != nil {
		return nil, err
	}
	applyLegacyAliases(&cfg.Render)
	return &cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *AppConfig) Validate() error {
	var result error
	for _, v := range []interface{ Validate() error }{
		c.Logging, &c.Slack, &c.Bot, &c.Purge, &c.Storage, &c.Render, &c.Monitoring,
	} {
		if err := v.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// applyLegacyAliases honours the old `ink` variable for the renderer path.
func applyLegacyAliases(c *RenderConfig) {
	if v := os.Getenv("INKSCAPE_PATH"); v != "" {
		return
	}
	if ink := os.Getenv("ink"); ink != "" {
		c.InkscapePath = ink
	}
}

// GetLogLevel returns the parsed logger level
func (c *AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(c.Logging.Level)
}

// LogConfig logs the current configuration (without sensitive data)
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("environment", c.Environment),
		logger.IntField("authorized_users", len(c.Bot.AuthorizedUsers)),
		logger.StringField("command_marker", c.Bot.CommandMarker),
		logger.StringField("storage_backend", c.Storage.Backend),
		logger.DurationField("purge_window", c.Purge.Window()),
		logger.StringField("inkscape_path", c.Render.InkscapePath),
		logger.StringField("log_level", c.Logging.Level),
		logger.BoolField("monitoring_enabled", c.Monitoring.Enabled),
		logger.IntField("monitoring_port", c.Monitoring.Port),
	)
}

// LoadRender reads only what the offline card renderer needs, so it runs
// without Slack credentials.
func LoadRender(path string) (*RenderOnlyConfig, error) {
	var cfg RenderOnlyConfig
	if err := config.GetConfig(&cfg, path, false); err != nil {
		return nil, err
	}
	applyLegacyAliases(&cfg.Render)
	return &cfg, nil
}

// RenderOnlyConfig is the configuration of the offline render command.
type RenderOnlyConfig struct {
	Render  RenderConfig         `yaml:"render"`
	Logging config.LoggingConfig `yaml:",inline"`
}

// Validate validates the render settings.
func (c *RenderOnlyConfig) Validate() error {
	var result error
	if err := c.Logging.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Render.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}

func validMarker(name, marker string) error {
	if marker == "" {
		return fmt.Errorf("%s must not be empty", name)
	}
	if strings.IndexFunc(marker, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%s must not contain whitespace, got %q", name, marker)
	}
	return nil
}
