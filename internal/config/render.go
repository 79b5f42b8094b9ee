package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/milordbot/internal/svgtext"
)

// RenderConfig holds meme card rendering settings.
type RenderConfig struct {
	InkscapePath string        `env:"INKSCAPE_PATH" yaml:"inkscape_path" default:"inkscape"`
	Timeout      time.Duration `env:"RENDER_TIMEOUT" yaml:"timeout" default:"60s"`
	MaxChars     int           `env:"RENDER_MAX_CHARS" yaml:"max_chars" default:"30"`
	LineHeight   float64       `env:"RENDER_LINE_HEIGHT" yaml:"line_height" default:"2.0"`
}

// Validate checks the render settings.
func (c *RenderConfig) Validate() error {
	var result error
	if c.InkscapePath == "" {
		result = multierror.Append(result, fmt.Errorf("inkscape_path must not be empty"))
	}
	if c.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("render_timeout must be greater than 0"))
	}
	if c.MaxChars < 0 {
		result = multierror.Append(result, fmt.Errorf("render_max_chars cannot be negative"))
	}
	if c.LineHeight <= 0 {
		result = multierror.Append(result, fmt.Errorf("render_line_height must be greater than 0"))
	}
	return result
}

// WrapOptions converts the settings for svgtext.
func (c *RenderConfig) WrapOptions() svgtext.Options {
	return svgtext.Options{MaxChars: c.MaxChars, LineHeight: c.LineHeight}
}
