package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// BotConfig holds command routing and media layout settings.
type BotConfig struct {
	AuthorizedUsers []string `env:"AUTHORIZED_USERS" yaml:"authorized_users" required:"true"`

	CommandMarker     string `env:"COMMAND_MARKER" yaml:"command_marker" default:"--"`
	BotOverrideMarker string `env:"BOT_OVERRIDE_MARKER" yaml:"bot_override_marker" default:"--override"`

	CommandsFile string `env:"COMMANDS_FILE" yaml:"commands_file" default:"commands.json"`
	ImagesFile   string `env:"IMAGES_FILE" yaml:"images_file" default:"images.json"`
	AudioFile    string `env:"AUDIO_FILE" yaml:"audio_file" default:"audio.json"`

	MemeDir      string `env:"MEME_DIR" yaml:"meme_dir" default:"memes"`
	ListRoot     string `env:"LIST_ROOT" yaml:"list_root" default:"."`
	NukeImageKey string `env:"NUKE_IMAGE_KEY" yaml:"nuke_image_key" default:"nuke"`
}

// Validate checks markers and required users.
func (c *BotConfig) Validate() error {
	var result error
	if len(c.AuthorizedUsers) == 0 {
		result = multierror.Append(result, errors.New("authorized_users must list at least one user id"))
	}
	if err := validMarker("command_marker", c.CommandMarker); err != nil {
		result = multierror.Append(result, err)
	}
	if err := validMarker("bot_override_marker", c.BotOverrideMarker); err != nil {
		result = multierror.Append(result, err)
	}
	if c.NukeImageKey == "" || strings.Contains(c.NukeImageKey, "/") {
		result = multierror.Append(result, fmt.Errorf("nuke_image_key must be a bare key, got %q", c.NukeImageKey))
	}
	return result
}

// PurgeConfig controls history deletion.
type PurgeConfig struct {
	WindowSeconds int           `env:"PURGE_WINDOW_SECONDS" yaml:"window_seconds" default:"3600"`
	MaxRetries    int           `env:"PURGE_MAX_RETRIES" yaml:"max_retries" default:"5"`
	DeleteDelay   time.Duration `env:"PURGE_DELETE_DELAY" yaml:"delete_delay" default:"50ms"`
}

// Window returns the trailing deletion window.
func (c *PurgeConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// Validate checks the purge bounds.
func (c *PurgeConfig) Validate() error {
	var result error
	if c.WindowSeconds <= 0 {
		result = multierror.Append(result, fmt.Errorf("purge_window_seconds must be greater than 0, got %d", c.WindowSeconds))
	}
	if c.MaxRetries < 0 {
		result = multierror.Append(result, errors.New("purge_max_retries cannot be negative"))
	}
	if c.DeleteDelay < 0 {
		result = multierror.Append(result, errors.New("purge_delete_delay cannot be negative"))
	}
	return result
}
