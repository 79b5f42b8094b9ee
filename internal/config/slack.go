package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// SlackConfig holds Slack-specific configuration
type SlackConfig struct {
	BotToken  string `env:"SLACK_BOT_TOKEN" yaml:"bot_token" required:"true"`
	AppToken  string `env:"SLACK_APP_TOKEN" yaml:"app_token" required:"true"`
	UserToken string `env:"SLACK_USER_TOKEN" yaml:"user_token" required:"true"`
	Debug     bool   `env:"SLACK_DEBUG" yaml:"debug"`
}

// Validate checks the token prefixes.
func (c *SlackConfig) Validate() error {
	var result error
	check := func(name, value, prefix string) {
		if !strings.HasPrefix(value, prefix) {
			result = multierror.Append(result, fmt.Errorf("%s must start with %q", name, prefix))
		}
	}
	check("slack_bot_token", c.BotToken, "xoxb-")
	check("slack_app_token", c.AppToken, "xapp-")
	check("slack_user_token", c.UserToken, "xoxp-")
	return result
}
