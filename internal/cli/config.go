package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	appconfig "github.com/lewisedginton/milordbot/internal/config"
	"github.com/lewisedginton/milordbot/internal/dispatch"
	"github.com/lewisedginton/milordbot/pkg/logger"
)

// ConfigCommand returns a command for configuration operations
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Configuration operations",
		Subcommands: []*cli.Command{
			{
				Name:   "validate",
				Usage:  "Validate configuration and the tables it points at",
				Action: configValidateAction,
			},
		},
	}
}

func configValidateAction(c *cli.Context) error {
	log := getLogger(c)
	log.Info("Validating configuration")

	cfg, err := appconfig.Load(c.String("config-file"))
	if err != nil {
		log.Error("Configuration validation failed", logger.ErrorField(err))
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	store, cat, err := loadTables(c.Context, cfg, log)
	if err != nil {
		log.Error("Table validation failed", logger.ErrorField(err))
		return err
	}
	d, err := dispatch.New(dispatcherConfig(cfg, store, cat, log, nil))
	if err != nil {
		log.Error("Dispatcher validation failed", logger.ErrorField(err))
		return err
	}

	log.Info("Configuration validation passed", logger.StringsField("rules", d.Rules()))
	_, _ = fmt.Fprintln(c.App.Writer, "Configuration is valid")
	return nil
}
