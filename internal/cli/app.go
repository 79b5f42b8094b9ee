// Package cli holds the milordbot command line.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/milordbot/pkg/logger"
)

const serviceName = "milordbot"

// NewApp builds the milordbot command line application.
func NewApp(version string) *cli.App {
	return &cli.App{
		Name:    serviceName,
		Usage:   "Personal Slack command bot and meme card renderer",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error); falls back to LOG_LEVEL",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format (json, text); falls back to LOG_FORMAT",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file instead of ./.env",
			},
			&cli.StringFlag{
				Name:    "config-file",
				Usage:   "Path to an optional YAML configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Before: before,
		Commands: []*cli.Command{
			SlackCommand(),
			MemeCommand(),
			PurgeCommand(),
			ConfigCommand(),
			CommandsCommand(),
		},
	}
}

// before loads the env file and stores the logger in the app metadata.
func before(ctx *cli.Context) error {
	if path := ctx.String("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	} else {
		_ = godotenv.Load() // .env is optional
	}

	log := logger.NewLogger(logger.Config{
		Level:   logger.ParseLevel(firstNonEmpty(ctx.String("log-level"), os.Getenv("LOG_LEVEL"))),
		Format:  firstNonEmpty(ctx.String("log-format"), os.Getenv("LOG_FORMAT"), "json"),
		Service: serviceName,
		Output:  ctx.App.ErrWriter,
	})

	if ctx.App.Metadata == nil {
		ctx.App.Metadata = map[string]interface{}{}
	}
	ctx.App.Metadata["logger"] = log
	return nil
}

// getLogger retrieves the logger from the CLI context metadata
func getLogger(ctx *cli.Context) logger.Logger {
	if ctx.App.Metadata != nil {
		if log, ok := ctx.App.Metadata["logger"].(logger.Logger); ok {
			return log
		}
	}
	return logger.NewLogger(logger.Config{
		Level:   logger.InfoLevel,
		Format:  "json",
		Service: serviceName,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
