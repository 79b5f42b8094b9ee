package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	appconfig "github.com/lewisedginton/milordbot/internal/config"
	slackconn "github.com/lewisedginton/milordbot/internal/connectors/slack"
	"github.com/lewisedginton/milordbot/internal/purge"
	"github.com/lewisedginton/milordbot/pkg/logger"
)

// PurgeCommand deletes recent history without going through chat.
func PurgeCommand() *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Delete the acting user's recent messages in a channel",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "channel", Usage: "Channel ID", Required: true},
			&cli.DurationFlag{Name: "window", Usage: "How far back to delete, defaults to PURGE_WINDOW_SECONDS"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Count matching messages without deleting them"},
		},
		Action: purgeAction,
	}
}

func purgeAction(c *cli.Context) error {
	log := getLogger(c)

	cfg, err := appconfig.Load(c.String("config-file"))
	if err != nil {
		log.Error("Failed to load configuration", logger.ErrorField(err))
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	client, err := slackconn.NewUserClient(cfg.Slack.UserToken, cfg.Slack.Debug)
	if err != nil {
		return err
	}

	window := cfg.Purge.Window()
	if c.IsSet("window") {
		window = c.Duration("window")
	}
	if window <= 0 {
		return fmt.Errorf("window must be positive, got %s", window)
	}

	opts := purgeOptions(cfg, log, nil)
	opts.DryRun = c.Bool("dry-run")

	res, err := purge.New(client, opts).Purge(c.Context, c.String("channel"), window)
	if err != nil {
		log.Error("Purge failed", logger.ErrorField(err))
		return err
	}

	_, _ = fmt.Fprintf(c.App.Writer, "scanned=%d matched=%d deleted=%d failed=%d\n",
		res.Scanned, res.Matched, res.Deleted, res.Failed)
	if res.Failed > 0 {
		return fmt.Errorf("%d messages could not be deleted", res.Failed)
	}
	return nil
}
