package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	appconfig "github.com/lewisedginton/milordbot/internal/config"
	"github.com/lewisedginton/milordbot/internal/mediastore"
	"github.com/lewisedginton/milordbot/internal/monitoring"
	"github.com/lewisedginton/milordbot/pkg/logger"
	"github.com/lewisedginton/milordbot/pkg/metrics"
)

// SlackCommand returns a command for Slack operations
func SlackCommand() *cli.Command {
	return &cli.Command{
		Name:    "slack",
		Aliases: []string{"sl"},
		Usage:   "Slack bot operations",
		Subcommands: []*cli.Command{
			{
				Name:   "start",
				Usage:  "Start the Slack bot",
				Action: slackStartAction,
			},
		},
	}
}

func slackStartAction(c *cli.Context) error {
	cfg, err := appconfig.Load(c.String("config-file"))
	if err != nil {
		getLogger(c).Error("Failed to load configuration", logger.ErrorField(err))
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.NewLogger(logger.Config{
		Level:   cfg.GetLogLevel(),
		Format:  cfg.Logging.Format,
		Service: cfg.ServiceName,
		Output:  c.App.ErrWriter,
	})
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics()
	b, err := newBot(ctx, cfg, log, m)
	if err != nil {
		log.Error("Failed to start Slack bot", logger.ErrorField(err))
		return err
	}
	if err := b.connector.ProbeAuth(ctx); err != nil {
		log.Error("Slack credentials rejected", logger.ErrorField(err))
		return fmt.Errorf("slack auth test failed: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.connector.Start(gctx)
	})

	if cfg.Monitoring.Enabled {
		monitor := monitoring.NewHealthMonitor(monitoring.Config{
			Logger:           log,
			Timeout:          cfg.Monitoring.HealthCheckTimeout,
			FailureThreshold: cfg.Monitoring.FailureThreshold,
			Slack:            b.connector,
			Store:            b.store,
			StoreFile:        cfg.Bot.CommandsFile,
			Version:          c.App.Version,
		})
		srv := monitoring.NewServer(cfg.Monitoring.Port, monitor, m, log)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	if cfg.Storage.SyncInterval > 0 {
		g.Go(func() error {
			syncLoop(gctx, b.store, cfg.Storage.SyncInterval, log)
			return nil
		})
	}

	log.Info("Slack bot running")
	if err := g.Wait(); err != nil {
		log.Error("Slack bot stopped with error", logger.ErrorField(err))
		return err
	}
	log.Info("Slack bot stopped")
	return nil
}

// syncLoop refreshes the media store until ctx ends. Failures are logged
// and retried on the next tick.
func syncLoop(ctx context.Context, store mediastore.FileProvider, every time.Duration, log logger.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := mediastore.Sync(ctx, store); err != nil {
				log.Warn("Media store sync failed", logger.ErrorField(err))
				continue
			}
			log.Debug("Media store synced")
		}
	}
}
