package cli

import (
	"context"
	"fmt"

	"github.com/lewisedginton/milordbot/internal/catalog"
	appconfig "github.com/lewisedginton/milordbot/internal/config"
	"github.com/lewisedginton/milordbot/internal/connectors/executor"
	slackconn "github.com/lewisedginton/milordbot/internal/connectors/slack"
	"github.com/lewisedginton/milordbot/internal/dispatch"
	"github.com/lewisedginton/milordbot/internal/mediastore"
	"github.com/lewisedginton/milordbot/internal/purge"
	"github.com/lewisedginton/milordbot/pkg/logger"
	"github.com/lewisedginton/milordbot/pkg/metrics"
)

// loadTables opens the media store and parses the three tables in it.
func loadTables(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) (mediastore.FileProvider, *catalog.Catalog, error) {
	store, err := mediastore.New(ctx, cfg.Storage.MediaStore())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open media store: %w", err)
	}

	cat, err := catalog.Load(ctx, store, catalog.Files{
		Commands: cfg.Bot.CommandsFile,
		Images:   cfg.Bot.ImagesFile,
		Audio:    cfg.Bot.AudioFile,
	}, cfg.Bot.CommandMarker)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load tables: %w", err)
	}

	log.Info("Tables loaded",
		logger.StringField("storage_backend", cfg.Storage.Backend),
		logger.IntField("commands", cat.Commands.Len()),
		logger.IntField("images", cat.Images.Len()),
		logger.IntField("audio", cat.Audio.Len()),
	)
	return store, cat, nil
}

func dispatcherConfig(cfg *appconfig.AppConfig, store mediastore.FileProvider, cat *catalog.Catalog, log logger.Logger, m *metrics.Metrics) dispatch.Config {
	return dispatch.Config{
		AuthorizedUsers: dispatch.NewUserSet(cfg.Bot.AuthorizedUsers...),
		Commands:        cat.Commands,
		Images:          cat.Images,
		Audio:           cat.Audio,
		Store:           store,
		Marker:          cfg.Bot.CommandMarker,
		OverrideMarker:  cfg.Bot.BotOverrideMarker,
		MemeDir:         cfg.Bot.MemeDir,
		ListRoot:        cfg.Bot.ListRoot,
		NukeImageKey:    cfg.Bot.NukeImageKey,
		Logger:          log,
		Metrics:         m,
	}
}

func purgeOptions(cfg *appconfig.AppConfig, log logger.Logger, m *metrics.Metrics) purge.Options {
	retries := cfg.Purge.MaxRetries
	if retries == 0 {
		retries = -1 // purge.Options reads zero as "use the default"
	}
	return purge.Options{
		MaxRetries:  retries,
		DeleteDelay: cfg.Purge.DeleteDelay,
		Logger:      log,
		Metrics:     m,
	}
}

// bot is the fully wired Slack side of the service.
type bot struct {
	store     mediastore.FileProvider
	connector *slackconn.Connector
}

func newBot(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger, m *metrics.Metrics) (*bot, error) {
	store, cat, err := loadTables(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	disp, err := dispatch.New(dispatcherConfig(cfg, store, cat, log, m))
	if err != nil {
		return nil, err
	}

	botClient, err := slackconn.NewClient(slackconn.Config{
		BotToken: cfg.Slack.BotToken,
		AppToken: cfg.Slack.AppToken,
		Debug:    cfg.Slack.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Slack client: %w", err)
	}
	userClient, err := slackconn.NewUserClient(cfg.Slack.UserToken, cfg.Slack.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create Slack user client: %w", err)
	}

	exec, err := executor.NewExecutor(executor.Config{
		API:         botClient,
		Purger:      purge.New(userClient, purgeOptions(cfg, log, m)),
		Store:       store,
		PurgeWindow: cfg.Purge.Window(),
		Logger:      log,
		Metrics:     m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}

	conn, err := slackconn.NewConnector(botClient, disp, exec, log, cfg.Slack.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create Slack connector: %w", err)
	}

	return &bot{store: store, connector: conn}, nil
}
