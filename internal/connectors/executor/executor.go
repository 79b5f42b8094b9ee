// Package executor performs the actions the dispatcher produced for a
// message against Slack, the media store and the history purger.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/lewisedginton/milordbot/internal/dispatch"
	"github.com/lewisedginton/milordbot/internal/mediastore"
	"github.com/lewisedginton/milordbot/internal/purge"
	"github.com/lewisedginton/milordbot/pkg/logger"
	"github.com/lewisedginton/milordbot/pkg/metrics"
)

// errEmpty marks a listing or media folder with nothing in it.
var errEmpty = errors.New("nothing to show")

// SlackAPI is the part of the Slack Web API the executor posts through.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UploadFileV2Context(ctx context.Context, params slack.UploadFileV2Parameters) (*slack.FileSummary, error)
}

// Purger deletes channel history.
type Purger interface {
	Purge(ctx context.Context, channelID string, window time.Duration) (purge.Result, error)
}

// Config wires an Executor.
type Config struct {
	API         SlackAPI
	Purger      Purger
	Store       mediastore.FileProvider
	PurgeWindow time.Duration
	// NoActionText is posted when a listing or media folder turns out empty.
	NoActionText string

	Logger  logger.Logger
	Metrics *metrics.Metrics
	// Intn picks a random index. Defaults to math/rand/v2.
	Intn func(n int) int
}

// Executor runs actions one after another.
type Executor struct {
	cfg Config
	log logger.Logger
}

// Report counts what happened to one message's actions.
type Report struct {
	Executed int
	Failed   int
}

// NewExecutor validates cfg and returns an Executor.
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.API == nil {
		return nil, fmt.Errorf("slack api cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("media store cannot be nil")
	}
	if cfg.Purger == nil {
		return nil, fmt.Errorf("purger cannot be nil")
	}
	if cfg.NoActionText == "" {
		cfg.NoActionText = dispatch.DefaultNoActionText
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	if cfg.Intn == nil {
		cfg.Intn = rand.Intn
	}
	return &Executor{cfg: cfg, log: cfg.Logger}, nil
}

// Execute runs actions in order. A failed action is logged and counted and
// does not stop the ones after it.
func (e *Executor) Execute(ctx context.Context, msg dispatch.Message, actions []dispatch.Action) Report {
	var report Report
	log := logger.FromContext(ctx, e.log).WithFields(
		logger.UserField(msg.SenderID),
		logger.ChannelField(msg.ChannelID),
	)

	for _, action := range actions {
		start := time.Now()
		err := e.run(ctx, msg, action)
		e.cfg.Metrics.ObserveJob(err)
		report.Executed++

		if err != nil {
			report.Failed++
			log.Error("Action failed",
				logger.ActionField(action.Kind()),
				logger.ErrorField(err),
				logger.DurationField("duration", time.Since(start)),
			)
			continue
		}
		log.Debug("Action executed",
			logger.ActionField(action.Kind()),
			logger.DurationField("duration", time.Since(start)),
		)
	}
	return report
}

func (e *Executor) run(ctx context.Context, msg dispatch.Message, action dispatch.Action) error {
	switch a := action.(type) {
	case dispatch.Reject:
		return e.post(ctx, msg.ChannelID, a.Text)
	case dispatch.Reply:
		return e.post(ctx, msg.ChannelID, a.Text)
	case dispatch.ListCommands:
		return e.post(ctx, msg.ChannelID, bulletList(a.Entries))
	case dispatch.ListDirectory:
		return e.listDirectory(ctx, msg.ChannelID, a.Path)
	case dispatch.RandomMedia:
		return e.randomMedia(ctx, msg.ChannelID, a.Dir)
	case dispatch.PostMedia:
		return e.upload(ctx, msg.ChannelID, a.Path, a.Key)
	case dispatch.DeleteHistory:
		res, err := e.cfg.Purger.Purge(ctx, a.Channel, e.cfg.PurgeWindow)
		if err != nil {
			return fmt.Errorf("purge %s: %w", a.Channel, err)
		}
		logger.FromContext(ctx, e.log).Info("History purged",
			logger.ChannelField(a.Channel),
			logger.IntField("deleted", res.Deleted),
			logger.IntField("failed", res.Failed),
		)
		return nil
	default:
		return fmt.Errorf("unsupported action %T", action)
	}
}

func (e *Executor) post(ctx context.Context, channelID, text string) error {
	if _, _, err := e.cfg.API.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}

// noAction replaces an empty listing with the no-action reply.
func (e *Executor) noAction(ctx context.Context, channelID, what string, cause error) error {
	logger.FromContext(ctx, e.log).Info("Nothing to show, replying with no-action text",
		logger.PathField(what),
		logger.ErrorField(cause),
	)
	return e.post(ctx, channelID, e.cfg.NoActionText)
}

func (e *Executor) listDirectory(ctx context.Context, channelID, dir string) error {
	entries, err := mediastore.ListDir(ctx, e.cfg.Store, dir)
	switch {
	case errors.Is(err, mediastore.ErrUnsafePath), errors.Is(err, mediastore.ErrNotFound):
		return e.noAction(ctx, channelID, dir, err)
	case err != nil:
		return fmt.Errorf("list %s: %w", dir, err)
	case len(entries) == 0:
		return e.noAction(ctx, channelID, dir, errEmpty)
	}
	return e.post(ctx, channelID, bulletList(entries))
}

func (e *Executor) randomMedia(ctx context.Context, channelID, dir string) error {
	entries, err := mediastore.ListDir(ctx, e.cfg.Store, dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}
	files := entries[:0]
	for _, name := range entries {
		if !strings.HasSuffix(name, "/") {
			files = append(files, name)
		}
	}
	if len(files) == 0 {
		return e.noAction(ctx, channelID, dir, errEmpty)
	}
	name := files[e.cfg.Intn(len(files))]
	return e.upload(ctx, channelID, path.Join(dir, name), strings.TrimSuffix(name, path.Ext(name)))
}

func (e *Executor) upload(ctx context.Context, channelID, filePath, title string) error {
	data, err := e.cfg.Store.Read(ctx, filePath)
	if err != nil {
		return fmt.Errorf("read %s: %w", filePath, err)
	}
	_, err = e.cfg.API.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Reader:   bytes.NewReader(data),
		FileSize: len(data),
		Filename: path.Base(filePath),
		Title:    title,
		Channel:  channelID,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", filePath, err)
	}
	return nil
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "_none_"
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("• ")
		b.WriteString(item)
	}
	return b.String()
}
