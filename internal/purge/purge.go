// Package purge deletes the acting user's recent messages from a channel.
package purge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/slack-go/slack"

	"github.com/lewisedginton/milordbot/pkg/logger"
	"github.com/lewisedginton/milordbot/pkg/metrics"
)

const (
	DefaultMaxRetries  = 5
	DefaultDeleteDelay = 50 * time.Millisecond
	historyPageSize    = 200
	repliesPageSize    = 200
)

// HistoryAPI is the slice of the Slack Web API a purge needs. *slack.Client
// satisfies it.
type HistoryAPI interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	DeleteMessageContext(ctx context.Context, channel, messageTimestamp string) (string, string, error)
}

// Options tunes a Purger.
type Options struct {
	// MaxRetries bounds rate-limit retries per API call. Zero means
	// DefaultMaxRetries and a negative value disables retries.
	MaxRetries int
	// DeleteDelay pauses between deletions.
	DeleteDelay time.Duration
	// DryRun counts matching messages without deleting them.
	DryRun bool

	Logger  logger.Logger
	Metrics *metrics.Metrics
	// Now is the clock used for the window start.
	Now func() time.Time
}

// Result summarizes one purge.
type Result struct {
	Scanned int
	Matched int
	Deleted int
	Failed  int
}

// Purger deletes messages posted under the token's own identity.
type Purger struct {
	api  HistoryAPI
	opts Options
	log  logger.Logger

	mu     sync.Mutex
	userID string
}

// New creates a Purger.
func New(api HistoryAPI, opts Options) *Purger {
	switch {
	case opts.MaxRetries == 0:
		opts.MaxRetries = DefaultMaxRetries
	case opts.MaxRetries < 0:
		opts.MaxRetries = 0
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Purger{api: api, opts: opts, log: opts.Logger}
}

// UserID returns the acting user's ID from auth.test, cached after the
// first success.
func (p *Purger) UserID(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.userID != "" {
		return p.userID, nil
	}

	var resp *slack.AuthTestResponse
	err := p.withRetry(ctx, "auth.test", func() error {
		var err error
		resp, err = p.api.AuthTestContext(ctx)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to identify acting user: %w", err)
	}
	if resp.UserID == "" {
		return "", errors.New("auth.test returned no user id")
	}
	p.userID = resp.UserID
	return p.userID, nil
}

// Purge deletes the acting user's messages in channelID posted within the
// trailing window, including their thread replies. Individual delete
// failures are counted, not returned. Only failing to read history aborts.
func (p *Purger) Purge(ctx context.Context, channelID string, window time.Duration) (Result, error) {
	var res Result
	log := logger.FromContext(ctx, p.log).WithFields(
		logger.ChannelField(channelID),
		logger.DurationField("window", window),
		logger.BoolField("dry_run", p.opts.DryRun),
	)

	userID, err := p.UserID(ctx)
	if err != nil {
		return res, err
	}

	oldest := slackTimestamp(p.opts.Now().Add(-window))
	targets, scanned, err := p.collect(ctx, channelID, userID, oldest)
	res.Scanned = scanned
	res.Matched = len(targets)
	if err != nil {
		return res, err
	}

	if p.opts.DryRun {
		log.Info("Purge dry run complete", logger.IntField("matched", res.Matched), logger.IntField("scanned", res.Scanned))
		return res, nil
	}

	for i, ts := range targets {
		if i > 0 && p.opts.DeleteDelay > 0 {
			if err := sleep(ctx, p.opts.DeleteDelay); err != nil {
				return res, err
			}
		}

		err := p.withRetry(ctx, "chat.delete", func() error {
			_, _, err := p.api.DeleteMessageContext(ctx, channelID, ts)
			return err
		})
		switch {
		case err == nil, isMessageNotFound(err):
			res.Deleted++
		case ctx.Err() != nil:
			p.opts.Metrics.ObservePurge(res.Deleted, res.Failed)
			return res, ctx.Err()
		default:
			res.Failed++
			log.Warn("Failed to delete message", logger.StringField("ts", ts), logger.ErrorField(err))
		}
	}

	p.opts.Metrics.ObservePurge(res.Deleted, res.Failed)
	log.Info("Purge complete",
		logger.IntField("scanned", res.Scanned),
		logger.IntField("deleted", res.Deleted),
		logger.IntField("failed", res.Failed),
	)
	return res, nil
}

// collect pages through history and returns the timestamps to delete.
func (p *Purger) collect(ctx context.Context, channelID, userID, oldest string) ([]string, int, error) {
	var (
		targets []string
		scanned int
		seen    = make(map[string]struct{})
	)
	add := func(ts string) {
		if _, ok := seen[ts]; ok {
			return
		}
		seen[ts] = struct{}{}
		targets = append(targets, ts)
	}

	params := &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Oldest:    oldest,
		Limit:     historyPageSize,
	}
	for {
		var page *slack.GetConversationHistoryResponse
		err := p.withRetry(ctx, "conversations.history", func() error {
			var err error
			page, err = p.api.GetConversationHistoryContext(ctx, params)
			return err
		})
		if err != nil {
			return targets, scanned, fmt.Errorf("failed to read history of %s: %w", channelID, err)
		}

		for _, m := range page.Messages {
			scanned++
			if m.User != userID {
				continue
			}
			add(m.Timestamp)

			if m.ThreadTimestamp == m.Timestamp && m.ReplyCount > 0 {
				replies, n, err := p.replies(ctx, channelID, m.Timestamp, userID, oldest)
				scanned += n
				if err != nil {
					p.log.Warn("Failed to read thread replies",
						logger.ChannelField(channelID),
						logger.StringField("thread_ts", m.Timestamp),
						logger.ErrorField(err),
					)
				}
				for _, ts := range replies {
					add(ts)
				}
			}
		}

		if !page.HasMore || page.ResponseMetaData.NextCursor == "" {
			return targets, scanned, nil
		}
		params.Cursor = page.ResponseMetaData.NextCursor
	}
}

func (p *Purger) replies(ctx context.Context, channelID, threadTS, userID, oldest string) ([]string, int, error) {
	var (
		out     []string
		scanned int
	)
	params := &slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTS,
		Oldest:    oldest,
		Limit:     repliesPageSize,
	}
	for {
		var (
			msgs    []slack.Message
			hasMore bool
			next    string
		)
		err := p.withRetry(ctx, "conversations.replies", func() error {
			var err error
			msgs, hasMore, next, err = p.api.GetConversationRepliesContext(ctx, params)
			return err
		})
		if err != nil {
			return out, scanned, err
		}
		for _, m := range msgs {
			if m.Timestamp == threadTS {
				continue
			}
			scanned++
			if m.User == userID {
				out = append(out, m.Timestamp)
			}
		}
		if !hasMore || next == "" {
			return out, scanned, nil
		}
		params.Cursor = next
	}
}

// withRetry runs fn, waiting out Slack rate limits up to MaxRetries times.
func (p *Purger) withRetry(ctx context.Context, op string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		var limited *slack.RateLimitedError
		if err == nil || !errors.As(err, &limited) || attempt >= p.opts.MaxRetries {
			return err
		}
		p.log.Debug("Rate limited, backing off",
			logger.StringField("op", op),
			logger.DurationField("retry_after", limited.RetryAfter),
			logger.IntField("attempt", attempt+1),
		)
		if err := sleep(ctx, limited.RetryAfter); err != nil {
			return err
		}
	}
}

func isMessageNotFound(err error) bool {
	var resp slack.SlackErrorResponse
	if errors.As(err, &resp) {
		return resp.Err == "message_not_found"
	}
	return err.Error() == "message_not_found"
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func slackTimestamp(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10) + ".000000"
}
