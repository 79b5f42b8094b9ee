// Package slack connects the bot to Slack over Socket Mode.
package slack

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync/atomic"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/lewisedginton/milordbot/internal/connectors/executor"
	"github.com/lewisedginton/milordbot/internal/dispatch"
	"github.com/lewisedginton/milordbot/pkg/logger"
)

// SlashCommandHint is the ephemeral answer to any slash command.
const SlashCommandHint = "I answer to chat commands, MiLord. Try --comL for the list."

// Config holds the Slack credentials.
type Config struct {
	BotToken string // xoxb-*
	AppToken string // xapp-*
	Debug    bool
}

// NewClient validates the token formats and builds a Web API client that
// can also open a socket-mode connection.
func NewClient(cfg Config) (*slack.Client, error) {
	if !strings.HasPrefix(cfg.BotToken, "xoxb-") {
		return nil, fmt.Errorf("invalid bot token format, expected xoxb-*")
	}
	if !strings.HasPrefix(cfg.AppToken, "xapp-") {
		return nil, fmt.Errorf("invalid app token format, expected xapp-*")
	}
	return slack.New(
		cfg.BotToken,
		slack.OptionAppLevelToken(cfg.AppToken),
		slack.OptionDebug(cfg.Debug),
	), nil
}

// NewUserClient builds the acting-user client used for history deletion.
func NewUserClient(userToken string, debug bool) (*slack.Client, error) {
	if !strings.HasPrefix(userToken, "xoxp-") {
		return nil, fmt.Errorf("invalid user token format, expected xoxp-*")
	}
	return slack.New(userToken, slack.OptionDebug(debug)), nil
}

// Dispatcher turns a message into actions.
type Dispatcher interface {
	Handle(ctx context.Context, msg dispatch.Message) []dispatch.Action
}

// Executor performs actions.
type Executor interface {
	Execute(ctx context.Context, msg dispatch.Message, actions []dispatch.Action) executor.Report
}

type acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

// Connector reads socket-mode events and feeds chat messages through the
// dispatcher and executor, one message at a time.
type Connector struct {
	client     *slack.Client
	socketMode *socketmode.Client
	acker      acker
	dispatcher Dispatcher
	executor   Executor
	logger     logger.Logger
	connected  atomic.Bool
}

// NewConnector wires a connector around client.
func NewConnector(client *slack.Client, d Dispatcher, e Executor, log logger.Logger, debug bool) (*Connector, error) {
	if client == nil {
		return nil, errors.New("slack client is required")
	}
	if d == nil || e == nil {
		return nil, errors.New("dispatcher and executor are required")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	sm := socketmode.New(client, socketmode.OptionDebug(debug))
	return &Connector{
		client:     client,
		socketMode: sm,
		acker:      sm,
		dispatcher: d,
		executor:   e,
		logger:     log.WithFields(logger.StringField("connector", "slack")),
	}, nil
}

// Start opens the socket and blocks until ctx is cancelled or the
// connection fails for good.
func (c *Connector) Start(ctx context.Context) error {
	c.logger.Info("Starting Slack Socket Mode connector")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case envelope, ok := <-c.socketMode.Events:
				if !ok {
					return
				}
				c.handleEnvelope(ctx, envelope)
			}
		}
	}()

	err := c.socketMode.RunContext(ctx)
	c.connected.Store(false)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Ready reports whether the socket is connected.
func (c *Connector) Ready() bool {
	return c.connected.Load()
}

// ProbeSocket fails while the socket is down.
func (c *Connector) ProbeSocket(context.Context) error {
	if !c.Ready() {
		return errors.New("slack socket not connected")
	}
	return nil
}

// ProbeAuth checks the bot token with auth.test.
func (c *Connector) ProbeAuth(ctx context.Context) error {
	_, err := c.client.AuthTestContext(ctx)
	return err
}

func (c *Connector) ack(envelope socketmode.Event, payload ...interface{}) {
	if envelope.Request != nil {
		c.acker.Ack(*envelope.Request, payload...)
	}
}

func (c *Connector) handleEnvelope(ctx context.Context, envelope socketmode.Event) {
	switch envelope.Type {
	case socketmode.EventTypeConnecting:
		c.logger.Info("Connecting to Slack with Socket Mode")

	case socketmode.EventTypeConnected:
		c.connected.Store(true)
		c.logger.Info("Connected to Slack with Socket Mode")

	case socketmode.EventTypeConnectionError, socketmode.EventTypeDisconnect:
		c.connected.Store(false)
		c.logger.Warn("Slack connection lost",
			logger.StringField("event", string(envelope.Type)),
			logger.StringField("data", fmt.Sprintf("%v", envelope.Data)),
		)

	case socketmode.EventTypeInvalidAuth:
		c.connected.Store(false)
		c.logger.Error("Slack rejected the app token")

	case socketmode.EventTypeHello:

	case socketmode.EventTypeEventsAPI:
		c.ack(envelope)
		event, ok := envelope.Data.(slackevents.EventsAPIEvent)
		if !ok {
			c.logger.Debug("Ignored events api payload", logger.StringField("type", fmt.Sprintf("%T", envelope.Data)))
			return
		}
		c.handleEvent(ctx, event)

	case socketmode.EventTypeSlashCommand:
		cmd, _ := envelope.Data.(slack.SlashCommand)
		c.logger.Info("Slash command received",
			logger.CommandField(cmd.Command),
			logger.UserField(cmd.UserID),
		)
		c.ack(envelope, map[string]interface{}{"text": SlashCommandHint})

	case socketmode.EventTypeInteractive:
		c.ack(envelope)

	default:
		c.logger.Debug("Unsupported event type received", logger.StringField("type", string(envelope.Type)))
	}
}

func (c *Connector) handleEvent(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}

	// app_mention events are skipped: the same text also arrives as a message event
	ev, isMessage := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !isMessage {
		return
	}
	msg, ok := FromMessageEvent(ev)
	if !ok {
		return
	}
	defer c.recoverMessage(msg)

	ctx, _ = logger.EnsureCorrelationID(ctx)
	log := logger.FromContext(ctx, c.logger)

	actions := c.dispatcher.Handle(ctx, msg)
	if len(actions) == 0 {
		return
	}
	report := c.executor.Execute(ctx, msg, actions)
	log.Info("Message handled",
		logger.UserField(msg.SenderID),
		logger.ChannelField(msg.ChannelID),
		logger.IntField("actions", report.Executed),
		logger.IntField("failed", report.Failed),
	)
}

// recoverMessage logs a panic raised while handling msg so the event loop
// keeps running.
func (c *Connector) recoverMessage(msg dispatch.Message) {
	r := recover()
	if r == nil {
		return
	}
	c.logger.Error("Panic while handling message",
		logger.StringField("panic_error", fmt.Sprintf("%v", r)),
		logger.UserField(msg.SenderID),
		logger.ChannelField(msg.ChannelID),
		logger.StringField("stack_trace", string(debug.Stack())),
	)
}

// ignoredSubTypes never carry a fresh command.
var ignoredSubTypes = map[string]bool{
	"message_changed":   true,
	"message_deleted":   true,
	"message_replied":   true,
	"channel_join":      true,
	"channel_leave":     true,
	"file_share_delete": true,
}

// FromMessageEvent converts a message event. ok is false for edits,
// deletions and other housekeeping subtypes.
func FromMessageEvent(ev *slackevents.MessageEvent) (dispatch.Message, bool) {
	if ev == nil || ignoredSubTypes[ev.SubType] {
		return dispatch.Message{}, false
	}
	sender := ev.User
	if sender == "" {
		sender = ev.BotID
	}
	return dispatch.Message{
		SenderID:    sender,
		Text:        ev.Text,
		ChannelID:   ev.Channel,
		ChannelType: ev.ChannelType,
		BotOrigin:   ev.BotID != "",
		SubType:     ev.SubType,
	}, true
}
