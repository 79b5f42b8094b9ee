// Package dispatch turns an inbound chat message into the ordered list of
// actions the bot should perform for it.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/milordbot/internal/catalog"
	"github.com/lewisedginton/milordbot/internal/mediastore"
	"github.com/lewisedginton/milordbot/pkg/logger"
	"github.com/lewisedginton/milordbot/pkg/metrics"
)

// ErrMissingNukeImage is returned when the image index lacks the key posted after a purge.
var ErrMissingNukeImage = errors.New("nuke image key not in image index")

const (
	DefaultMarker           = "--"
	DefaultOverrideMarker   = "--override"
	DefaultMemeDir          = "memes"
	DefaultListRoot         = "."
	DefaultNukeImageKey     = "nuke"
	DefaultDenialText       = "You are not my liege. Command refused."
	DefaultNoActionText     = "No Action Available, MiLord!"
	DefaultInvalidAudioText = "Invalid Audio Command, MiLord!"
)

// Config is everything a Dispatcher needs. It is read once by New.
type Config struct {
	AuthorizedUsers UserSet
	Commands        *catalog.CommandTable
	Images          *catalog.MediaIndex
	Audio           *catalog.MediaIndex
	// Store is probed to decide whether a meme subdirectory exists.
	Store mediastore.FileProvider

	Marker         string
	OverrideMarker string
	MemeDir        string
	ListRoot       string
	NukeImageKey   string

	DenialText       string
	NoActionText     string
	InvalidAudioText string

	Logger  logger.Logger
	Metrics *metrics.Metrics
}

func (c *Config) setDefaults() {
	def := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	def(&c.Marker, DefaultMarker)
	def(&c.OverrideMarker, DefaultOverrideMarker)
	def(&c.MemeDir, DefaultMemeDir)
	def(&c.ListRoot, DefaultListRoot)
	def(&c.NukeImageKey, DefaultNukeImageKey)
	def(&c.DenialText, DefaultDenialText)
	def(&c.NoActionText, DefaultNoActionText)
	def(&c.InvalidAudioText, DefaultInvalidAudioText)
	if c.Logger == nil {
		c.Logger = logger.NewNopLogger()
	}
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	var result error
	if c.AuthorizedUsers.Len() == 0 {
		result = multierror.Append(result, errors.New("at least one authorized user is required"))
	}
	if c.Store == nil {
		result = multierror.Append(result, errors.New("media store is required"))
	}
	if _, ok := c.Images.Path(c.NukeImageKey); !ok {
		result = multierror.Append(result, fmt.Errorf("%w: %q", ErrMissingNukeImage, c.NukeImageKey))
	}
	return result
}

// Rule is one routing step. Rules are tried in order and the first whose
// Match returns true builds the actions.
type Rule struct {
	Name  string
	Match func(token string) bool
	Build func(ctx context.Context, msg Message, token string) []Action
}

// Dispatcher routes messages. It holds no mutable state.
type Dispatcher struct {
	cfg   Config
	rules []Rule
	log   logger.Logger
}

// New validates cfg and builds a Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dispatcher config: %w", err)
	}

	d := &Dispatcher{cfg: cfg, log: cfg.Logger}
	d.rules = d.buildRules()
	return d, nil
}

// Rules returns the routing rule names in evaluation order.
func (d *Dispatcher) Rules() []string {
	names := make([]string, len(d.rules))
	for i, r := range d.rules {
		names[i] = r.Name
	}
	return names
}

// Handle returns the actions for msg. An empty result means the message
// is not a command and must be ignored.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) []Action {
	log := logger.FromContext(ctx, d.log)

	if !HasToken(msg.Text, d.cfg.Marker) {
		return nil
	}
	if msg.FromBot() && !HasToken(msg.Text, d.cfg.OverrideMarker) {
		return nil
	}

	if !d.cfg.AuthorizedUsers.Contains(msg.SenderID) {
		log.Warn("Rejected command from unauthorized sender",
			logger.UserField(msg.SenderID),
			logger.StringsField("expected_users", d.cfg.AuthorizedUsers.IDs()),
			logger.ChannelField(msg.ChannelID),
			logger.BoolField("bot_origin", msg.FromBot()),
		)
		d.cfg.Metrics.ObserveRejection()
		return d.observe([]Action{Reject{Text: d.cfg.DenialText}})
	}

	token := ExtractToken(msg.Text, d.cfg.Marker)
	for _, rule := range d.rules {
		if !rule.Match(token) {
			continue
		}
		log.Debug("Command matched",
			logger.CommandField(token),
			logger.StringField("rule", rule.Name),
			logger.UserField(msg.SenderID),
		)
		return d.observe(rule.Build(ctx, msg, token))
	}
	// the last rule always matches
	return nil
}

func (d *Dispatcher) observe(actions []Action) []Action {
	for _, a := range actions {
		d.cfg.Metrics.ObserveAction(a.Kind())
	}
	return actions
}

// HasToken reports whether text has a whitespace-delimited field that
// starts with marker and is longer than it.
func HasToken(text, marker string) bool {
	for _, field := range strings.Fields(text) {
		if len(field) > len(marker) && strings.HasPrefix(field, marker) {
			return true
		}
	}
	return false
}

// ExtractToken returns the first whitespace-delimited run starting with
// marker, or the whole text when there is none.
func ExtractToken(text, marker string) string {
	for _, field := range strings.Fields(text) {
		if strings.HasPrefix(field, marker) {
			return field
		}
	}
	return text
}
