package dispatch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/milordbot/internal/catalog"
	"github.com/lewisedginton/milordbot/internal/mediastore"
	"github.com/lewisedginton/milordbot/pkg/logger"
	"github.com/lewisedginton/milordbot/pkg/metrics"
)

const owner = "U0OWNER"

type fixture struct {
	cfg  Config
	logs *bytes.Buffer
	m    *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()
	for _, name := range []string{"memes/a.png", "memes/cats/b.png", "docs/readme.txt"} {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0o600))
	}

	commands, err := catalog.ParseCommandTable([]byte(
		`{"greet": {"--hi": "Hello, MiLord", "--dup": "first"}, "other": {"--dup": "second"}, "--bye": "Farewell"}`), "--")
	require.NoError(t, err)
	images, err := catalog.ParseMediaIndex([]byte(`{"--nuke": "images/nuke.gif"}`), "--")
	require.NoError(t, err)
	audio, err := catalog.ParseMediaIndex([]byte(`{"horn": "audio/horn.mp3", "bell": "audio/bell.mp3"}`), "--")
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	m := metrics.NewMetrics()
	return &fixture{
		cfg: Config{
			AuthorizedUsers: NewUserSet(owner, "U0FRIEND"),
			Commands:        commands,
			Images:          images,
			Audio:           audio,
			Store:           mediastore.NewLocalFileProvider(root),
			Logger:          logger.NewLogger(logger.Config{Level: logger.DebugLevel, Output: logs}),
			Metrics:         m,
		},
		logs: logs,
		m:    m,
	}
}

func (f *fixture) dispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d, err := New(f.cfg)
	require.NoError(t, err)
	return d
}

func msg(text string) Message {
	return Message{SenderID: owner, Text: text, ChannelID: "C0GENERAL"}
}

func TestNew_Validation(t *testing.T) {
	t.Run("missing nuke image", func(t *testing.T) {
		f := newFixture(t)
		f.cfg.NukeImageKey = "boom"
		_, err := New(f.cfg)
		assert.ErrorIs(t, err, ErrMissingNukeImage)
	})

	t.Run("no users and no store", func(t *testing.T) {
		f := newFixture(t)
		f.cfg.AuthorizedUsers = NewUserSet(" ", "")
		f.cfg.Store = nil
		_, err := New(f.cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "authorized user")
		assert.Contains(t, err.Error(), "media store")
	})
}

func TestRuleOrder(t *testing.T) {
	d := newFixture(t).dispatcher(t)
	assert.Equal(t, []string{
		"delete_history", "list_commands", "command_lookup", "list_directory",
		"random_meme", "list_audio", "post_audio", "no_action",
	}, d.Rules())
}

func TestHandle_OriginFiltering(t *testing.T) {
	d := newFixture(t).dispatcher(t)
	ctx := context.Background()

	assert.Empty(t, d.Handle(ctx, msg("")))
	assert.Empty(t, d.Handle(ctx, msg("just chatting")))
	assert.Empty(t, d.Handle(ctx, msg("well--ok")))
	assert.Empty(t, d.Handle(ctx, msg("wait -- what")))
	assert.Empty(t, d.Handle(ctx, msg("--")))

	bot := msg("--hi")
	bot.BotOrigin = true
	assert.Empty(t, d.Handle(ctx, bot))

	sub := msg("--hi")
	sub.SubType = SubTypeBotMessage
	assert.Empty(t, d.Handle(ctx, sub))

	inline := msg("--hi x--override")
	inline.BotOrigin = true
	assert.Empty(t, d.Handle(ctx, inline))

	override := msg("--hi --override")
	override.BotOrigin = true
	assert.Equal(t, []Action{Reply{Text: "Hello, MiLord"}}, d.Handle(ctx, override))
}

func TestHandle_UnauthorizedIsRejectOnly(t *testing.T) {
	f := newFixture(t)
	d := f.dispatcher(t)

	for _, text := range []string{"--del", "--hi", "--meme", "--say/horn", "--list/docs", "--unknown"} {
		m := msg(text)
		m.SenderID = "U0STRANGER"
		assert.Equal(t, []Action{Reject{Text: DefaultDenialText}}, d.Handle(context.Background(), m), text)
	}

	assert.Equal(t, float64(6), testutil.ToFloat64(f.m.RejectionsCounter))
	assert.Equal(t, float64(6), testutil.ToFloat64(f.m.ActionsCounter.WithLabelValues("reject")))
	assert.Contains(t, f.logs.String(), "U0STRANGER")
	assert.Contains(t, f.logs.String(), owner)
}

func TestHandle_OverrideDoesNotBypassAuthorization(t *testing.T) {
	d := newFixture(t).dispatcher(t)
	m := Message{SenderID: "B0OTHERBOT", Text: "--del --override", ChannelID: "C1", BotOrigin: true}
	assert.Equal(t, []Action{Reject{Text: DefaultDenialText}}, d.Handle(context.Background(), m))
}

func TestHandle_Routing(t *testing.T) {
	d := newFixture(t).dispatcher(t)

	tests := []struct {
		text string
		want []Action
	}{
		{"--del", []Action{
			DeleteHistory{Channel: "C0GENERAL"},
			PostMedia{Kind: MediaImage, Key: "nuke", Path: "images/nuke.gif"},
		}},
		{"hello --del now", []Action{
			DeleteHistory{Channel: "C0GENERAL"},
			PostMedia{Kind: MediaImage, Key: "nuke", Path: "images/nuke.gif"},
		}},
		{"--comL", []Action{ListCommands{Catalog: CatalogCommands, Entries: []string{"--hi", "--dup", "--bye"}}}},
		{"--list", []Action{ListCommands{Catalog: CatalogCommands, Entries: []string{"--hi", "--dup", "--bye"}}}},
		{"--hi", []Action{Reply{Text: "Hello, MiLord"}}},
		{"please --bye", []Action{Reply{Text: "Farewell"}}},
		{"--dup", []Action{Reply{Text: "first"}}},
		{"--list/docs", []Action{ListDirectory{Path: "docs"}}},
		{"--list/../etc", []Action{Reply{Text: DefaultNoActionText}}},
		{"--meme", []Action{RandomMedia{Dir: "memes"}}},
		{"--meme/cats", []Action{RandomMedia{Dir: "memes/cats"}}},
		{"--meme/doesnotexist", []Action{RandomMedia{Dir: "memes"}}},
		{"--meme/a.png", []Action{RandomMedia{Dir: "memes"}}},
		{"--meme/../docs", []Action{RandomMedia{Dir: "memes"}}},
		{"--meme/", []Action{RandomMedia{Dir: "memes"}}},
		{"--sayL", []Action{ListCommands{Catalog: CatalogAudio, Entries: []string{"horn", "bell"}}}},
		{"--say/horn", []Action{PostMedia{Kind: MediaAudio, Key: "horn", Path: "audio/horn.mp3"}}},
		{"--say/airhorn", []Action{Reply{Text: "Invalid Audio Command, MiLord!"}}},
		{"--nothing", []Action{Reply{Text: DefaultNoActionText}}},
		{"--hi/there", []Action{Reply{Text: DefaultNoActionText}}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Handle(context.Background(), msg(tt.text)))
		})
	}
}

type failingStore struct{ mediastore.FileProvider }

func (failingStore) List(context.Context, string) ([]string, error) {
	return nil, errors.New("store offline")
}

func TestHandle_MemeProbeFailureFallsBack(t *testing.T) {
	f := newFixture(t)
	f.cfg.Store = failingStore{f.cfg.Store}
	d := f.dispatcher(t)

	assert.Equal(t, []Action{RandomMedia{Dir: "memes"}}, d.Handle(context.Background(), msg("--meme/cats")))
	assert.Contains(t, f.logs.String(), "store offline")
}

func TestHandle_CustomMarker(t *testing.T) {
	f := newFixture(t)
	commands, err := catalog.ParseCommandTable([]byte(`{"!hi": "hey"}`), "!")
	require.NoError(t, err)
	f.cfg.Commands = commands
	f.cfg.Marker = "!"
	f.cfg.OverrideMarker = "!override"
	d := f.dispatcher(t)

	assert.Equal(t, []Action{Reply{Text: "hey"}}, d.Handle(context.Background(), msg("!hi")))
	assert.Equal(t, DeleteHistory{Channel: "C0GENERAL"}, d.Handle(context.Background(), msg("!del"))[0])
	assert.Empty(t, d.Handle(context.Background(), msg("--hi")))
}

func TestHasToken(t *testing.T) {
	assert.True(t, HasToken("hello --del now", "--"))
	assert.True(t, HasToken("--hi", "--"))
	assert.False(t, HasToken("", "--"))
	assert.False(t, HasToken("well--ok", "--"))
	assert.False(t, HasToken("wait -- what", "--"))
	assert.True(t, HasToken("!hi", "!"))
}

func TestExtractToken(t *testing.T) {
	assert.Equal(t, "--del", ExtractToken("hello --del now", "--"))
	assert.Equal(t, "--meme/cats", ExtractToken("  --meme/cats  ", "--"))
	assert.Equal(t, "a--b", ExtractToken("a--b", "--"))
	assert.Equal(t, "--first", ExtractToken("--first --second", "--"))
}

func TestUserSet(t *testing.T) {
	s := NewUserSet("U2", " U1 ", "", "U2")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("U1"))
	assert.False(t, s.Contains(""))
	assert.Equal(t, []string{"U1", "U2"}, s.IDs())
}

func TestActionKinds(t *testing.T) {
	kinds := map[string]Action{
		"reject":         Reject{},
		"reply":          Reply{},
		"delete_history": DeleteHistory{},
		"list_commands":  ListCommands{},
		"list_directory": ListDirectory{},
		"random_media":   RandomMedia{},
		"post_media":     PostMedia{},
	}
	for want, a := range kinds {
		assert.Equal(t, want, a.Kind())
	}
}
