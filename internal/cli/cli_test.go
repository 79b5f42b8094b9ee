package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/milordbot/internal/catalog"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
}

// setupEnv points the config at a local store holding valid tables.
func setupEnv(t *testing.T, images string) string {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"commands.json":  `{"--hi": "hello", "greetings": {"--yo": "yo yourself"}}`,
		"images.json":    images,
		"audio.json":     `{"--airhorn": "audio/airhorn.mp3"}`,
		"memes/nuke.png": "png",
	})

	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SLACK_APP_TOKEN", "xapp-test")
	t.Setenv("SLACK_USER_TOKEN", "xoxp-test")
	t.Setenv("AUTHORIZED_USERS", "U1")
	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("STORAGE_LOCAL_DIR", dir)
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := NewApp("test")
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.RunContext(context.Background(), append([]string{"milordbot"}, args...))
	return out.String(), err
}

func TestCommandsList(t *testing.T) {
	setupEnv(t, `{"nuke": "memes/nuke.png"}`)

	out, err := run(t, "commands", "list")
	require.NoError(t, err)

	assert.Contains(t, out, "[general]")
	assert.Contains(t, out, "--hi")
	assert.Contains(t, out, "[greetings]")
	assert.Contains(t, out, "yo yourself")
	assert.Contains(t, out, "[images]")
	assert.Contains(t, out, "memes/nuke.png")
	assert.Contains(t, out, "airhorn")
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		setupEnv(t, `{"nuke": "memes/nuke.png"}`)
		out, err := run(t, "config", "validate")
		require.NoError(t, err)
		assert.Contains(t, out, "Configuration is valid")
	})

	t.Run("missing nuke image", func(t *testing.T) {
		setupEnv(t, `{"other": "memes/other.png"}`)
		_, err := run(t, "config", "validate")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nuke")
	})

	t.Run("malformed table", func(t *testing.T) {
		dir := setupEnv(t, `{"nuke": "memes/nuke.png"}`)
		writeFiles(t, dir, map[string]string{"commands.json": `{"--hi": `})
		_, err := run(t, "config", "validate")
		require.Error(t, err)
		assert.ErrorIs(t, err, catalog.ErrInvalidTable)
	})

	t.Run("missing credentials", func(t *testing.T) {
		setupEnv(t, `{"nuke": "memes/nuke.png"}`)
		t.Setenv("SLACK_USER_TOKEN", "")
		_, err := run(t, "config", "validate")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SLACK_USER_TOKEN")
	})
}

func TestEnvFile(t *testing.T) {
	setupEnv(t, `{"nuke": "memes/nuke.png"}`)

	_, err := run(t, "--env-file", filepath.Join(t.TempDir(), "missing.env"), "commands", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "env file")
}

func TestMemeRender(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake needs a POSIX shell")
	}
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"card.svg": `<svg xmlns="http://www.w3.org/2000/svg" width="400" height="300">` +
			`<text x="10" y="20">top</text><text x="10" y="150">middle</text><text x="10" y="280">bottom</text></svg>`,
	})
	bin := filepath.Join(dir, "fake-inkscape")
	// $2 is the --export-filename value
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\nprintf png > \"$2\"\n"), 0o700)) //nolint:gosec // test executable

	t.Setenv("SLACK_BOT_TOKEN", "")
	out := filepath.Join(dir, "out.svg")
	stdout, err := run(t, "meme", "render",
		"--in", filepath.Join(dir, "card.svg"),
		"--top", "when the build is green",
		"--bottom", "but prod is on fire",
		"--out", out,
		"--max-chars", "10",
		"--inkscape", bin,
	)
	require.NoError(t, err)

	assert.Equal(t, out+"\n"+filepath.Join(dir, "out.png")+"\n", stdout)
	svg, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(svg), "tspan")
	assert.Contains(t, string(svg), "but prod")
	assert.Contains(t, string(svg), "is on fire")
	assert.FileExists(t, filepath.Join(dir, "out.png"))
}

func TestMemeRender_RequiresInput(t *testing.T) {
	_, err := run(t, "meme", "render", "--top", "x")
	require.Error(t, err)
}
