package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/milordbot/internal/mediastore"
)

func TestParseCommandTable_Flat(t *testing.T) {
	table, err := ParseCommandTable([]byte(`{"--hi": "hello", "--bye": "later"}`), "--")
	require.NoError(t, err)

	reply, ok := table.Lookup("--hi")
	assert.True(t, ok)
	assert.Equal(t, "hello", reply)

	_, ok = table.Lookup("--nope")
	assert.False(t, ok)
	assert.Equal(t, []string{"--hi", "--bye"}, table.Tokens())
	assert.Equal(t, 2, table.Len())
}

func TestParseCommandTable_FirstCategoryWins(t *testing.T) {
	data := `{"zeta": {"--hi": "from zeta", "--z": "z"}, "alpha": {"--hi": "from alpha", "--a": "a"}}`
	table, err := ParseCommandTable([]byte(data), "--")
	require.NoError(t, err)

	reply, ok := table.Lookup("--hi")
	require.True(t, ok)
	assert.Equal(t, "from zeta", reply, "file order, not alphabetical order, decides")

	cats := table.Categories()
	require.Len(t, cats, 2)
	assert.Equal(t, "zeta", cats[0].Name)
	assert.Equal(t, []string{"--hi", "--z", "--a"}, table.Tokens())
}

func TestParseCommandTable_Mixed(t *testing.T) {
	data := `{"--top": "first", "group": {"--inner": "second", "--late": "nested"}, "--late": "flat"}`
	table, err := ParseCommandTable([]byte(data), "--")
	require.NoError(t, err)

	cats := table.Categories()
	require.Len(t, cats, 3)
	assert.Equal(t, "", cats[0].Name)
	assert.Equal(t, "group", cats[1].Name)
	assert.Equal(t, "", cats[2].Name)

	reply, _ := table.Lookup("--late")
	assert.Equal(t, "nested", reply)
}

func TestParseCommandTable_JSONEscapes(t *testing.T) {
	longKey := "--" + strings.Repeat("k", 1100)
	data := `{
	"--url": "see https:\/\/example.com\/a",
	"--uni": "caf\u00e9 \"quoted\"",
	"` + longKey + `": "long"
}`
	table, err := ParseCommandTable([]byte(data), "--")
	require.NoError(t, err)

	reply, ok := table.Lookup("--url")
	require.True(t, ok)
	assert.Equal(t, "see https://example.com/a", reply)

	reply, _ = table.Lookup("--uni")
	assert.Equal(t, `café "quoted"`, reply)

	reply, ok = table.Lookup(longKey)
	require.True(t, ok)
	assert.Equal(t, "long", reply)
}

func TestParseCommandTable_ErrorLine(t *testing.T) {
	data := "{\n  \"--ok\": \"fine\",\n  \"bad\": \"x\"\n}"
	_, err := ParseCommandTable([]byte(data), "--")
	require.ErrorIs(t, err, ErrInvalidTable)
	assert.Contains(t, err.Error(), "line 3")
}

func TestParseCommandTable_Invalid(t *testing.T) {
	tests := map[string]string{
		"malformed json":    `{"--hi": `,
		"top level array":   `["--hi"]`,
		"missing marker":    `{"hi": "hello"}`,
		"whitespace":        `{"--h i": "hello"}`,
		"empty reply":       `{"--hi": ""}`,
		"number reply":      `{"--hi": 3}`,
		"too deep":          `{"a": {"b": {"--hi": "x"}}}`,
		"array value":       `{"--hi": ["x"]}`,
		"empty document":    ``,
		"nested bad marker": `{"a": {"hi": "x"}}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCommandTable([]byte(data), "--")
			assert.ErrorIs(t, err, ErrInvalidTable)
		})
	}
}

func TestParseMediaIndex(t *testing.T) {
	idx, err := ParseMediaIndex([]byte(`{"--nuke": "images/nuke.gif", "cat": "images/cat.png"}`), "--")
	require.NoError(t, err)

	p, ok := idx.Path("nuke")
	assert.True(t, ok)
	assert.Equal(t, "images/nuke.gif", p)

	_, ok = idx.Path("--nuke")
	assert.False(t, ok, "keys are stored without the marker")
	assert.Equal(t, []string{"nuke", "cat"}, idx.Keys())
	assert.Equal(t, 2, idx.Len())
}

func TestParseMediaIndex_EscapedPath(t *testing.T) {
	idx, err := ParseMediaIndex([]byte(`{"horn": "audio\/horn.mp3"}`), "--")
	require.NoError(t, err)

	p, ok := idx.Path("horn")
	require.True(t, ok)
	assert.Equal(t, "audio/horn.mp3", p)
}

func TestParseMediaIndex_Invalid(t *testing.T) {
	tests := map[string]string{
		"slash in key":   `{"a/b": "x.mp3"}`,
		"space in key":   `{"air horn": "x.mp3"}`,
		"marker only":    `{"--": "x.mp3"}`,
		"empty path":     `{"horn": ""}`,
		"nested":         `{"horn": {"x": "y"}}`,
		"duplicate bare": `{"--horn": "a.mp3", "horn": "b.mp3"}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMediaIndex([]byte(data), "--")
			assert.ErrorIs(t, err, ErrInvalidTable)
		})
	}
}

func TestNilTablesAreEmpty(t *testing.T) {
	var table *CommandTable
	_, ok := table.Lookup("--hi")
	assert.False(t, ok)
	assert.Zero(t, table.Len())

	var idx *MediaIndex
	_, ok = idx.Path("nuke")
	assert.False(t, ok)
	assert.Empty(t, idx.Keys())
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(body), 0o600))
	}
	write("commands.json", `{"--hi": "hello"}`)
	write("images.json", `{"nuke": "images/nuke.gif"}`)
	write("audio.json", `{"horn": "audio/horn.mp3"}`)

	store := mediastore.NewLocalFileProvider(root)
	files := Files{Commands: "commands.json", Images: "images.json", Audio: "audio.json"}

	cat, err := Load(context.Background(), store, files, "--")
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Commands.Len())
	assert.Equal(t, []string{"nuke"}, cat.Images.Keys())
	assert.Equal(t, []string{"horn"}, cat.Audio.Keys())

	write("audio.json", `{"bad key": "x"}`)
	require.NoError(t, os.Remove(filepath.Join(root, "images.json")))

	_, err = Load(context.Background(), store, files, "--")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTable)
	assert.ErrorIs(t, err, mediastore.ErrNotFound)
}
