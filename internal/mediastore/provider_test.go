package mediastore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
		require.NoError(t, os.WriteFile(full, []byte(body), 0o600))
	}
}

func TestSafeJoin(t *testing.T) {
	tests := []struct {
		root, rel, want string
		unsafe          bool
	}{
		{root: "memes", rel: "cats", want: "memes/cats"},
		{root: "memes", rel: "", want: "memes"},
		{root: ".", rel: "a/./b/../c", want: "a/c"},
		{root: "memes", rel: "../secrets", unsafe: true},
		{root: "memes", rel: "a/../../b", unsafe: true},
		{root: "memes", rel: "/etc/passwd", unsafe: true},
		{root: "memes", rel: "..", unsafe: true},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			got, err := SafeJoin(tt.root, tt.rel)
			if tt.unsafe {
				assert.ErrorIs(t, err, ErrUnsafePath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalFileProvider(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"commands.json":      `{"--hi":"hello"}`,
		"memes/a.png":        "a",
		"memes/cats/b.png":   "b",
		"memes/cats/c.png":   "c",
		"images/nuke.gif":    "boom",
		"memes/dogs/x/y.jpg": "y",
	})
	p := NewLocalFileProvider(root)
	ctx := context.Background()

	t.Run("read", func(t *testing.T) {
		data, err := p.Read(ctx, "images/nuke.gif")
		require.NoError(t, err)
		assert.Equal(t, "boom", string(data))
	})

	t.Run("read missing wraps ErrNotFound", func(t *testing.T) {
		_, err := p.Read(ctx, "images/missing.gif")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("read escaping root is rejected", func(t *testing.T) {
		_, err := p.Read(ctx, "../outside")
		assert.ErrorIs(t, err, ErrUnsafePath)
	})

	t.Run("exists", func(t *testing.T) {
		ok, err := p.Exists(ctx, "commands.json")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = p.Exists(ctx, "memes")
		require.NoError(t, err)
		assert.False(t, ok, "directories are not files")

		ok, err = p.Exists(ctx, "nope.json")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("list is recursive and root-relative", func(t *testing.T) {
		files, err := p.List(ctx, "memes/cats")
		require.NoError(t, err)
		assert.Equal(t, []string{"memes/cats/b.png", "memes/cats/c.png"}, files)
	})

	t.Run("list of a file or missing dir is empty", func(t *testing.T) {
		files, err := p.List(ctx, "memes/a.png")
		require.NoError(t, err)
		assert.Empty(t, files)

		files, err = p.List(ctx, "memes/doesnotexist")
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("is dir", func(t *testing.T) {
		ok, err := IsDir(ctx, p, "memes/cats")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = IsDir(ctx, p, "memes/a.png")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("list dir returns immediate children", func(t *testing.T) {
		entries, err := ListDir(ctx, p, "memes")
		require.NoError(t, err)
		assert.Equal(t, []string{"a.png", "cats/", "dogs/"}, entries)

		entries, err = ListDir(ctx, p, ".")
		require.NoError(t, err)
		assert.Equal(t, []string{"commands.json", "images/", "memes/"}, entries)
	})
}

func TestPrefixed(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"bot/commands.json":   "{}",
		"bot/memes/a.png":     "a",
		"other/commands.json": "{}",
	})
	p := NewPrefixed(NewLocalFileProvider(root), "/bot/")
	ctx := context.Background()

	data, err := p.Read(ctx, "commands.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	files, err := p.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"commands.json", "memes/a.png"}, files)

	_, err = p.Read(ctx, "../other/commands.json")
	assert.ErrorIs(t, err, ErrUnsafePath)

	assert.NoError(t, p.Sync(ctx))
}

func TestNewLocalDefault(t *testing.T) {
	p, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.IsType(t, &LocalFileProvider{}, p)

	p, err = New(context.Background(), Config{Backend: BackendLocal, LocalDir: t.TempDir(), Prefix: "media"})
	require.NoError(t, err)
	assert.IsType(t, &Prefixed{}, p)

	_, err = New(context.Background(), Config{Backend: "ftp"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Backend: BackendS3})
	assert.Error(t, err)
}
