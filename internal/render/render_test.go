package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/milordbot/internal/svgtext"
	"github.com/lewisedginton/milordbot/pkg/metrics"
)

const template = `<svg xmlns="http://www.w3.org/2000/svg" width="640px" height="480px">
  <text x="320" y="40" font-size="20"><tspan>TOP</tspan></text>
  <text x="320" y="460" font-size="20"><tspan>BOTTOM</tspan></text>
</svg>`

type fakeRenderer struct {
	calls []svgtext.Size
	svg   string
	png   string
	err   error
}

func (f *fakeRenderer) Render(_ context.Context, svgPath, pngPath string, size svgtext.Size) error {
	f.calls = append(f.calls, size)
	f.svg, f.png = svgPath, pngPath
	return f.err
}

func writeTemplate(t *testing.T, body string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "template.svg")
	require.NoError(t, os.WriteFile(in, []byte(body), 0o600))
	return dir, in
}

func TestPNGPath(t *testing.T) {
	assert.Equal(t, "out/modifiedImg.png", PNGPath("out/modifiedImg.svg"))
	assert.Equal(t, "CARD.png", PNGPath("CARD.SVG"))
	assert.Equal(t, "card.png", PNGPath("card"))
}

func TestCard(t *testing.T) {
	dir, in := writeTemplate(t, template)
	out := filepath.Join(dir, "modifiedImg.svg")
	r := &fakeRenderer{}
	m := metrics.NewMetrics()

	art, err := Card(context.Background(), r, in, "top caption", "bottom caption", out, CardOptions{
		Wrap:    svgtext.DefaultOptions(),
		Metrics: m,
	})
	require.NoError(t, err)

	assert.Equal(t, out, art.SVGPath)
	assert.Equal(t, filepath.Join(dir, "modifiedImg.png"), art.PNGPath)
	assert.Equal(t, svgtext.Size{Width: 640, Height: 480}, art.Size)
	assert.Empty(t, art.Warnings)
	assert.Equal(t, []svgtext.Size{{Width: 640, Height: 480}}, r.calls)
	assert.Equal(t, art.PNGPath, r.png)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(written), "top caption")
	assert.Contains(t, string(written), "bottom caption")

	assert.Equal(t, 1, testutil.CollectAndCount(m.RenderDuration))
}

func TestCard_SizeOverrideAndWarnings(t *testing.T) {
	dir, in := writeTemplate(t, `<svg viewBox="0 0 100 50"><text y="5">ONLY</text></svg>`)
	r := &fakeRenderer{}

	art, err := Card(context.Background(), r, in, "top", "bottom", filepath.Join(dir, "x.svg"), CardOptions{Width: 300})
	require.NoError(t, err)
	assert.Equal(t, svgtext.Size{Width: 300, Height: 50}, art.Size)
	require.Len(t, art.Warnings, 1)
}

func TestCard_RenderFailure(t *testing.T) {
	dir, in := writeTemplate(t, template)
	boom := &RenderError{Command: "inkscape", ExitCode: 1, Output: "bad svg"}
	r := &fakeRenderer{err: boom}

	art, err := Card(context.Background(), r, in, "a", "b", filepath.Join(dir, "x.svg"), CardOptions{})
	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 1, rerr.ExitCode)
	assert.FileExists(t, art.SVGPath, "the rewritten svg is kept for inspection")
}

func TestCard_MissingTemplate(t *testing.T) {
	_, err := Card(context.Background(), &fakeRenderer{}, filepath.Join(t.TempDir(), "none.svg"), "a", "b", "", CardOptions{})
	assert.Error(t, err)
}

func TestInkscapeArgs(t *testing.T) {
	r := NewInkscape("", 0, nil)
	assert.Equal(t, DefaultInkscapePath, r.Path)
	assert.Equal(t, DefaultTimeout, r.Timeout)
	assert.Equal(t, []string{
		"--export-filename", "out.png",
		"--export-width", "800",
		"--export-height", "600",
		"in.svg",
	}, r.Args("in.svg", "out.png", svgtext.Size{Width: 800, Height: 600}))
}

func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-inkscape")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o700)) //nolint:gosec // test executable
	return path
}

func TestInkscapeRender(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "out.png")

	t.Run("success writes png", func(t *testing.T) {
		// $2 is the --export-filename value
		bin := fakeBinary(t, `printf png > "$2"`+"\n")
		err := NewInkscape(bin, time.Second, nil).Render(context.Background(), "in.svg", png, svgtext.Size{Width: 1, Height: 1})
		require.NoError(t, err)
		assert.FileExists(t, png)
	})

	t.Run("non-zero exit", func(t *testing.T) {
		bin := fakeBinary(t, "echo 'cannot open in.svg' >&2\nexit 3\n")
		err := NewInkscape(bin, time.Second, nil).Render(context.Background(), "in.svg", png, svgtext.Size{Width: 1, Height: 1})
		var rerr *RenderError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, 3, rerr.ExitCode)
		assert.Contains(t, rerr.Error(), "cannot open in.svg")
	})

	t.Run("no output", func(t *testing.T) {
		bin := fakeBinary(t, "exit 0\n")
		err := NewInkscape(bin, time.Second, nil).Render(context.Background(), "in.svg", filepath.Join(dir, "missing.png"), svgtext.Size{Width: 1, Height: 1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no output")
	})

	t.Run("timeout", func(t *testing.T) {
		bin := fakeBinary(t, "exec sleep 5\n")
		err := NewInkscape(bin, 50*time.Millisecond, nil).Render(context.Background(), "in.svg", png, svgtext.Size{Width: 1, Height: 1})
		var rerr *RenderError
		require.ErrorAs(t, err, &rerr)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}
