// Package render rasterizes SVG meme cards to PNG.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/lewisedginton/milordbot/internal/svgtext"
	"github.com/lewisedginton/milordbot/pkg/logger"
)

const (
	DefaultInkscapePath = "inkscape"
	DefaultTimeout      = 60 * time.Second
)

// Renderer turns an SVG file into a PNG of the given size.
type Renderer interface {
	Render(ctx context.Context, svgPath, pngPath string, size svgtext.Size) error
}

// RenderError reports a failed rasterizer run.
type RenderError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *RenderError) Error() string {
	msg := fmt.Sprintf("render with %s failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *RenderError) Unwrap() error { return e.Err }

// Inkscape shells out to the Inkscape command line.
type Inkscape struct {
	Path    string
	Timeout time.Duration
	Logger  logger.Logger
}

// NewInkscape returns an Inkscape renderer. An empty path falls back to
// "inkscape" on PATH and a zero timeout to DefaultTimeout.
func NewInkscape(path string, timeout time.Duration, log logger.Logger) *Inkscape {
	if path == "" {
		path = DefaultInkscapePath
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Inkscape{Path: path, Timeout: timeout, Logger: log}
}

// Args returns the command line arguments for one render.
func (r *Inkscape) Args(svgPath, pngPath string, size svgtext.Size) []string {
	return []string{
		"--export-filename", pngPath,
		"--export-width", strconv.Itoa(size.Width),
		"--export-height", strconv.Itoa(size.Height),
		svgPath,
	}
}

// Render runs Inkscape and waits for it, killing it after the timeout.
func (r *Inkscape) Render(ctx context.Context, svgPath, pngPath string, size svgtext.Size) error {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	args := r.Args(svgPath, pngPath, size)
	cmd := exec.CommandContext(ctx, r.Path, args...) //nolint:gosec // G204: operator-configured binary
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	r.Logger.Debug("Running renderer",
		logger.StringField("command", r.Path),
		logger.StringsField("args", args),
	)

	err := cmd.Run()
	if err == nil {
		return checkOutput(pngPath)
	}

	rerr := &RenderError{Command: r.Path, Output: out.String(), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		rerr.ExitCode = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		rerr.Err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return rerr
}

// checkOutput catches renderers that exit zero without writing the PNG.
func checkOutput(pngPath string) error {
	info, err := os.Stat(pngPath)
	if err != nil {
		return fmt.Errorf("renderer produced no output: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("renderer produced an empty file: %s", pngPath)
	}
	return nil
}
