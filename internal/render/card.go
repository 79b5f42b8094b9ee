package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lewisedginton/milordbot/internal/svgtext"
	"github.com/lewisedginton/milordbot/pkg/logger"
	"github.com/lewisedginton/milordbot/pkg/metrics"
)

// DefaultOutput is the rewritten SVG name when none is given.
const DefaultOutput = "modifiedImg.svg"

// CardOptions controls a card render.
type CardOptions struct {
	Wrap svgtext.Options
	// Width and Height override the size derived from the template.
	Width  int
	Height int

	Logger  logger.Logger
	Metrics *metrics.Metrics
}

// Artifact names the files a card render produced.
type Artifact struct {
	SVGPath  string
	PNGPath  string
	Size     svgtext.Size
	Warnings []string
}

// PNGPath derives the PNG name written next to an SVG.
func PNGPath(svgPath string) string {
	ext := filepath.Ext(svgPath)
	if strings.EqualFold(ext, ".svg") {
		return strings.TrimSuffix(svgPath, ext) + ".png"
	}
	return svgPath + ".png"
}

// Card rewrites the captions of the template at in, saves the result to
// out and renders it to the PNG beside out.
func Card(ctx context.Context, r Renderer, in, top, bottom, out string, opts CardOptions) (Artifact, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	if out == "" {
		out = DefaultOutput
	}

	data, err := os.ReadFile(in) //nolint:gosec // G304: operator-supplied template path
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to read template: %w", err)
	}
	doc, err := svgtext.Parse(data)
	if err != nil {
		return Artifact{}, err
	}

	res, err := svgtext.Rewrite(doc, top, bottom, opts.Wrap)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to rewrite %s: %w", in, err)
	}
	for _, w := range res.Warnings {
		log.Warn("Card rewrite warning", logger.PathField(in), logger.StringField("warning", w))
	}

	if err := doc.WriteToFile(out); err != nil {
		return Artifact{}, fmt.Errorf("failed to write %s: %w", out, err)
	}

	size := svgtext.Dimensions(doc)
	if opts.Width > 0 {
		size.Width = opts.Width
	}
	if opts.Height > 0 {
		size.Height = opts.Height
	}

	art := Artifact{SVGPath: out, PNGPath: PNGPath(out), Size: size, Warnings: res.Warnings}
	start := time.Now()
	if err := r.Render(ctx, art.SVGPath, art.PNGPath, size); err != nil {
		return art, err
	}
	opts.Metrics.ObserveRender(time.Since(start))

	log.Info("Card rendered",
		logger.StringField("svg", art.SVGPath),
		logger.StringField("png", art.PNGPath),
		logger.StringField("size", size.String()),
		logger.IntField("top_lines", res.TopLines),
		logger.IntField("bottom_lines", res.BottomLines),
	)
	return art, nil
}
