package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	appconfig "github.com/lewisedginton/milordbot/internal/config"
	"github.com/lewisedginton/milordbot/internal/render"
	"github.com/lewisedginton/milordbot/pkg/logger"
)

// MemeCommand returns the offline card rendering commands.
func MemeCommand() *cli.Command {
	return &cli.Command{
		Name:  "meme",
		Usage: "Meme card operations",
		Subcommands: []*cli.Command{
			{
				Name:  "render",
				Usage: "Write captions into an SVG template and render it to PNG",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Usage: "SVG template", Required: true},
					&cli.StringFlag{Name: "top", Usage: "Top caption"},
					&cli.StringFlag{Name: "bottom", Usage: "Bottom caption"},
					&cli.StringFlag{Name: "out", Value: render.DefaultOutput, Usage: "Rewritten SVG path; the PNG is written beside it"},
					&cli.IntFlag{Name: "max-chars", Usage: "Wrap width in characters, 0 disables wrapping"},
					&cli.Float64Flag{Name: "line-height", Usage: "Line spacing as a multiple of the font size"},
					&cli.IntFlag{Name: "width", Usage: "Export width in pixels, overrides the template"},
					&cli.IntFlag{Name: "height", Usage: "Export height in pixels, overrides the template"},
					&cli.StringFlag{Name: "inkscape", Usage: "Renderer binary, overrides INKSCAPE_PATH"},
				},
				Action: memeRenderAction,
			},
		},
	}
}

func memeRenderAction(c *cli.Context) error {
	log := getLogger(c)

	cfg, err := appconfig.LoadRender(c.String("config-file"))
	if err != nil {
		log.Error("Failed to load configuration", logger.ErrorField(err))
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	wrap := cfg.Render.WrapOptions()
	if c.IsSet("max-chars") {
		wrap.MaxChars = c.Int("max-chars")
	}
	if c.IsSet("line-height") {
		wrap.LineHeight = c.Float64("line-height")
	}
	bin := cfg.Render.InkscapePath
	if c.IsSet("inkscape") {
		bin = c.String("inkscape")
	}

	art, err := render.Card(c.Context,
		render.NewInkscape(bin, cfg.Render.Timeout, log),
		c.String("in"), c.String("top"), c.String("bottom"), c.String("out"),
		render.CardOptions{
			Wrap:   wrap,
			Width:  c.Int("width"),
			Height: c.Int("height"),
			Logger: log,
		})
	if err != nil {
		log.Error("Card render failed", logger.ErrorField(err))
		return err
	}

	_, _ = fmt.Fprintf(c.App.Writer, "%s\n%s\n", art.SVGPath, art.PNGPath)
	return nil
}
