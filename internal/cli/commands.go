package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/milordbot/internal/catalog"
	appconfig "github.com/lewisedginton/milordbot/internal/config"
	"github.com/lewisedginton/milordbot/pkg/logger"
)

// CommandsCommand prints the loaded tables.
func CommandsCommand() *cli.Command {
	return &cli.Command{
		Name:  "commands",
		Usage: "Command table operations",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "Print the command table and media indexes",
				Action: commandsListAction,
			},
		},
	}
}

func commandsListAction(c *cli.Context) error {
	log := getLogger(c)

	cfg, err := appconfig.Load(c.String("config-file"))
	if err != nil {
		log.Error("Failed to load configuration", logger.ErrorField(err))
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	_, cat, err := loadTables(c.Context, cfg, log)
	if err != nil {
		return err
	}
	return printCatalog(c.App.Writer, cat)
}

func printCatalog(out io.Writer, cat *catalog.Catalog) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	for _, category := range cat.Commands.Categories() {
		name := category.Name
		if name == "" {
			name = "general"
		}
		_, _ = fmt.Fprintf(w, "[%s]\n", name)
		for _, e := range category.Entries {
			_, _ = fmt.Fprintf(w, "  %s\t%s\n", e.Key, e.Value)
		}
	}

	printIndex := func(title string, idx *catalog.MediaIndex) {
		_, _ = fmt.Fprintf(w, "[%s]\n", title)
		for _, key := range idx.Keys() {
			path, _ := idx.Path(key)
			_, _ = fmt.Fprintf(w, "  %s\t%s\n", key, path)
		}
	}
	printIndex("images", cat.Images)
	printIndex("audio", cat.Audio)

	return w.Flush()
}
