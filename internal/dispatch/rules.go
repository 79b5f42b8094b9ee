package dispatch

import (
	"context"
	"strings"

	"github.com/lewisedginton/milordbot/internal/mediastore"
	"github.com/lewisedginton/milordbot/pkg/logger"
)

// Catalog names used by ListCommands.
const (
	CatalogCommands = "commands"
	CatalogAudio    = "audio"
)

func (d *Dispatcher) buildRules() []Rule {
	m := d.cfg.Marker
	var (
		del      = m + "del"
		comL     = m + "comL"
		list     = m + "list"
		listPath = m + "list/"
		meme     = m + "meme"
		sayL     = m + "sayL"
		say      = m + "say/"
	)

	return []Rule{
		{
			Name:  "delete_history",
			Match: func(t string) bool { return t == del },
			Build: d.deleteHistory,
		},
		{
			Name:  "list_commands",
			Match: func(t string) bool { return t == comL || t == list },
			Build: func(context.Context, Message, string) []Action {
				return []Action{ListCommands{Catalog: CatalogCommands, Entries: d.cfg.Commands.Tokens()}}
			},
		},
		{
			Name: "command_lookup",
			Match: func(t string) bool {
				if strings.Contains(t, "/") {
					return false
				}
				_, ok := d.cfg.Commands.Lookup(t)
				return ok
			},
			Build: func(_ context.Context, _ Message, t string) []Action {
				reply, _ := d.cfg.Commands.Lookup(t)
				return []Action{Reply{Text: reply}}
			},
		},
		{
			Name:  "list_directory",
			Match: func(t string) bool { return strings.Contains(t, listPath) },
			Build: func(ctx context.Context, _ Message, t string) []Action {
				_, rel, _ := strings.Cut(t, listPath)
				return d.listDirectory(ctx, rel)
			},
		},
		{
			Name:  "random_meme",
			Match: func(t string) bool { return strings.HasPrefix(t, meme) },
			Build: func(ctx context.Context, _ Message, t string) []Action {
				return []Action{RandomMedia{Dir: d.memeDir(ctx, strings.TrimPrefix(t, meme))}}
			},
		},
		{
			Name:  "list_audio",
			Match: func(t string) bool { return t == sayL },
			Build: func(context.Context, Message, string) []Action {
				return []Action{ListCommands{Catalog: CatalogAudio, Entries: d.cfg.Audio.Keys()}}
			},
		},
		{
			Name:  "post_audio",
			Match: func(t string) bool { return strings.HasPrefix(t, say) },
			Build: func(_ context.Context, _ Message, t string) []Action {
				key := strings.TrimPrefix(t, say)
				p, ok := d.cfg.Audio.Path(key)
				if !ok {
					return []Action{Reply{Text: d.cfg.InvalidAudioText}}
				}
				return []Action{PostMedia{Kind: MediaAudio, Key: key, Path: p}}
			},
		},
		{
			Name:  "no_action",
			Match: func(string) bool { return true },
			Build: func(context.Context, Message, string) []Action {
				return []Action{Reply{Text: d.cfg.NoActionText}}
			},
		},
	}
}

func (d *Dispatcher) deleteHistory(_ context.Context, msg Message, _ string) []Action {
	// New guarantees the nuke key is indexed
	p, _ := d.cfg.Images.Path(d.cfg.NukeImageKey)
	return []Action{
		DeleteHistory{Channel: msg.ChannelID},
		PostMedia{Kind: MediaImage, Key: d.cfg.NukeImageKey, Path: p},
	}
}

func (d *Dispatcher) listDirectory(ctx context.Context, rel string) []Action {
	p, err := mediastore.SafeJoin(d.cfg.ListRoot, rel)
	if err != nil {
		logger.FromContext(ctx, d.log).Warn("Refusing directory listing outside list root",
			logger.PathField(rel),
			logger.ErrorField(err),
		)
		return []Action{Reply{Text: d.cfg.NoActionText}}
	}
	return []Action{ListDirectory{Path: p}}
}

// memeDir resolves the optional "/<subpath>" suffix of a meme token. Any
// subpath that is unsafe, missing or empty falls back to the meme root.
func (d *Dispatcher) memeDir(ctx context.Context, suffix string) string {
	root := d.cfg.MemeDir
	sub, ok := strings.CutPrefix(suffix, "/")
	if !ok || strings.Trim(sub, "/") == "" {
		return root
	}

	log := logger.FromContext(ctx, d.log).WithFields(logger.PathField(sub))
	dir, err := mediastore.SafeJoin(root, sub)
	if err != nil {
		log.Warn("Meme subpath escapes meme root, using root", logger.ErrorField(err))
		return root
	}
	isDir, err := mediastore.IsDir(ctx, d.cfg.Store, dir)
	if err != nil {
		log.Warn("Failed to probe meme directory, using root", logger.ErrorField(err))
		return root
	}
	if !isDir {
		log.Debug("Meme directory not found, using root")
		return root
	}
	return dir
}
