// Package catalog loads the bot's command table and media indexes. Tables
// are JSON files; key order from the file is kept because lookups resolve
// duplicates by file order.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/hashicorp/go-multierror"
	"github.com/tidwall/gjson"

	"github.com/lewisedginton/milordbot/internal/mediastore"
)

// ErrInvalidTable marks a table that failed to parse or validate.
var ErrInvalidTable = errors.New("invalid table")

// Entry is one key/value pair in file order.
type Entry struct {
	Key   string
	Value string
}

// Category is a named group of command entries. Flat top-level entries
// land in categories with an empty name.
type Category struct {
	Name    string
	Entries []Entry
}

// CommandTable maps command tokens to canned replies.
type CommandTable struct {
	categories []Category
}

// Lookup returns the reply for token. When several categories define the
// token the first one in file order wins.
func (t *CommandTable) Lookup(token string) (string, bool) {
	if t == nil {
		return "", false
	}
	for _, c := range t.categories {
		for _, e := range c.Entries {
			if e.Key == token {
				return e.Value, true
			}
		}
	}
	return "", false
}

// Categories returns the categories in file order.
func (t *CommandTable) Categories() []Category {
	if t == nil {
		return nil
	}
	return t.categories
}

// Tokens returns every distinct token in file order.
func (t *CommandTable) Tokens() []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var tokens []string
	for _, c := range t.categories {
		for _, e := range c.Entries {
			if _, ok := seen[e.Key]; ok {
				continue
			}
			seen[e.Key] = struct{}{}
			tokens = append(tokens, e.Key)
		}
	}
	return tokens
}

// Len returns the number of entries across all categories.
func (t *CommandTable) Len() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, c := range t.categories {
		n += len(c.Entries)
	}
	return n
}

func hasSpace(s string) bool {
	return strings.IndexFunc(s, unicode.IsSpace) >= 0
}

// document is a parsed table plus its source, kept for line numbers.
type document struct {
	src  string
	base int
	root gjson.Result
}

func parseRoot(data []byte) (document, error) {
	if !gjson.ValidBytes(data) {
		return document{}, fmt.Errorf("%w: malformed JSON", ErrInvalidTable)
	}
	src := string(data)
	root := gjson.Parse(src)
	if !root.IsObject() {
		return document{}, fmt.Errorf("%w: top level must be an object", ErrInvalidTable)
	}
	return document{src: src, base: len(src) - len(root.Raw), root: root}, nil
}

// line returns the 1-based source line of a key or value.
func (d document) line(r gjson.Result) int {
	end := min(d.base+r.Index, len(d.src))
	return 1 + strings.Count(d.src[:end], "\n")
}

func stringValue(r gjson.Result) (string, bool) {
	if r.Type != gjson.String {
		return "", false
	}
	return r.Str, true
}

func checkToken(token, marker string, line int) error {
	switch {
	case !strings.HasPrefix(token, marker):
		return fmt.Errorf("line %d: token %q does not start with %q", line, token, marker)
	case hasSpace(token):
		return fmt.Errorf("line %d: token %q contains whitespace", line, token)
	}
	return nil
}

// ParseCommandTable parses a flat, nested or mixed command table.
func ParseCommandTable(data []byte, marker string) (*CommandTable, error) {
	doc, err := parseRoot(data)
	if err != nil {
		return nil, err
	}

	var (
		result error
		table  CommandTable
		flat   *Category
	)
	doc.root.ForEach(func(key, val gjson.Result) bool {
		switch {
		case val.IsObject():
			// a later flat key starts a new unnamed category
			flat = nil
			cat := Category{Name: key.Str}
			val.ForEach(func(k, v gjson.Result) bool {
				if v.IsObject() || v.IsArray() {
					result = multierror.Append(result, fmt.Errorf("line %d: %s.%s nests deeper than one level", doc.line(v), key.Str, k.Str))
					return true
				}
				entry, err := doc.commandEntry(k, v, marker)
				if err != nil {
					result = multierror.Append(result, err)
					return true
				}
				cat.Entries = append(cat.Entries, entry)
				return true
			})
			table.categories = append(table.categories, cat)

		case val.IsArray():
			result = multierror.Append(result, fmt.Errorf("line %d: %q must map to a string or an object", doc.line(val), key.Str))

		default:
			if flat == nil {
				table.categories = append(table.categories, Category{})
				flat = &table.categories[len(table.categories)-1]
			}
			entry, err := doc.commandEntry(key, val, marker)
			if err != nil {
				result = multierror.Append(result, err)
				return true
			}
			flat.Entries = append(flat.Entries, entry)
		}
		return true
	})

	if result != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, result)
	}
	return &table, nil
}

func (d document) commandEntry(key, val gjson.Result, marker string) (Entry, error) {
	if err := checkToken(key.Str, marker, d.line(key)); err != nil {
		return Entry{}, err
	}
	reply, ok := stringValue(val)
	if !ok || reply == "" {
		return Entry{}, fmt.Errorf("line %d: %q must map to a non-empty string", d.line(val), key.Str)
	}
	return Entry{Key: key.Str, Value: reply}, nil
}

// MediaIndex maps bare media keys to store paths.
type MediaIndex struct {
	entries []Entry
	byKey   map[string]string
}

// Path returns the store path for key.
func (m *MediaIndex) Path(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	p, ok := m.byKey[key]
	return p, ok
}

// Keys returns the keys in file order.
func (m *MediaIndex) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.Key
	}
	return keys
}

// Len returns the number of indexed files.
func (m *MediaIndex) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// ParseMediaIndex parses a flat key to path object. A leading marker on a
// key is stripped.
func ParseMediaIndex(data []byte, marker string) (*MediaIndex, error) {
	doc, err := parseRoot(data)
	if err != nil {
		return nil, err
	}

	var result error
	index := &MediaIndex{byKey: make(map[string]string)}
	doc.root.ForEach(func(keyRes, val gjson.Result) bool {
		key := strings.TrimPrefix(keyRes.Str, marker)
		line := doc.line(keyRes)

		switch {
		case key == "":
			result = multierror.Append(result, fmt.Errorf("line %d: empty media key", line))
			return true
		case strings.Contains(key, "/") || hasSpace(key):
			result = multierror.Append(result, fmt.Errorf("line %d: media key %q must not contain '/' or whitespace", line, key))
			return true
		}
		if _, dup := index.byKey[key]; dup {
			result = multierror.Append(result, fmt.Errorf("line %d: duplicate media key %q", line, key))
			return true
		}
		p, ok := stringValue(val)
		if !ok || p == "" {
			result = multierror.Append(result, fmt.Errorf("line %d: media key %q must map to a non-empty path", doc.line(val), key))
			return true
		}
		index.entries = append(index.entries, Entry{Key: key, Value: p})
		index.byKey[key] = p
		return true
	})

	if result != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, result)
	}
	return index, nil
}

// Files names the table files inside the media store.
type Files struct {
	Commands string
	Images   string
	Audio    string
}

// Catalog bundles the loaded tables.
type Catalog struct {
	Commands *CommandTable
	Images   *MediaIndex
	Audio    *MediaIndex
}

// Load reads and parses all three tables from the store.
func Load(ctx context.Context, store mediastore.FileProvider, files Files, marker string) (*Catalog, error) {
	var (
		cat    Catalog
		result error
	)

	read := func(name string) []byte {
		data, err := store.Read(ctx, name)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("read %s: %w", name, err))
			return nil
		}
		return data
	}

	if data := read(files.Commands); data != nil {
		t, err := ParseCommandTable(data, marker)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", files.Commands, err))
		}
		cat.Commands = t
	}
	if data := read(files.Images); data != nil {
		idx, err := ParseMediaIndex(data, marker)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", files.Images, err))
		}
		cat.Images = idx
	}
	if data := read(files.Audio); data != nil {
		idx, err := ParseMediaIndex(data, marker)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", files.Audio, err))
		}
		cat.Audio = idx
	}

	if result != nil {
		return nil, result
	}
	return &cat, nil
}
