// Package mediastore provides read-only access to the bot's media library:
// command tables, images, audio clips and meme folders. Paths are
// slash-separated and relative to the store root regardless of backend.
package mediastore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a file does not exist in the store.
	ErrNotFound = errors.New("media not found")
	// ErrUnsafePath is returned for paths that would escape the store root.
	ErrUnsafePath = errors.New("path escapes media root")
)

// FileProvider is the read side of a storage backend.
type FileProvider interface {
	// Read returns the whole file. Missing files wrap ErrNotFound.
	Read(ctx context.Context, name string) ([]byte, error)

	// Exists reports whether a file exists.
	Exists(ctx context.Context, name string) (bool, error)

	// List returns every file below dir, recursively, as store-relative
	// paths. A dir with no files yields an empty slice.
	List(ctx context.Context, dir string) ([]string, error)
}

// Syncer is implemented by backends that can refresh from an upstream source.
type Syncer interface {
	Sync(ctx context.Context) error
}

// SafeJoin joins rel onto root and rejects absolute paths and any path
// that climbs out of root.
func SafeJoin(root, rel string) (string, error) {
	cleaned := path.Clean(filepath.ToSlash(rel))
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, rel)
	}
	return path.Join(root, cleaned), nil
}

// IsDir reports whether dir holds at least one file.
func IsDir(ctx context.Context, p FileProvider, dir string) (bool, error) {
	files, err := p.List(ctx, dir)
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

// ListDir returns the immediate children of dir, sorted. Subdirectories
// carry a trailing slash.
func ListDir(ctx context.Context, p FileProvider, dir string) ([]string, error) {
	files, err := p.List(ctx, dir)
	if err != nil {
		return nil, err
	}

	base := strings.Trim(path.Clean(dir), "/")
	if base == "." {
		base = ""
	}

	seen := make(map[string]struct{})
	var entries []string
	for _, f := range files {
		rel := strings.TrimPrefix(f, base)
		rel = strings.TrimPrefix(rel, "/")
		if rel == "" {
			continue
		}
		name, _, nested := strings.Cut(rel, "/")
		if nested {
			name += "/"
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		entries = append(entries, name)
	}
	sort.Strings(entries)
	return entries, nil
}

// LocalFileProvider reads from a directory on disk.
type LocalFileProvider struct {
	baseDir  string
	skipDirs map[string]bool
}

// NewLocalFileProvider creates a provider rooted at baseDir.
func NewLocalFileProvider(baseDir string) *LocalFileProvider {
	return &LocalFileProvider{baseDir: baseDir}
}

func (p *LocalFileProvider) resolve(name string) (string, error) {
	rel, err := SafeJoin(".", name)
	if err != nil {
		return "", err
	}
	return filepath.Join(p.baseDir, filepath.FromSlash(rel)), nil
}

// Read reads a file below the base directory.
func (p *LocalFileProvider) Read(_ context.Context, name string) ([]byte, error) {
	full, err := p.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full) //nolint:gosec // G304: resolved below baseDir
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// Exists reports whether a regular file exists.
func (p *LocalFileProvider) Exists(_ context.Context, name string) (bool, error) {
	full, err := p.resolve(name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// List walks dir and returns the files below it.
func (p *LocalFileProvider) List(_ context.Context, dir string) ([]string, error) {
	root, err := p.resolve(dir)
	if err != nil {
		return nil, err
	}

	result := []string{}
	err = filepath.WalkDir(root, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if full != root && p.skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if full == root {
			// dir names a file, not a directory
			return nil
		}
		rel, err := filepath.Rel(p.baseDir, full)
		if err != nil {
			return err
		}
		result = append(result, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(result)
	return result, nil
}

// Prefixed scopes every path of an underlying provider below a prefix.
type Prefixed struct {
	provider FileProvider
	prefix   string
}

// NewPrefixed wraps provider under prefix.
func NewPrefixed(provider FileProvider, prefix string) *Prefixed {
	return &Prefixed{provider: provider, prefix: strings.Trim(prefix, "/")}
}

func (p *Prefixed) full(name string) (string, error) {
	if p.prefix == "" {
		return name, nil
	}
	return SafeJoin(p.prefix, name)
}

func (p *Prefixed) Read(ctx context.Context, name string) ([]byte, error) {
	full, err := p.full(name)
	if err != nil {
		return nil, err
	}
	return p.provider.Read(ctx, full)
}

func (p *Prefixed) Exists(ctx context.Context, name string) (bool, error) {
	full, err := p.full(name)
	if err != nil {
		return false, err
	}
	return p.provider.Exists(ctx, full)
}

// List strips the prefix from returned paths.
func (p *Prefixed) List(ctx context.Context, dir string) ([]string, error) {
	full, err := p.full(dir)
	if err != nil {
		return nil, err
	}
	files, err := p.provider.List(ctx, full)
	if err != nil {
		return nil, err
	}
	if p.prefix == "" {
		return files, nil
	}
	result := make([]string, 0, len(files))
	for _, f := range files {
		if rel, ok := strings.CutPrefix(f, p.prefix+"/"); ok {
			result = append(result, rel)
		}
	}
	return result, nil
}

// Sync forwards to the wrapped provider when it supports syncing.
func (p *Prefixed) Sync(ctx context.Context) error {
	return Sync(ctx, p.provider)
}

// Sync refreshes p from upstream if the backend supports it.
func Sync(ctx context.Context, p FileProvider) error {
	if s, ok := p.(Syncer); ok {
		return s.Sync(ctx)
	}
	return nil
}
