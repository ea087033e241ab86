// Package fsstore implements ports.KnowledgeStore over a directory tree:
// one subdirectory per catalog, one .json file per entry. The tree is
// read-only from the engine's point of view; external edits are picked up
// via cache invalidation (see adapters/watch).
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/corey/erpkb/internal/ports"
)

const entryExt = ".json"

// Store reads catalogs from root/<catalog>/<name>.json.
type Store struct {
	root string
}

// New creates a store rooted at the given directory.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// CatalogDir returns the directory backing one catalog.
func (s *Store) CatalogDir(catalog string) string {
	return filepath.Join(s.root, catalog)
}

// ListEntryNames returns the sorted entry names of a catalog.
func (s *Store) ListEntryNames(ctx context.Context, catalog string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(s.CatalogDir(catalog))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("catalog %q: %w", catalog, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("list catalog %q: %w: %v", catalog, ports.ErrStoreUnavailable, err)
	}

	var names []string
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), entryExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(de.Name(), entryExt))
	}
	sort.Strings(names)
	return names, nil
}

// ReadEntry returns the raw JSON content of one entry.
func (s *Store) ReadEntry(ctx context.Context, catalog, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(s.CatalogDir(catalog), name+entryExt))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("entry %s/%s: %w", catalog, name, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read entry %s/%s: %w: %v", catalog, name, ports.ErrStoreUnavailable, err)
	}
	return raw, nil
}
