// Package embedstore implements ports.KnowledgeStore over an fs.FS, with a
// small demo knowledge set compiled into the binary via go:embed. The layout
// mirrors fsstore: <catalog>/<name>.json.
package embedstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/corey/erpkb/internal/ports"
)

//go:embed knowledge
var demoFS embed.FS

const entryExt = ".json"

// Store reads catalogs from an immutable fs.FS.
type Store struct {
	fsys fs.FS
}

// NewDemo returns a store over the embedded demo knowledge set.
func NewDemo() *Store {
	sub, err := fs.Sub(demoFS, "knowledge")
	if err != nil {
		// The embedded tree is fixed at compile time; a missing root is a
		// build defect, not a runtime condition.
		panic(err)
	}
	return &Store{fsys: sub}
}

// FromFS returns a store over an arbitrary filesystem, e.g. fstest.MapFS.
func FromFS(fsys fs.FS) *Store {
	return &Store{fsys: fsys}
}

// ListEntryNames returns the sorted entry names of a catalog.
func (s *Store) ListEntryNames(ctx context.Context, catalog string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirEntries, err := fs.ReadDir(s.fsys, catalog)
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
	raw, err := fs.ReadFile(s.fsys, catalog+"/"+name+entryExt)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("entry %s/%s: %w", catalog, name, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read entry %s/%s: %w: %v", catalog, name, ports.ErrStoreUnavailable, err)
	}
	return raw, nil
}
