// Package ports defines the interfaces (contracts) that adapters must implement.
// These are the boundaries of the hexagonal architecture. Domain logic depends
// only on these interfaces, never on concrete implementations.
package ports

import "context"

// KnowledgeStore is a read-only, name-addressed source of catalog entries.
// Entries are grouped into catalogs ("operations", "flows", ...); each entry
// is raw structured content (JSON). Implementations may be slow (disk,
// network) — callers pass a context and the store must honor cancellation.
//
// Entries never change through this interface. Stores that are backed by
// mutable media (filesystem) signal changes out of band (see adapters/watch).
type KnowledgeStore interface {
	// ListEntryNames returns every entry name in the catalog, sorted.
	// A catalog the store does not carry returns ErrNotFound.
	ListEntryNames(ctx context.Context, catalog string) ([]string, error)

	// ReadEntry returns the raw content of one entry.
	// A missing entry returns ErrNotFound; a read failure returns
	// an error wrapping ErrStoreUnavailable.
	ReadEntry(ctx context.Context, catalog, name string) ([]byte, error)
}
