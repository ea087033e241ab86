// Package boltstore implements ports.KnowledgeStore using bbolt (embedded
// B+ tree). One top-level bucket per catalog, one key per entry holding the
// raw JSON. A snapshot is built once with Import and read-only afterward,
// which makes a single .db file a portable, atomic knowledge distribution.
package boltstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/corey/erpkb/internal/ports"
)

// Store implements ports.KnowledgeStore backed by bbolt.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) a bbolt database at the given path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ListEntryNames returns the sorted entry names of a catalog.
func (s *Store) ListEntryNames(ctx context.Context, catalog string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(catalog))
		if b == nil {
			return fmt.Errorf("catalog %q: %w", catalog, ports.ErrNotFound)
		}
		return b.ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// ReadEntry returns the raw JSON content of one entry.
func (s *Store) ReadEntry(ctx context.Context, catalog, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(catalog))
		if b == nil {
			return fmt.Errorf("catalog %q: %w", catalog, ports.ErrNotFound)
		}
		v := b.Get([]byte(name))
		if v == nil {
			return fmt.Errorf("entry %s/%s: %w", catalog, name, ports.ErrNotFound)
		}
		raw = append([]byte(nil), v...) // bbolt values are only valid inside the tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Import copies the named catalogs from src into the database, one write
// transaction per catalog so a crash cannot leave a half-written catalog
// alongside previously committed ones.
func (s *Store) Import(ctx context.Context, src ports.KnowledgeStore, catalogs []string) error {
	for _, catalog := range catalogs {
		names, err := src.ListEntryNames(ctx, catalog)
		if err != nil {
			return fmt.Errorf("import %s: %w", catalog, err)
		}
		err = s.db.Update(func(tx *bolt.Tx) error {
			b, err := tx.CreateBucketIfNotExists([]byte(catalog))
			if err != nil {
				return err
			}
			for _, name := range names {
				raw, err := src.ReadEntry(ctx, catalog, name)
				if err != nil {
					return fmt.Errorf("read %s/%s: %w", catalog, name, err)
				}
				if err := b.Put([]byte(name), raw); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("import %s: %w", catalog, err)
		}
	}
	return nil
}
