package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/corey/erpkb/internal/domain/cache"
	"github.com/corey/erpkb/internal/domain/match"
	"github.com/corey/erpkb/internal/ports"
)

// Cache keys. Names and references share the resolver's cache with entries;
// prefixes keep the key spaces disjoint.
const (
	keyNames       = "names"
	keyEntryPrefix = "entry:"
	keyRefPrefix   = "ref:"
)

// Resolver loads and resolves entries of one catalog. Each backend owns its
// resolvers and their cache — caches are never shared across backends.
type Resolver struct {
	store      ports.KnowledgeStore
	catalog    string
	cache      *cache.Cache
	thresholds match.Thresholds
	log        zerolog.Logger
}

// New creates a Resolver over one catalog of a knowledge store.
func New(store ports.KnowledgeStore, catalogName string, c *cache.Cache, th match.Thresholds, log zerolog.Logger) *Resolver {
	return &Resolver{
		store:      store,
		catalog:    catalogName,
		cache:      c,
		thresholds: th,
		log:        log.With().Str("catalog", catalogName).Logger(),
	}
}

// Catalog returns the catalog name this resolver serves.
func (r *Resolver) Catalog() string { return r.catalog }

// Thresholds returns the resolver's threshold table.
func (r *Resolver) Thresholds() match.Thresholds { return r.thresholds }

// Flush drops all cached state so the next call reloads from the store.
func (r *Resolver) Flush() { r.cache.Flush() }

// ListNames returns every entry name in the catalog, sorted. A catalog the
// store does not carry is an empty result, not an error — absence of
// optional knowledge must not fail a query.
func (r *Resolver) ListNames(ctx context.Context) ([]string, error) {
	v, err := r.cache.GetOrLoad(ctx, keyNames, func(ctx context.Context) (any, error) {
		names, err := r.store.ListEntryNames(ctx, r.catalog)
		if errors.Is(err, ports.ErrNotFound) {
			r.log.Info().Msg("catalog not present in store")
			return []string{}, nil
		}
		if err != nil {
			return nil, err
		}
		return names, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.catalog, err)
	}
	return v.([]string), nil
}

// Resolve maps a requested name to its catalog entry. Matching is exact
// case-insensitive first, then retried after normalization (spaces and
// hyphens to underscores, lowercased). No fuzzy fallback: a miss returns
// (nil, nil) rather than guessing the wrong entry.
func (r *Resolver) Resolve(ctx context.Context, requested string) (*Entry, error) {
	canonical, err := r.canonicalName(ctx, requested)
	if err != nil {
		return nil, err
	}
	if canonical == "" {
		r.log.Info().Str("requested", requested).Msg("no entry for requested name")
		return nil, nil
	}
	return r.loadEntry(ctx, canonical)
}

// Suggest returns fuzzy name suggestions for a requested name that failed to
// resolve. Never used for identity — callers present these as "did you mean".
func (r *Resolver) Suggest(ctx context.Context, requested string, threshold float64) ([]match.Candidate, error) {
	names, err := r.ListNames(ctx)
	if err != nil {
		return nil, err
	}
	return match.FindAllMatches(requested, names, threshold), nil
}

// FindCatalogForReference returns the first entry (by sorted name order)
// whose back-reference list contains referenceID, case-insensitively.
// Returns "" when no entry references it. Linear over the catalog —
// acceptable because catalogs are small and results are cached per ID.
func (r *Resolver) FindCatalogForReference(ctx context.Context, referenceID string) (string, error) {
	key := keyRefPrefix + strings.ToLower(referenceID)
	v, err := r.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		names, err := r.ListNames(ctx)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			entry, err := r.loadEntry(ctx, name)
			if err != nil {
				return nil, err
			}
			if entry == nil {
				continue
			}
			for _, ref := range entry.UsedBy {
				if strings.EqualFold(ref, referenceID) {
					return name, nil
				}
			}
		}
		r.log.Info().Str("reference", referenceID).Msg("no entry references id")
		return "", nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// SearchEntries returns the names of entries whose content matches keyword,
// verbatim or fuzzily at or above threshold.
func (r *Resolver) SearchEntries(ctx context.Context, keyword string, threshold float64) ([]string, error) {
	names, err := r.ListNames(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range names {
		entry, err := r.loadEntry(ctx, name)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		if SearchByKeyword(entry.Text(), keyword, threshold) {
			out = append(out, name)
		}
	}
	return out, nil
}

// SearchEntriesAll scans every entry for a set of keywords in one pass,
// returning entry name -> keywords hit. Verbatim occurrences are found by an
// Aho-Corasick automaton over all keywords; keywords the automaton misses
// fall back to per-token fuzzy matching.
func (r *Resolver) SearchEntriesAll(ctx context.Context, keywords []string, threshold float64) (map[string][]string, error) {
	names, err := r.ListNames(ctx)
	if err != nil {
		return nil, err
	}
	scanner := NewKeywordScanner(keywords)
	out := make(map[string][]string)
	for _, name := range names {
		entry, err := r.loadEntry(ctx, name)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		text := entry.Text()
		hit := scanner.Scan(text)
		seen := make(map[string]bool, len(hit))
		for _, kw := range hit {
			seen[kw] = true
		}
		for _, kw := range keywords {
			if !seen[strings.ToLower(kw)] && fuzzyTokenMatch(text, kw, threshold) {
				hit = append(hit, strings.ToLower(kw))
			}
		}
		if len(hit) > 0 {
			out[name] = hit
		}
	}
	return out, nil
}

// canonicalName maps requested to the stored name, or "" when absent.
func (r *Resolver) canonicalName(ctx context.Context, requested string) (string, error) {
	names, err := r.ListNames(ctx)
	if err != nil {
		return "", err
	}
	byLower := make(map[string]string, len(names))
	for _, n := range names {
		byLower[strings.ToLower(n)] = n
	}
	if n, ok := byLower[strings.ToLower(requested)]; ok {
		return n, nil
	}
	if n, ok := byLower[NormalizeName(requested)]; ok {
		return n, nil
	}
	return "", nil
}

// loadEntry reads and parses one entry, cached per canonical name. A store
// race (name listed but entry gone) degrades to (nil, nil) like any other
// absence.
func (r *Resolver) loadEntry(ctx context.Context, canonical string) (*Entry, error) {
	v, err := r.cache.GetOrLoad(ctx, keyEntryPrefix+canonical, func(ctx context.Context) (any, error) {
		raw, err := r.store.ReadEntry(ctx, r.catalog, canonical)
		if errors.Is(err, ports.ErrNotFound) {
			r.log.Info().Str("entry", canonical).Msg("entry vanished between list and read")
			return (*Entry)(nil), nil
		}
		if err != nil {
			return nil, err
		}
		return parseEntry(canonical, raw)
	})
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", r.catalog, canonical, err)
	}
	return v.(*Entry), nil
}

// tokenRe splits searchable text on whitespace, comma, hyphen, underscore.
var tokenRe = regexp.MustCompile(`[\s,\-_]+`)

// SearchByKeyword reports whether keyword appears in text: verbatim substring
// first (fast path), then any token fuzzy-matching at or above threshold.
// Case-insensitive throughout.
func SearchByKeyword(text, keyword string, threshold float64) bool {
	if keyword == "" {
		return false
	}
	if strings.Contains(strings.ToLower(text), strings.ToLower(keyword)) {
		return true
	}
	return fuzzyTokenMatch(text, keyword, threshold)
}

// fuzzyTokenMatch reports whether any token of text clears threshold
// against keyword.
func fuzzyTokenMatch(text, keyword string, threshold float64) bool {
	for _, tok := range tokenRe.Split(text, -1) {
		if tok == "" {
			continue
		}
		if match.Confidence(tok, keyword) >= threshold {
			return true
		}
	}
	return false
}
