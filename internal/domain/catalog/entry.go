// Package catalog resolves loosely-specified names to exact catalog entries.
// A Resolver operates over one logical catalog ("flows", "operations", ...)
// sourced from a read-only knowledge store, with all loads memoized in the
// backend's private cache.
//
// Identity resolution is exact/normalized only — never fuzzy. Fuzzy matching
// is reserved for keyword search inside entry content, where a wrong guess is
// a suggestion rather than a silently wrong entry.
package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Entry is one immutable named record of a catalog. Created at load time,
// never mutated, discarded when its cache entry expires.
type Entry struct {
	// Name is the canonical stored identifier, unique within the catalog.
	Name string `json:"name"`

	// Content is the entry's free-form structured payload.
	Content map[string]any `json:"content"`

	// UsedBy lists reference IDs (operations, flows) that use this entry.
	UsedBy []string `json:"used_by,omitempty"`
}

// parseEntry decodes raw store content into an Entry. Back-references come
// from a top-level "used_by" string array when present. Malformed content is
// a hard failure — never hidden behind a default value.
func parseEntry(name string, raw []byte) (*Entry, error) {
	var content map[string]any
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, fmt.Errorf("parse entry %q: %w", name, err)
	}
	e := &Entry{Name: name, Content: content}
	if refs, ok := content["used_by"].([]any); ok {
		for _, r := range refs {
			if s, ok := r.(string); ok {
				e.UsedBy = append(e.UsedBy, s)
			}
		}
	}
	return e, nil
}

// NormalizeName maps a user-supplied name to canonical form: spaces and
// hyphens become underscores, everything lowercased.
func NormalizeName(name string) string {
	r := strings.NewReplacer(" ", "_", "-", "_")
	return strings.ToLower(r.Replace(name))
}

// flatten walks arbitrary decoded JSON and appends every string value and
// map key to parts. Used to turn entry content into searchable text.
func flatten(v any, parts *[]string) {
	switch t := v.(type) {
	case string:
		*parts = append(*parts, t)
	case []any:
		for _, item := range t {
			flatten(item, parts)
		}
	case map[string]any:
		for k, item := range t {
			*parts = append(*parts, k)
			flatten(item, parts)
		}
	}
}

// Text returns the entry's name plus all string content joined by spaces,
// for keyword scanning.
func (e *Entry) Text() string {
	parts := []string{e.Name}
	flatten(e.Content, &parts)
	return strings.Join(parts, " ")
}
