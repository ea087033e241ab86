package catalog

import (
	"strings"

	aho "github.com/petar-dambovaliev/aho-corasick"
)

// KeywordScanner finds verbatim occurrences of many keywords in one pass
// using an Aho-Corasick automaton. Patterns are lowercased at build time;
// Scan lowercases its input, so matching is case-insensitive.
type KeywordScanner struct {
	automaton aho.AhoCorasick
	keywords  []string
}

// NewKeywordScanner compiles an automaton from the given keywords.
// Empty keywords are dropped.
func NewKeywordScanner(keywords []string) *KeywordScanner {
	patterns := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			patterns = append(patterns, kw)
		}
	}
	builder := aho.NewAhoCorasickBuilder(aho.Opts{
		DFA: true,
	})
	return &KeywordScanner{
		automaton: builder.Build(patterns),
		keywords:  patterns,
	}
}

// Scan returns the keywords found verbatim in text, deduplicated, in
// pattern order of first occurrence.
func (s *KeywordScanner) Scan(text string) []string {
	if len(s.keywords) == 0 {
		return nil
	}
	matches := s.automaton.FindAll(strings.ToLower(text))
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var out []string
	for i := range matches {
		kw := s.keywords[matches[i].Pattern()]
		if !seen[kw] {
			seen[kw] = true
			out = append(out, kw)
		}
	}
	return out
}
