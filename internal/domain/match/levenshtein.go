// Package match implements approximate string matching: case-insensitive
// edit distance, a normalized confidence score, and a ranker that orders
// candidates by confidence. Pure functions, no I/O.
package match

import "strings"

// Distance returns the minimum number of single-character insertions,
// deletions, substitutions, or adjacent transpositions to transform a into b,
// compared case-insensitively (optimal string alignment). Transpositions
// count as one edit so a swapped pair ("vendro") stays close to its target.
// Rune-aware so multi-byte input scores correctly.
func Distance(a, b string) int {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	// Three-row DP: prev2 is row i-2 (for transpositions), prev is row i-1.
	prev2 := make([]int, lb+1)
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				curr[j] = min(curr[j], prev2[j-2]+1)
			}
		}
		prev2, prev, curr = prev, curr, prev2
	}
	return prev[lb]
}

// Confidence returns a similarity score in [0,1], monotonically decreasing
// with edit distance relative to the longer input:
//
//	1 - Distance(a,b) / max(len(a), len(b))
//
// Two empty strings are a perfect match (1.0) by convention.
func Confidence(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longer := max(la, lb)
	if longer == 0 {
		return 1.0
	}
	c := 1.0 - float64(Distance(a, b))/float64(longer)
	if c < 0 {
		return 0
	}
	return c
}
