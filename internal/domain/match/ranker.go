package match

import "sort"

// Candidate is one scored candidate string.
type Candidate struct {
	Pattern    string  `json:"pattern"`
	Distance   int     `json:"distance"`
	Confidence float64 `json:"confidence"`
}

// FindAllMatches scores every candidate against query and returns those with
// confidence >= threshold, sorted by confidence descending. Ties keep the
// candidates' original input order (stable sort) so results are reproducible
// across runs. An empty candidate set yields an empty result, never an error.
func FindAllMatches(query string, candidates []string, threshold float64) []Candidate {
	var out []Candidate
	for _, cand := range candidates {
		conf := Confidence(query, cand)
		if conf >= threshold {
			out = append(out, Candidate{
				Pattern:    cand,
				Distance:   Distance(query, cand),
				Confidence: conf,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// FindBestMatch returns the highest-confidence match, or ok=false when no
// candidate clears the threshold.
func FindBestMatch(query string, candidates []string, threshold float64) (Candidate, bool) {
	all := FindAllMatches(query, candidates, threshold)
	if len(all) == 0 {
		return Candidate{}, false
	}
	return all[0], true
}
