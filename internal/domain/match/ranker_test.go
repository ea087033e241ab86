package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAllMatches_ExactHit(t *testing.T) {
	matches := FindAllMatches("vendor", []string{"vendor", "payment", "invoice"}, 0.60)
	require.Len(t, matches, 1)
	assert.Equal(t, "vendor", matches[0].Pattern)
	assert.Equal(t, 0, matches[0].Distance)
	assert.Equal(t, 1.0, matches[0].Confidence)
}

func TestFindAllMatches_Typo(t *testing.T) {
	// "vendro" is one adjacent transposition away from "vendor".
	matches := FindAllMatches("vendro", []string{"vendor", "payment", "invoice"}, 0.60)
	require.NotEmpty(t, matches)
	assert.Equal(t, "vendor", matches[0].Pattern)
	assert.Equal(t, 1, matches[0].Distance)
	assert.Greater(t, matches[0].Confidence, 0.80)
}

func TestFindAllMatches_MultipleAboveThreshold(t *testing.T) {
	matches := FindAllMatches("exprt", []string{"export", "expert", "import", "vendor"}, 0.60)
	patterns := make([]string, 0, len(matches))
	for _, m := range matches {
		patterns = append(patterns, m.Pattern)
	}
	assert.Contains(t, patterns, "export")
	assert.Contains(t, patterns, "expert")
	assert.NotContains(t, patterns, "vendor")
}

func TestFindAllMatches_SortedByConfidenceDesc(t *testing.T) {
	matches := FindAllMatches("payment", []string{"pay", "payments", "payment", "paymen"}, 0.1)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Confidence, matches[i].Confidence)
	}
	assert.Equal(t, "payment", matches[0].Pattern)
}

func TestFindAllMatches_TiesKeepInputOrder(t *testing.T) {
	// "abcx" and "abcy" are both one edit from "abcd" — equal confidence,
	// so input order must be preserved.
	matches := FindAllMatches("abcd", []string{"abcx", "abcy"}, 0.5)
	require.Len(t, matches, 2)
	assert.Equal(t, "abcx", matches[0].Pattern)
	assert.Equal(t, "abcy", matches[1].Pattern)
}

func TestFindAllMatches_EmptyCandidates(t *testing.T) {
	assert.Empty(t, FindAllMatches("anything", nil, 0.0))
	assert.Empty(t, FindAllMatches("anything", []string{}, 0.9))
}

func TestFindBestMatch(t *testing.T) {
	best, ok := FindBestMatch("vendro", []string{"vendor", "payment"}, 0.60)
	require.True(t, ok)
	assert.Equal(t, "vendor", best.Pattern)

	_, ok = FindBestMatch("zzzzzz", []string{"vendor", "payment"}, 0.60)
	assert.False(t, ok)

	_, ok = FindBestMatch("vendor", nil, 0.60)
	assert.False(t, ok)
}

func TestThresholds(t *testing.T) {
	th := DefaultThresholds()

	// All defaults sit in the permissive 0.60–0.70 band.
	for kind, got := range map[Kind]float64{
		KindDefault:   th.For(KindDefault),
		KindTypo:      th.For(KindTypo),
		KindOperation: th.For(KindOperation),
		KindError:     th.For(KindError),
		KindFlow:      th.For(KindFlow),
		KindKeyword:   th.For(KindKeyword),
	} {
		assert.GreaterOrEqual(t, got, 0.60, "kind %s", kind)
		assert.LessOrEqual(t, got, 0.70, "kind %s", kind)
	}

	// Unknown kinds fall back to Default.
	assert.Equal(t, th.Default, th.For(Kind("bogus")))
}
