package match

// Kind selects a domain-specific default threshold.
type Kind string

// Match kinds with configured thresholds.
const (
	KindDefault   Kind = "default"
	KindTypo      Kind = "typo"
	KindOperation Kind = "operation"
	KindError     Kind = "error"
	KindFlow      Kind = "flow"
	KindKeyword   Kind = "keyword"
)

// Thresholds is the named threshold table. Values are deliberately permissive
// ("catch more, trust less") — downstream consumers treat low-confidence
// matches as suggestions, not certainties. The ranker itself never consults
// this table; callers pass a threshold per call.
type Thresholds struct {
	Default   float64 `yaml:"default" validate:"gt=0,lte=1"`
	Typo      float64 `yaml:"typo" validate:"gt=0,lte=1"`
	Operation float64 `yaml:"operation" validate:"gt=0,lte=1"`
	Error     float64 `yaml:"error" validate:"gt=0,lte=1"`
	Flow      float64 `yaml:"flow" validate:"gt=0,lte=1"`
	Keyword   float64 `yaml:"keyword" validate:"gt=0,lte=1"`
}

// DefaultThresholds returns the built-in table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Default:   0.65,
		Typo:      0.70,
		Operation: 0.65,
		Error:     0.60,
		Flow:      0.65,
		Keyword:   0.60,
	}
}

// For returns the threshold for a match kind. Unknown kinds get Default.
func (t Thresholds) For(kind Kind) float64 {
	switch kind {
	case KindTypo:
		return t.Typo
	case KindOperation:
		return t.Operation
	case KindError:
		return t.Error
	case KindFlow:
		return t.Flow
	case KindKeyword:
		return t.Keyword
	default:
		return t.Default
	}
}
