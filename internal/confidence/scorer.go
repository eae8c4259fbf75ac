package confidence

import (
	"math"
)

// Tier is the display bucket of a confidence value
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierFair      Tier = "fair"
	TierPoor      Tier = "poor"
)

// Tiers lists every bucket from best to worst
var Tiers = []Tier{TierExcellent, TierGood, TierFair, TierPoor}

// Classify buckets c: >=0.9 excellent, >=0.7 good, >=0.5 fair, else poor
func Classify(c float64) Tier {
	switch {
	case c >= 0.9:
		return TierExcellent
	case c >= 0.7:
		return TierGood
	case c >= 0.5:
		return TierFair
	default:
		return TierPoor
	}
}

// Field names the scorer knows weights for
type Field string

const (
	FieldVendor   Field = "vendor"
	FieldDate     Field = "date"
	FieldSubtotal Field = "subtotal"
	FieldTax      Field = "tax"
	FieldTotal    Field = "total"
	FieldLineItem Field = "lineItem"
)

const defaultOCRWeight = 0.6

// Scorer combines engine confidence with rule certainty.
// The result is a weighted geometric mean, so a zero on either side yields zero.
type Scorer struct {
	ocrWeights map[Field]float64
}

// NewScorer returns a scorer with default weights. Vendor names lean less on
// OCR confidence because the top-of-page heuristic matters more there.
func NewScorer() *Scorer {
	return &Scorer{
		ocrWeights: map[Field]float64{
			FieldVendor: 0.5,
		},
	}
}

// WithWeight overrides the OCR weight for one field; w is clamped to [0,1]
func (s *Scorer) WithWeight(field Field, w float64) *Scorer {
	s.ocrWeights[field] = clamp(w)
	return s
}

// Score returns a value in [0,1]
func (s *Scorer) Score(field Field, ocrConfidence, extractionCertainty float64) float64 {
	w, ok := s.ocrWeights[field]
	if !ok {
		w = defaultOCRWeight
	}
	o, c := clamp(ocrConfidence), clamp(extractionCertainty)
	if o == 0 || c == 0 {
		return 0
	}
	return clamp(math.Pow(o, w) * math.Pow(c, 1-w))
}

// Distribution counts values per tier
type Distribution map[Tier]int

// NewDistribution returns a distribution with every tier present
func NewDistribution() Distribution {
	d := make(Distribution, len(Tiers))
	for _, t := range Tiers {
		d[t] = 0
	}
	return d
}

// Add buckets one value
func (d Distribution) Add(c float64) {
	d[Classify(c)]++
}

// Merge adds other into d
func (d Distribution) Merge(other Distribution) {
	for t, n := range other {
		d[t] += n
	}
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
