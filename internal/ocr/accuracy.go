package ocr

import (
	"math"
	"strings"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"
)

// Accuracy compares recognized text against a known transcript
type Accuracy struct {
	WordErrorRate      float64 `json:"word_error_rate"`
	CharacterErrorRate float64 `json:"character_error_rate"`
	WordAccuracy       float64 `json:"word_accuracy"`
	WordErrors         int     `json:"word_errors"`
}

// MeasureAccuracy computes WER and CER after lower-casing and collapsing whitespace.
// An empty reference yields ok=false.
func MeasureAccuracy(expected, actual string) (Accuracy, bool) {
	ref := canonicalWords(expected)
	if len(ref) == 0 {
		return Accuracy{}, false
	}
	hyp := canonicalWords(actual)

	rate, wordAcc := wer.WER(ref, hyp)
	// WER is the edit count over the reference length
	errs := int(math.Round(rate * float64(len(ref))))

	refText := strings.Join(ref, " ")
	cer := float64(levenshtein.Distance(refText, strings.Join(hyp, " "))) / float64(len([]rune(refText)))

	return Accuracy{
		WordErrorRate:      rate,
		CharacterErrorRate: cer,
		WordAccuracy:       wordAcc,
		WordErrors:         errs,
	}, true
}

func canonicalWords(s string) []string {
	return strings.Fields(strings.ToLower(s))
}
