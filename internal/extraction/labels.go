package extraction

import (
	"strings"
	"unicode"

	"github.com/arbovm/levenshtein"
)

type labelKind int

const (
	labelNone labelKind = iota
	labelSubtotal
	labelTax
	labelTotal
	labelPayment
)

// labelMatch locates a label inside a line
type labelMatch struct {
	kind labelKind
	// last token index covered by the label
	end   int
	exact bool
	// mean OCR confidence of the label tokens
	confidence float64
}

// common OCR digit-for-letter substitutions inside words
var digitLetters = strings.NewReplacer("0", "o", "1", "l", "5", "s", "8", "b", "$", "s")

// labelWord lower-cases w, drops punctuation and undoes digit substitutions
func labelWord(w string) string {
	w = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '$' {
			return unicode.ToLower(r)
		}
		return -1
	}, w)
	return digitLetters.Replace(w)
}

// wordMatches allows one edit for words of four letters or more
func wordMatches(got, want string) (match, exact bool) {
	if got == want {
		return true, true
	}
	if len(want) < 4 || got == "" {
		return false, false
	}
	return levenshtein.Distance(got, want) <= 1, false
}

// labelRule controls how strictly a vocabulary is matched
type labelRule struct {
	// fuzzy allows one edit per word of four letters or more
	fuzzy bool
	// anchored requires the label to start the line
	anchored bool
}

var (
	summaryRule = labelRule{fuzzy: true}
	// "Case", "Wash" and "Cart" are item words, not CASH or CARD
	paymentRule = labelRule{anchored: true}
)

// findLabel returns the first occurrence of any of labels in l
func findLabel(l *line, labels []string, rule labelRule) (labelMatch, bool) {
	words := make([]string, len(l.tokens))
	for i, t := range l.tokens {
		words[i] = labelWord(t.Text)
	}

	best := labelMatch{end: -1}
	found := false
	for _, label := range labels {
		parts := strings.Fields(label)
		for i := range parts {
			parts[i] = labelWord(parts[i])
		}
		if m, ok := matchSequence(l, words, parts, rule); ok {
			// Prefer exact over fuzzy, then longer labels
			if !found || (m.exact && !best.exact) || (m.exact == best.exact && m.end > best.end) {
				best, found = m, true
			}
		}
	}
	return best, found
}

func matchSequence(l *line, words, parts []string, rule labelRule) (labelMatch, bool) {
	if len(parts) == 0 {
		return labelMatch{}, false
	}
	last := len(words) - len(parts)
	if rule.anchored {
		last = min(last, 0)
	}
	for start := 0; start <= last; start++ {
		exact := true
		ok := true
		for j, p := range parts {
			m, e := wordMatches(words[start+j], p)
			if !m || (!e && !rule.fuzzy) {
				ok = false
				break
			}
			exact = exact && e
		}
		if !ok {
			continue
		}
		var conf float64
		for j := range parts {
			conf += l.tokens[start+j].Confidence
		}
		return labelMatch{
			end:        start + len(parts) - 1,
			exact:      exact,
			confidence: conf / float64(len(parts)),
		}, true
	}
	return labelMatch{}, false
}

// classifyLine picks the most specific label kind present. Subtotal wins over tax and
// tax over total, so "SUB TOTAL" and "TOTAL TAX" are not read as the grand total.
func classifyLine(l *line, p Profile) (labelMatch, bool) {
	order := []struct {
		kind   labelKind
		labels []string
		rule   labelRule
	}{
		{labelSubtotal, p.SubtotalLabels, summaryRule},
		{labelTax, p.TaxLabels, summaryRule},
		{labelTotal, p.TotalLabels, summaryRule},
		{labelPayment, p.PaymentLabels, paymentRule},
	}
	for _, o := range order {
		if m, ok := findLabel(l, o.labels, o.rule); ok {
			m.kind = o.kind
			return m, true
		}
	}
	return labelMatch{kind: labelNone, end: -1}, false
}
