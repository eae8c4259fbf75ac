package extraction

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// amountPattern accepts 12.50, $1,234.56, (3.00), -3.00 and a trailing currency code
var amountPattern = regexp.MustCompile(`^[-(]?[$€£]?\d{1,3}(?:,\d{3})*\.\d{2}\)?$|^[-(]?[$€£]?\d+\.\d{2}\)?$`)

// amountToken is a money value found at a token position
type amountToken struct {
	index      int
	value      decimal.Decimal
	confidence float64
}

// parseAmount reads a token as money; the second result is false for anything else
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "*:")
	for _, code := range []string{"USD", "EUR", "GBP", "CAD", "AUD"} {
		s = strings.TrimSuffix(strings.TrimPrefix(s, code), code)
	}
	if !amountPattern.MatchString(s) {
		return decimal.Zero, false
	}

	negative := strings.HasPrefix(s, "-") || strings.HasPrefix(s, "(")
	clean := strings.NewReplacer("-", "", "(", "", ")", "", "$", "", "€", "", "£", "", ",", "").Replace(s)
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// amountsIn lists money tokens in l from left to right, skipping tokens before from
func amountsIn(l *line, from int) []amountToken {
	var out []amountToken
	for i := max(from, 0); i < len(l.tokens); i++ {
		if d, ok := parseAmount(l.tokens[i].Text); ok {
			out = append(out, amountToken{index: i, value: d, confidence: l.tokens[i].Confidence})
		}
	}
	return out
}

// trailingAmount is the rightmost money token, the price column of a receipt row
func trailingAmount(l *line) (amountToken, bool) {
	amounts := amountsIn(l, 0)
	if len(amounts) == 0 {
		return amountToken{}, false
	}
	return amounts[len(amounts)-1], true
}

// moneyCandidate is one label-to-amount pairing
type moneyCandidate struct {
	line      int
	amount    amountToken
	proximity float64
	exact     bool
	score     float64
}

// findLabeledAmount pairs every line of the wanted kind with the amount to its right,
// or on the next unlabeled row. The highest proximity-weighted confidence wins; ties
// go to the row lower on the page, which on receipts is the final figure.
func findLabeledAmount(pg *page, kinds []labelMatch, want labelKind) (*Field, bool) {
	var candidates []moneyCandidate
	for i, m := range kinds {
		if m.kind != want {
			continue
		}
		l := pg.lines[i]
		if amounts := amountsIn(l, m.end+1); len(amounts) > 0 {
			a := amounts[len(amounts)-1]
			candidates = append(candidates, newMoneyCandidate(i, a, 1.0, m))
			continue
		}
		if i+1 < len(pg.lines) && kinds[i+1].kind == labelNone {
			if a, ok := trailingAmount(pg.lines[i+1]); ok {
				candidates = append(candidates, newMoneyCandidate(i+1, a, nextLineProximity, m))
			}
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}

	best := candidates[0]
	distinct := map[string]struct{}{}
	for _, c := range candidates {
		distinct[c.amount.value.String()] = struct{}{}
		if c.score > best.score || (c.score == best.score && c.line > best.line) {
			best = c
		}
	}

	certainty := best.proximity
	if !best.exact {
		certainty *= fuzzyLabelPenalty
	}
	if len(distinct) > 1 {
		certainty *= ambiguityPenalty
	}

	value := best.amount.value
	return &Field{
		Value:         value.StringFixed(2),
		Amount:        &value,
		OCRConfidence: best.amount.confidence,
		Certainty:     certainty,
		Line:          best.line,
	}, true
}

func newMoneyCandidate(line int, a amountToken, proximity float64, m labelMatch) moneyCandidate {
	return moneyCandidate{
		line:      line,
		amount:    a,
		proximity: proximity,
		exact:     m.exact,
		score:     proximity * (a.confidence + m.confidence) / 2,
	}
}

// largestAmount is the fallback total when no total label was recognized
func largestAmount(pg *page, kinds []labelMatch) (*Field, bool) {
	var best *amountToken
	bestLine := -1
	for i, l := range pg.lines {
		if kinds[i].kind == labelPayment {
			continue
		}
		for _, a := range amountsIn(l, 0) {
			if best == nil || a.value.GreaterThan(best.value) {
				best, bestLine = &a, i
			}
		}
	}
	if best == nil || !best.value.IsPositive() {
		return nil, false
	}
	value := best.value
	return &Field{
		Value:         value.StringFixed(2),
		Amount:        &value,
		OCRConfidence: best.confidence,
		Certainty:     fallbackCertainty,
		Line:          bestLine,
	}, true
}
