package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var reQuantity = regexp.MustCompile(`^(\d{1,3})\s*[x@]?$`)

const lineItemCertainty = 0.8

// findLineItems reads rows between the header and the first summary label whose
// last token is a price and which carry a description.
func findLineItems(pg *page, kinds []labelMatch, startAfter int) []LineItem {
	end := len(pg.lines)
	for i, m := range kinds {
		if m.kind == labelSubtotal || m.kind == labelTax || m.kind == labelTotal {
			end = i
			break
		}
	}

	items := []LineItem{}
	for i := startAfter + 1; i < end; i++ {
		if kinds[i].kind != labelNone {
			continue
		}
		if item, ok := parseLineItem(pg.lines[i]); ok {
			if !pg.geometry {
				item.Certainty *= noGeometryPenalty
			}
			items = append(items, item)
		}
	}
	return items
}

func parseLineItem(l *line) (LineItem, bool) {
	if len(l.tokens) < 2 {
		return LineItem{}, false
	}
	last := len(l.tokens) - 1
	amount, ok := parseAmount(l.tokens[last].Text)
	if !ok || len(datesIn(l.text())) > 0 {
		return LineItem{}, false
	}

	words := make([]string, 0, last)
	for _, t := range l.tokens[:last] {
		words = append(words, t.Text)
	}

	qty := 1
	if m := reQuantity.FindStringSubmatch(words[0]); m != nil && len(words) > 1 {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			qty = n
			words = words[1:]
		}
	}
	// drop a unit price column such as "2 @ 1.50 3.00"
	for len(words) > 1 {
		if _, isAmount := parseAmount(words[len(words)-1]); !isAmount && words[len(words)-1] != "@" {
			break
		}
		words = words[:len(words)-1]
	}

	description := strings.TrimSpace(strings.Join(words, " "))
	if !strings.ContainsFunc(description, unicode.IsLetter) {
		return LineItem{}, false
	}

	return LineItem{
		Description:   description,
		Quantity:      qty,
		Amount:        amount,
		OCRConfidence: l.meanConfidence(),
		Certainty:     lineItemCertainty,
		Line:          l.index,
	}, true
}
