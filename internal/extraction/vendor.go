package extraction

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	rePhone   = regexp.MustCompile(`\(?\d{3}\)?[\s.-]?\d{3}[\s.-]\d{4}`)
	reWebsite = regexp.MustCompile(`(?i)(www\.|https?://|\.com\b|@)`)
	reAddress = regexp.MustCompile(`(?i)^\d+\s+\w+.*\b(st|street|ave|avenue|rd|road|blvd|dr|drive|ln|lane|way)\b`)
)

// headerWords never name a merchant on their own
var headerWords = map[string]bool{
	"receipt": true, "invoice": true, "tel": true, "phone": true, "welcome": true,
	"store": true, "order": true, "copy": true, "customer": true,
}

const vendorRegion = 0.25

// findVendor picks the tallest qualifying row in the top quarter of the page, the
// usual place and size of a merchant logo line.
func findVendor(pg *page) (*Field, bool) {
	var qualifying []*line
	for _, l := range vendorRegionLines(pg) {
		if isVendorLine(l) {
			qualifying = append(qualifying, l)
		}
	}
	if len(qualifying) == 0 {
		return nil, false
	}

	first := qualifying[0]
	if !pg.geometry {
		return vendorField(first, 0.5), true
	}

	tallest := first
	for _, l := range qualifying[1:] {
		if l.height() > tallest.height()*1.05 {
			tallest = l
		}
	}
	if tallest == first {
		return vendorField(first, 0.9), true
	}
	return vendorField(tallest, 0.7), true
}

func vendorRegionLines(pg *page) []*line {
	if !pg.geometry {
		n := max(3, (len(pg.lines)+3)/4)
		return pg.lines[:min(n, len(pg.lines))]
	}
	limit := pg.height * vendorRegion
	var out []*line
	for _, l := range pg.lines {
		if l.top <= limit {
			out = append(out, l)
		}
	}
	if len(out) == 0 && len(pg.lines) > 0 {
		out = pg.lines[:1]
	}
	return out
}

func isVendorLine(l *line) bool {
	text := strings.TrimSpace(l.text())
	if len(text) < 2 || rePhone.MatchString(text) || reWebsite.MatchString(text) || reAddress.MatchString(text) {
		return false
	}
	if len(datesIn(text)) > 0 {
		return false
	}
	if _, ok := trailingAmount(l); ok {
		return false
	}

	letters, others := 0, 0
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsSpace(r):
		default:
			others++
		}
	}
	if letters < 2 || letters < others {
		return false
	}

	for _, w := range strings.Fields(text) {
		if !headerWords[labelWord(w)] {
			return true
		}
	}
	return false
}

func vendorField(l *line, certainty float64) *Field {
	return &Field{
		Value:         strings.Trim(l.text(), " .,:;-*#"),
		OCRConfidence: l.meanConfidence(),
		Certainty:     certainty,
		Line:          l.index,
	}
}
