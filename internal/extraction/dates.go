package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ISODate is the layout every extracted date is reported in
const ISODate = "2006-01-02"

var (
	reISODate     = regexp.MustCompile(`\b(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})\b`)
	reNumericDate = regexp.MustCompile(`\b(\d{1,2})[-/.](\d{1,2})[-/.](\d{2}|\d{4})\b`)
	reMonthFirst  = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	reDayFirst    = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?,?\s+(\d{4})\b`)
)

var monthNames = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

type dateCandidate struct {
	line     int
	date     time.Time
	labeled  bool
	lineConf float64
}

// ParseDate reads one of the supported receipt date shapes.
// Numeric dates are month-first unless the first part cannot be a month.
func ParseDate(s string) (time.Time, bool) {
	found := datesIn(s)
	if len(found) == 0 {
		return time.Time{}, false
	}
	return found[0], true
}

func datesIn(s string) []time.Time {
	var out []time.Time
	iso := reISODate.FindAllStringSubmatchIndex(s, -1)
	for _, m := range iso {
		if d, ok := buildDate(atoi(s[m[2]:m[3]]), atoi(s[m[4]:m[5]]), atoi(s[m[6]:m[7]])); ok {
			out = append(out, d)
		}
	}
	for _, m := range reNumericDate.FindAllStringSubmatchIndex(s, -1) {
		if insideAny(m[0], iso) {
			continue
		}
		a, b, y := atoi(s[m[2]:m[3]]), atoi(s[m[4]:m[5]]), atoi(s[m[6]:m[7]])
		if y < 100 {
			y += 2000
		}
		month, day := a, b
		if a > 12 {
			month, day = b, a
		}
		if d, ok := buildDate(y, month, day); ok {
			out = append(out, d)
		}
	}
	for _, m := range reMonthFirst.FindAllStringSubmatch(s, -1) {
		if d, ok := buildDate(atoi(m[3]), int(monthNames[strings.ToLower(m[1])]), atoi(m[2])); ok {
			out = append(out, d)
		}
	}
	for _, m := range reDayFirst.FindAllStringSubmatch(s, -1) {
		if d, ok := buildDate(atoi(m[3]), int(monthNames[strings.ToLower(m[2])]), atoi(m[1])); ok {
			out = append(out, d)
		}
	}
	return out
}

// buildDate rejects values time.Date would silently normalize, such as Feb 30
func buildDate(year, month, day int) (time.Time, bool) {
	if year < 1900 || year > 2200 || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	return d, true
}

func insideAny(pos int, spans [][]int) bool {
	for _, s := range spans {
		if pos >= s[0] && pos < s[1] {
			return true
		}
	}
	return false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// findDate prefers a date on a row carrying a date label, then the top-most one
func findDate(pg *page, p Profile) (*Field, bool) {
	var candidates []dateCandidate
	for i, l := range pg.lines {
		_, labeled := findLabel(l, p.DateLabels, summaryRule)
		for _, d := range datesIn(l.text()) {
			candidates = append(candidates, dateCandidate{line: i, date: d, labeled: labeled, lineConf: l.meanConfidence()})
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}

	best := candidates[0]
	distinct := map[time.Time]struct{}{}
	for _, c := range candidates {
		distinct[c.date] = struct{}{}
		if c.labeled && !best.labeled {
			best = c
		}
	}

	certainty := 0.8
	if best.labeled {
		certainty = 1.0
	}
	if len(distinct) > 1 {
		certainty = min(certainty, 0.7)
	}

	return &Field{
		Value:         best.date.Format(ISODate),
		OCRConfidence: best.lineConf,
		Certainty:     certainty,
		Line:          best.line,
	}, true
}
