package extraction

import (
	"github.com/shopspring/decimal"

	"github.com/anime-shed/receipt-inspector-go/internal/ocr"
)

var consistencyTolerance = decimal.RequireFromString("0.02")

// ExtractFields applies the positional rules to one recognition. It is deterministic
// and never fails; fields it cannot locate are left nil.
func ExtractFields(rec *ocr.Recognition, profile Profile) Fields {
	fields := Fields{LineItems: []LineItem{}}
	if rec == nil {
		return fields
	}

	pg := buildPage(rec)
	fields.Geometry = pg.geometry
	if len(pg.lines) == 0 {
		return fields
	}

	kinds := make([]labelMatch, len(pg.lines))
	for i, l := range pg.lines {
		kinds[i], _ = classifyLine(l, profile)
	}

	if v, ok := findVendor(pg); ok {
		fields.Vendor = v
	}
	if d, ok := findDate(pg, profile); ok {
		fields.Date = d
	}
	if f, ok := findLabeledAmount(pg, kinds, labelSubtotal); ok {
		fields.Subtotal = f
	}
	if f, ok := findLabeledAmount(pg, kinds, labelTax); ok {
		fields.Tax = f
	}
	if f, ok := findLabeledAmount(pg, kinds, labelTotal); ok {
		fields.Total = f
	} else if f, ok := largestAmount(pg, kinds); ok {
		fields.Total = f
	}

	if !pg.geometry {
		for _, f := range []*Field{fields.Date, fields.Subtotal, fields.Tax, fields.Total} {
			if f != nil {
				f.Certainty *= noGeometryPenalty
			}
		}
	}

	if profile.ExpectLineItems {
		startAfter := -1
		if fields.Vendor != nil {
			startAfter = fields.Vendor.Line
		}
		for _, item := range findLineItems(pg, kinds, startAfter) {
			if fields.Total != nil && item.Line == fields.Total.Line {
				continue
			}
			fields.LineItems = append(fields.LineItems, item)
		}
	}

	fields.Consistency = checkConsistency(&fields)
	return fields
}

// checkConsistency compares subtotal + tax with total and adjusts total certainty.
// A match raises it by 0.1, a mismatch scales it by 0.8.
func checkConsistency(f *Fields) *Consistency {
	if f.Subtotal == nil || f.Total == nil || f.Subtotal.Amount == nil || f.Total.Amount == nil {
		return nil
	}
	// a fallback total read off the subtotal row proves nothing
	if f.Total.Line == f.Subtotal.Line {
		return nil
	}
	expected := *f.Subtotal.Amount
	if f.Tax != nil && f.Tax.Amount != nil {
		expected = expected.Add(*f.Tax.Amount)
	}
	actual := *f.Total.Amount

	c := &Consistency{
		Expected: expected,
		Actual:   actual,
		Matches:  expected.Sub(actual).Abs().LessThanOrEqual(consistencyTolerance),
	}
	if c.Matches {
		f.Total.Certainty = min(1, f.Total.Certainty+0.1)
	} else {
		f.Total.Certainty *= 0.8
	}
	return c
}
