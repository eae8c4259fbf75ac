package extraction

import (
	"github.com/shopspring/decimal"
)

// Field is one extracted value with the two inputs the confidence scorer needs
type Field struct {
	Value string `json:"value"`
	// Amount is set for money fields
	Amount *decimal.Decimal `json:"-"`
	// OCRConfidence is the engine's confidence in the tokens the value came from
	OCRConfidence float64 `json:"ocr_confidence"`
	// Certainty is how unambiguously the extraction rule matched
	Certainty float64 `json:"certainty"`
	// Line is the zero-based row the value was read from
	Line int `json:"line"`
}

// LineItem is one purchased article
type LineItem struct {
	Description   string          `json:"description"`
	Quantity      int             `json:"quantity"`
	Amount        decimal.Decimal `json:"amount"`
	OCRConfidence float64         `json:"ocr_confidence"`
	Certainty     float64         `json:"certainty"`
	Line          int             `json:"line"`
}

// Consistency is the outcome of checking subtotal + tax against total
type Consistency struct {
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
	Matches  bool            `json:"matches"`
}

// Fields holds every candidate found on one document. Missing fields are nil.
type Fields struct {
	Vendor    *Field     `json:"vendor,omitempty"`
	Date      *Field     `json:"date,omitempty"`
	Subtotal  *Field     `json:"subtotal,omitempty"`
	Tax       *Field     `json:"tax,omitempty"`
	Total     *Field     `json:"total,omitempty"`
	LineItems []LineItem `json:"line_items"`

	Consistency *Consistency `json:"consistency,omitempty"`
	// Geometry is false when the recognizer returned no token boxes
	Geometry bool `json:"geometry"`
}

// Profile is the label vocabulary for one document type
type Profile struct {
	TotalLabels    []string
	SubtotalLabels []string
	TaxLabels      []string
	DateLabels     []string
	// PaymentLabels mark tendered/change rows that must not be read as totals or items.
	// They only match exactly at the start of a row.
	PaymentLabels   []string
	ExpectLineItems bool
}

// DefaultProfile is the vocabulary for retail receipts
func DefaultProfile() Profile {
	return Profile{
		TotalLabels:     []string{"total", "grand total", "amount due", "balance due", "total due"},
		SubtotalLabels:  []string{"subtotal", "sub total", "sub-total", "net amount"},
		TaxLabels:       []string{"tax", "sales tax", "vat", "gst", "hst", "pst"},
		DateLabels:      []string{"date", "dated", "issued"},
		PaymentLabels:   []string{"cash", "change", "tendered", "amount tendered", "paid", "visa", "mastercard", "amex", "debit", "credit", "card"},
		ExpectLineItems: true,
	}
}

const (
	// Certainty multiplier applied when tokens carry no geometry
	noGeometryPenalty = 0.7
	// Certainty multiplier when several distinct values compete for one label
	ambiguityPenalty = 0.6
	// Certainty multiplier for a label matched only by edit distance
	fuzzyLabelPenalty = 0.9

	nextLineProximity = 0.8
	fallbackCertainty = 0.4
)
