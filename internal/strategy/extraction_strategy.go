package strategy

import (
	"slices"
	"strings"
	"sync"

	"github.com/anime-shed/receipt-inspector-go/internal/extraction"
)

// ExtractionStrategy supplies the label vocabulary for one document type
type ExtractionStrategy interface {
	Profile() extraction.Profile
	GetStrategyName() string
}

// ReceiptStrategy handles retail receipts
type ReceiptStrategy struct{}

// NewReceiptStrategy creates the default strategy
func NewReceiptStrategy() ExtractionStrategy {
	return &ReceiptStrategy{}
}

// Profile returns the retail vocabulary
func (s *ReceiptStrategy) Profile() extraction.Profile {
	return extraction.DefaultProfile()
}

// GetStrategyName returns the strategy name
func (s *ReceiptStrategy) GetStrategyName() string {
	return "receipt"
}

// InvoiceStrategy handles supplier invoices, which label totals and dates differently
type InvoiceStrategy struct{}

// NewInvoiceStrategy creates a new invoice strategy
func NewInvoiceStrategy() ExtractionStrategy {
	return &InvoiceStrategy{}
}

// Profile returns the invoice vocabulary
func (s *InvoiceStrategy) Profile() extraction.Profile {
	p := extraction.DefaultProfile()
	p.TotalLabels = []string{"total", "invoice total", "amount due", "balance due", "total due", "total payable"}
	p.SubtotalLabels = append(p.SubtotalLabels, "net total", "total net")
	p.DateLabels = []string{"date", "invoice date", "issue date", "issued", "dated"}
	return p
}

// GetStrategyName returns the strategy name
func (s *InvoiceStrategy) GetStrategyName() string {
	return "invoice"
}

// FuelStrategy handles pump receipts. Their volume and unit price rows look like
// line items, so none are extracted.
type FuelStrategy struct{}

// NewFuelStrategy creates a new fuel strategy
func NewFuelStrategy() ExtractionStrategy {
	return &FuelStrategy{}
}

// Profile returns the fuel vocabulary
func (s *FuelStrategy) Profile() extraction.Profile {
	p := extraction.DefaultProfile()
	p.TotalLabels = []string{"total", "fuel sale", "sale", "amount due"}
	p.ExpectLineItems = false
	return p
}

// GetStrategyName returns the strategy name
func (s *FuelStrategy) GetStrategyName() string {
	return "fuel"
}

// Registry maps document type hints to strategies
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]ExtractionStrategy
	fallback   ExtractionStrategy
}

// NewRegistry creates a registry holding the receipt, invoice and fuel strategies
func NewRegistry() *Registry {
	r := &Registry{
		strategies: make(map[string]ExtractionStrategy),
		fallback:   NewReceiptStrategy(),
	}
	for _, s := range []ExtractionStrategy{r.fallback, NewInvoiceStrategy(), NewFuelStrategy()} {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a strategy under its name
func (r *Registry) Register(s ExtractionStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[strings.ToLower(s.GetStrategyName())] = s
}

// Resolve looks up documentType case-insensitively. An empty hint selects the receipt
// strategy; an unknown one also does, with ok=false.
func (r *Registry) Resolve(documentType string) (ExtractionStrategy, bool) {
	key := strings.ToLower(strings.TrimSpace(documentType))
	if key == "" {
		return r.fallback, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.strategies[key]; ok {
		return s, true
	}
	return r.fallback, false
}

// Names lists the registered document types in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
