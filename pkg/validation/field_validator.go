package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// FieldType selects the rule set applied to a value
type FieldType string

const (
	FieldVendor      FieldType = "vendor"
	FieldAmount      FieldType = "amount"
	FieldDate        FieldType = "date"
	FieldDescription FieldType = "description"
)

// ParseFieldType accepts the wire names of the field types
func ParseFieldType(s string) (FieldType, bool) {
	switch ft := FieldType(strings.ToLower(strings.TrimSpace(s))); ft {
	case FieldVendor, FieldAmount, FieldDate, FieldDescription:
		return ft, true
	}
	return "", false
}

// Severity of a validation finding
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ValidationResult annotates a value without changing it.
// Only SeverityError results are invalid.
type ValidationResult struct {
	IsValid       bool     `json:"isValid"`
	Severity      Severity `json:"severity"`
	Message       string   `json:"message"`
	Suggestion    string   `json:"suggestion,omitempty"`
	FormatExample string   `json:"formatExample,omitempty"`
}

func info(msg string) ValidationResult {
	return ValidationResult{IsValid: true, Severity: SeverityInfo, Message: msg}
}

func warning(msg, suggestion string) ValidationResult {
	return ValidationResult{IsValid: true, Severity: SeverityWarning, Message: msg, Suggestion: suggestion}
}

func failure(msg, suggestion string) ValidationResult {
	return ValidationResult{IsValid: false, Severity: SeverityError, Message: msg, Suggestion: suggestion}
}

const (
	vendorMinLength      = 2
	vendorMaxLength      = 100
	vendorMinConfidence  = 0.5
	amountMinConfidence  = 0.6
	dateMinConfidence    = 0.5
	descriptionMaxLength = 500

	dateFormatExample = "2024-01-15"
)

var (
	minAmount          = decimal.RequireFromString("0.01")
	largeAmount        = decimal.NewFromInt(50000)
	roundAmountCeiling = decimal.NewFromInt(1000)
	hundred            = decimal.NewFromInt(100)

	vendorUnusualChars = "<>{}[]\\|`~"

	reSSN        = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	reCardNumber = regexp.MustCompile(`\b(?:\d[ -]?){15}\d\b`)

	dateLayouts = []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"1/2/2006",
		"01-02-2006",
		"01/02/06",
		"1/2/06",
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
		"2 January 2006",
		time.RFC3339,
	}
)

// FieldValidator applies per-field-type rules. It is safe for concurrent use.
type FieldValidator struct {
	now      func() time.Time
	validate *validator.Validate
}

// NewFieldValidator creates a validator that reads the wall clock
func NewFieldValidator() *FieldValidator {
	return NewFieldValidatorWithClock(time.Now)
}

// NewFieldValidatorWithClock pins "today" for date rules
func NewFieldValidatorWithClock(now func() time.Time) *FieldValidator {
	return &FieldValidator{now: now, validate: validator.New()}
}

var defaultFieldValidator = NewFieldValidator()

// ValidateField validates with the package default validator
func ValidateField(fieldType FieldType, value string, confidence *float64) ValidationResult {
	return defaultFieldValidator.ValidateField(fieldType, value, confidence)
}

// ValidateField dispatches on fieldType. Confidence can only lower a valid result to a
// warning; it never makes a value invalid. Unknown types are reported as errors.
func (v *FieldValidator) ValidateField(fieldType FieldType, value string, confidence *float64) ValidationResult {
	switch fieldType {
	case FieldVendor:
		return v.ValidateVendor(value, confidence)
	case FieldAmount:
		return v.ValidateAmount(value, confidence)
	case FieldDate:
		return v.ValidateDate(value, confidence)
	case FieldDescription:
		return v.ValidateDescription(value)
	default:
		return failure(fmt.Sprintf("Unknown field type %q", fieldType), "Use vendor, amount, date or description")
	}
}

// ValidateVendor checks a merchant name
func (v *FieldValidator) ValidateVendor(value string, confidence *float64) ValidationResult {
	name := strings.TrimSpace(value)
	switch {
	case name == "":
		return failure("Vendor name is required", "Enter the store or company name")
	case utf8.RuneCountInString(name) < vendorMinLength:
		return failure("Vendor name is too short", "Enter the full store or company name")
	case strings.ContainsAny(name, vendorUnusualChars):
		return warning("Vendor name contains unusual characters", "Check for OCR errors in the name")
	case utf8.RuneCountInString(name) > vendorMaxLength:
		return warning("Vendor name is very long", "Shorten it to the business name only")
	case lowConfidence(confidence, vendorMinConfidence):
		return warning("Please verify the vendor name", "The name was hard to read on the receipt")
	}
	return info("Vendor name looks good")
}

// ValidateAmount checks a money value such as "$1,234.56"
func (v *FieldValidator) ValidateAmount(value string, confidence *float64) ValidationResult {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(value))
	amount, err := decimal.NewFromString(cleaned)
	switch {
	case err != nil || amount.IsZero():
		return failure("Amount is required", "Enter the amount shown on the receipt")
	case amount.IsNegative():
		return failure("Amount cannot be negative", "Enter the amount without a minus sign")
	case amount.LessThan(minAmount):
		return failure("Amount must be at least $0.01", "")
	case amount.GreaterThan(largeAmount):
		return warning("Large amount, please verify", "")
	case amount.Equal(amount.Truncate(0)) && amount.GreaterThan(roundAmountCeiling):
		return warning(
			"Round number; the decimal point may be missing",
			"$"+amount.Div(hundred).StringFixed(2),
		)
	case lowConfidence(confidence, amountMinConfidence):
		return warning("Please verify the amount", "The amount was hard to read on the receipt")
	}
	return info("Amount looks good")
}

// ValidateDate checks a purchase date against the validator's clock
func (v *FieldValidator) ValidateDate(value string, confidence *float64) ValidationResult {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return failure("Date is required", "Enter the purchase date")
	}

	date, ok := parseDate(raw)
	if !ok {
		res := failure("Invalid date format", "Use YYYY-MM-DD, MM/DD/YYYY or \"Jan 15, 2024\"")
		res.FormatExample = dateFormatExample
		return res
	}

	now := v.now()
	// First match wins: range problems, then low confidence, then the weekend note
	switch {
	case date.After(now.Add(24 * time.Hour)):
		return warning("Date is in the future", "Check the year and month")
	case date.Before(now.AddDate(-1, 0, 0)):
		return warning("Date is more than a year old", "Check the year")
	case lowConfidence(confidence, dateMinConfidence):
		return warning("Please verify the date", "The date was hard to read on the receipt")
	case date.Weekday() == time.Saturday || date.Weekday() == time.Sunday:
		return info("Purchase was made on a weekend")
	}
	return info("Date looks good")
}

// ValidateDescription checks free text. An empty description is fine.
func (v *FieldValidator) ValidateDescription(value string) ValidationResult {
	text := strings.TrimSpace(value)
	// Sensitive data outranks length; a long description with a card number reports the card number
	switch {
	case text == "":
		return info("Description is optional")
	case v.containsSensitiveData(text):
		return warning("Description may contain sensitive information", "Remove personal or payment details")
	case utf8.RuneCountInString(text) > descriptionMaxLength:
		return warning("Description is very long", "Keep it under 500 characters")
	}
	return info("Description looks good")
}

func (v *FieldValidator) containsSensitiveData(text string) bool {
	if reSSN.MatchString(text) || reCardNumber.MatchString(text) {
		return true
	}
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ".,;:()<>\"'")
		if strings.Contains(word, "@") && v.validate.Var(word, "email") == nil {
			return true
		}
	}
	return false
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func lowConfidence(c *float64, threshold float64) bool {
	return c != nil && *c < threshold
}
