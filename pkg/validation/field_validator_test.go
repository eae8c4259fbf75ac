package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock() func() time.Time {
	// Thursday
	return func() time.Time { return time.Date(2024, time.June, 20, 12, 0, 0, 0, time.Local) }
}

func conf(v float64) *float64 { return &v }

func TestValidateAmount_RoundNumberSuggestsDecimal(t *testing.T) {
	res := NewFieldValidator().ValidateAmount("1500", conf(0.9))

	assert.True(t, res.IsValid)
	assert.Equal(t, SeverityWarning, res.Severity)
	assert.Contains(t, res.Message, "decimal")
	assert.Equal(t, "$15.00", res.Suggestion)
}

func TestValidateAmount(t *testing.T) {
	v := NewFieldValidator()

	tests := []struct {
		name       string
		value      string
		confidence *float64
		valid      bool
		severity   Severity
	}{
		{"negative", "-5", nil, false, SeverityError},
		{"empty", "", nil, false, SeverityError},
		{"zero", "$0.00", nil, false, SeverityError},
		{"not a number", "abc", nil, false, SeverityError},
		{"below a cent", "0.004", nil, false, SeverityError},
		{"large", "$75,000.00", nil, true, SeverityWarning},
		{"low confidence", "12.34", conf(0.4), true, SeverityWarning},
		{"plain", "$1,234.56", conf(0.95), true, SeverityInfo},
		{"small round", "20", nil, true, SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidateAmount(tt.value, tt.confidence)
			if res.IsValid != tt.valid {
				t.Errorf("Expected IsValid=%v, got %v (%s)", tt.valid, res.IsValid, res.Message)
			}
			if res.Severity != tt.severity {
				t.Errorf("Expected severity %s, got %s (%s)", tt.severity, res.Severity, res.Message)
			}
		})
	}
}

func TestValidateDate(t *testing.T) {
	v := NewFieldValidatorWithClock(fixedClock())

	tests := []struct {
		name       string
		value      string
		confidence *float64
		valid      bool
		severity   Severity
		message    string
	}{
		{"future", "2099-01-01", nil, true, SeverityWarning, "future"},
		{"tomorrow is tolerated", "2024-06-21", nil, true, SeverityInfo, "looks good"},
		{"old", "2023-01-02", nil, true, SeverityWarning, "year"},
		{"weekend", "2024-06-15", nil, true, SeverityInfo, "weekend"},
		{"weekday", "06/18/2024", nil, true, SeverityInfo, "looks good"},
		{"month name", "Jun 18, 2024", nil, true, SeverityInfo, "looks good"},
		{"low confidence", "2024-06-18", conf(0.3), true, SeverityWarning, "verify"},
		{"low confidence weekend", "2024-06-15", conf(0.3), true, SeverityWarning, "verify"},
		{"low confidence future", "2099-01-01", conf(0.3), true, SeverityWarning, "future"},
		{"confident weekend", "2024-06-15", conf(0.95), true, SeverityInfo, "weekend"},
		{"empty", "  ", nil, false, SeverityError, "required"},
		{"garbage", "18th of never", nil, false, SeverityError, "Invalid date format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidateDate(tt.value, tt.confidence)
			assert.Equal(t, tt.valid, res.IsValid)
			assert.Equal(t, tt.severity, res.Severity)
			assert.Contains(t, res.Message, tt.message)
		})
	}
}

func TestValidateDate_InvalidFormatCarriesExample(t *testing.T) {
	res := NewFieldValidator().ValidateDate("31/31/31", nil)
	assert.False(t, res.IsValid)
	assert.Equal(t, dateFormatExample, res.FormatExample)
	assert.NotEmpty(t, res.Suggestion)
}

func TestValidateVendor(t *testing.T) {
	v := NewFieldValidator()

	tests := []struct {
		name       string
		value      string
		confidence *float64
		valid      bool
		severity   Severity
	}{
		{"empty", "", nil, false, SeverityError},
		{"single char", "A", nil, false, SeverityError},
		{"unusual chars", "ACME {MART}", nil, true, SeverityWarning},
		{"very long", strings.Repeat("a", 101), nil, true, SeverityWarning},
		{"low confidence", "Corner Shop", conf(0.2), true, SeverityWarning},
		{"good", "Corner Shop", conf(0.9), true, SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidateVendor(tt.value, tt.confidence)
			assert.Equal(t, tt.valid, res.IsValid)
			assert.Equal(t, tt.severity, res.Severity)
		})
	}
}

func TestValidateDescription(t *testing.T) {
	v := NewFieldValidator()

	tests := []struct {
		name     string
		value    string
		severity Severity
		message  string
	}{
		{"empty", "", SeverityInfo, "optional"},
		{"plain", "Team lunch", SeverityInfo, "looks good"},
		{"ssn", "ref 123-45-6789", SeverityWarning, "sensitive"},
		{"card", "paid with 4111 1111 1111 1111", SeverityWarning, "sensitive"},
		{"email", "send copy to jane.doe@example.com.", SeverityWarning, "sensitive"},
		{"long", strings.Repeat("x", 501), SeverityWarning, "very long"},
		{"long with card number", strings.Repeat("x ", 260) + "4111 1111 1111 1111", SeverityWarning, "sensitive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidateDescription(tt.value)
			if !res.IsValid {
				t.Errorf("Expected description to always be valid, got %+v", res)
			}
			if res.Severity != tt.severity {
				t.Errorf("Expected severity %s, got %s", tt.severity, res.Severity)
			}
			assert.Contains(t, res.Message, tt.message)
		})
	}
}

func TestValidateField_UnknownType(t *testing.T) {
	res := ValidateField(FieldType("color"), "red", nil)
	assert.False(t, res.IsValid)
	assert.Equal(t, SeverityError, res.Severity)
}

func TestParseFieldType(t *testing.T) {
	ft, ok := ParseFieldType(" Amount ")
	assert.True(t, ok)
	assert.Equal(t, FieldAmount, ft)

	_, ok = ParseFieldType("total")
	assert.False(t, ok)
}

// Confidence alone must never turn a valid value invalid
func TestValidateField_ConfidenceNeverInvalidates(t *testing.T) {
	v := NewFieldValidatorWithClock(fixedClock())

	values := map[FieldType][]string{
		FieldVendor:      {"", "A", "Corner Shop", "ACME <MART>", strings.Repeat("b", 120)},
		FieldAmount:      {"", "-5", "0.001", "12.34", "1500", "99999", "abc"},
		FieldDate:        {"", "garbage", "2024-06-18", "2024-06-15", "2099-01-01", "2001-01-01"},
		FieldDescription: {"", "lunch", "123-45-6789", strings.Repeat("x", 600)},
	}
	confidences := []float64{0, 0.1, 0.49, 0.5, 0.59, 0.6, 0.9, 1}

	for fieldType, vals := range values {
		for _, value := range vals {
			base := v.ValidateField(fieldType, value, nil)
			for _, c := range confidences {
				res := v.ValidateField(fieldType, value, conf(c))
				if base.IsValid && !res.IsValid {
					t.Errorf("%s %q: confidence %v made a valid value invalid", fieldType, value, c)
				}
				if res.Severity == SeverityError && base.Severity != SeverityError {
					t.Errorf("%s %q: confidence %v produced an error", fieldType, value, c)
				}
			}
		}
	}
}

func TestValidateField_DoesNotMutateInput(t *testing.T) {
	value := " $1,500 "
	before := value
	_ = ValidateField(FieldAmount, value, nil)
	assert.Equal(t, before, value)
}
