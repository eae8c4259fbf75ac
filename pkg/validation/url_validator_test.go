package validation

import (
	"testing"

	apperrors "github.com/anime-shed/receipt-inspector-go/internal/errors"
)

func TestNewURLValidator(t *testing.T) {
	validator := NewURLValidator()
	if validator == nil {
		t.Fatal("Expected non-nil URL validator")
	}

	expectedSchemes := []string{"http", "https", BlobScheme}
	if len(validator.allowedSchemes) != len(expectedSchemes) {
		t.Errorf("Expected %d schemes, got %d", len(expectedSchemes), len(validator.allowedSchemes))
	}

	for i, scheme := range expectedSchemes {
		if validator.allowedSchemes[i] != scheme {
			t.Errorf("Expected scheme %s, got %s", scheme, validator.allowedSchemes[i])
		}
	}
}

func TestValidateImageURL_ValidURLs(t *testing.T) {
	validator := NewURLValidator()

	validURLs := []string{
		"http://example.com/receipt.jpg",
		"https://example.com/receipt.png",
		"https://subdomain.example.com/path/to/receipt.webp",
		"azblob://receipts/2024/06/lunch.jpg",
	}

	for _, url := range validURLs {
		if err := validator.ValidateImageURL(url); err != nil {
			t.Errorf("Expected valid URL %s to pass validation, got error: %v", url, err)
		}
	}
}

func TestValidateImageURL_Rejected(t *testing.T) {
	validator := NewURLValidator()

	tests := []struct {
		url     string
		message string
	}{
		{"", "URL cannot be empty"},
		{"   ", "URL cannot be empty"},
		{"ftp://example.com/receipt.jpg", "URL scheme not allowed"},
		{"file://local/path/receipt.jpg", "URL scheme not allowed"},
		{"http://", "URL must have a valid host"},
		{"http:///path", "URL must have a valid host"},
		{"azblob://receipts", "Blob reference must name a blob"},
		{"azblob://receipts/", "Blob reference must name a blob"},
	}

	for _, tt := range tests {
		err := validator.ValidateImageURL(tt.url)
		if err == nil {
			t.Errorf("Expected URL '%s' to fail validation", tt.url)
			continue
		}
		appErr, ok := err.(*apperrors.AppError)
		if !ok {
			t.Errorf("Expected AppError, got: %T", err)
			continue
		}
		if appErr.Message != tt.message {
			t.Errorf("URL '%s': expected %q, got %q", tt.url, tt.message, appErr.Message)
		}
	}
}

func TestValidateImageURL_RestrictedHosts(t *testing.T) {
	validator := NewURLValidatorWithOptions([]string{"http", "https"}, []string{"example.com", "trusted.com"})

	for _, url := range []string{"http://example.com/a.jpg", "https://trusted.com/b.png"} {
		if err := validator.ValidateImageURL(url); err != nil {
			t.Errorf("Expected allowed host URL '%s' to pass validation, got error: %v", url, err)
		}
	}

	for _, url := range []string{"http://malicious.com/a.jpg", "azblob://receipts/a.jpg"} {
		if err := validator.ValidateImageURL(url); err == nil {
			t.Errorf("Expected URL '%s' to fail validation", url)
		}
	}
}
