package models

// URLProcessingRequest asks for a receipt to be fetched and processed.
// URL is http(s) or an azblob://container/blob reference.
type URLProcessingRequest struct {
	URL          string `json:"url" binding:"required"`
	DocumentType string `json:"document_type,omitempty"`
	ExpectedText string `json:"expected_text,omitempty"`
	ForceOCR     bool   `json:"force_ocr,omitempty"`
}

// ValidateFieldRequest runs the field validator on a single user-edited value
type ValidateFieldRequest struct {
	FieldType  string   `json:"field_type" binding:"required"`
	Value      string   `json:"value"`
	Confidence *float64 `json:"confidence,omitempty" binding:"omitempty,min=0,max=1"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
