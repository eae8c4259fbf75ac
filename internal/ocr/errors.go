package ocr

import (
	"context"
	"errors"
	"net"
	"strings"

	apperrors "github.com/anime-shed/receipt-inspector-go/internal/errors"
)

// ErrNoText is returned when the provider answered but found nothing readable
var ErrNoText = errors.New("no text recognized")

// ErrorClass is the category recorded for a failed vision step
type ErrorClass string

const (
	ClassTimeout ErrorClass = "timeout"
	ClassNetwork ErrorClass = "network"
	ClassAuth    ErrorClass = "auth"
	ClassNoText  ErrorClass = "no_text"
	ClassUnknown ErrorClass = "unknown"
)

// ClassifyError maps a Recognize failure onto an ErrorClass
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), apperrors.IsType(err, apperrors.ErrorTypeTimeout):
		return ClassTimeout
	case errors.Is(err, ErrNoText):
		return ClassNoText
	case apperrors.IsType(err, apperrors.ErrorTypeUnauthorized):
		return ClassAuth
	case apperrors.IsType(err, apperrors.ErrorTypeNetwork):
		return ClassNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ClassTimeout
		}
		return ClassNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline") || strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return ClassTimeout
	case strings.Contains(msg, "unauthenticated") || strings.Contains(msg, "permission") ||
		strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "credential"):
		return ClassAuth
	case strings.Contains(msg, "connection") || strings.Contains(msg, "unavailable") || strings.Contains(msg, "dial"):
		return ClassNetwork
	}
	return ClassUnknown
}
