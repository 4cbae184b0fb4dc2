package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRetryFailed      = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError  = errors.New("client HTTP error (4xx)")          // Wraps original error/status
	ErrServerHTTPError  = errors.New("server HTTP error (5xx)")          // Wraps original error/status
	ErrOtherHTTPError   = errors.New("other HTTP error (non-2xx)")       // Wraps original error/status
	ErrHTTPStatus       = errors.New("non-2xx HTTP status")
	ErrContentType      = errors.New("not an image content type")
	ErrTooLarge         = errors.New("image exceeds maximum file size")
	ErrTimeout          = errors.New("image fetch timed out")
	ErrNetwork          = errors.New("network error")
	ErrDimensions       = errors.New("failed to read image dimensions")
	ErrSizeBounds       = errors.New("image dimensions out of bounds")
	ErrHashing          = errors.New("image hashing failed")
	ErrParsing          = errors.New("parsing error")    // Wraps specific parsing error (HTML, URL, JSON)
	ErrFilesystem       = errors.New("filesystem error") // Wraps os errors
	ErrDatabase         = errors.New("database error")   // Wraps badger errors
	ErrCacheBackend     = errors.New("cache backend error")
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrConfigValidation = errors.New("configuration validation error")
)

// Outcome categories reported on ImageMetadata.Outcome and used as metric labels
const (
	OutcomeOK           = "ok"
	OutcomeHTTPError    = "http_error"
	OutcomeContentType  = "content_type"
	OutcomeTooLarge     = "too_large"
	OutcomeTimeout      = "timeout"
	OutcomeNetworkError = "network_error"
	OutcomeDimensions   = "dimensions"
	OutcomeSizeBounds   = "size_bounds"
	OutcomeCanceled     = "canceled"
	OutcomeUnknown      = "unknown"
)

// WrapErrorf prefixes err with a formatted message, keeping it matchable with errors.Is.
// Returns nil if err is nil.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// CategorizeError maps an error to a fetch outcome category for metadata and metrics.
func CategorizeError(err error) string {
	if err == nil {
		return OutcomeOK
	}

	// Check against sentinel errors first
	switch {
	case errors.Is(err, ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, ErrHTTPStatus),
		errors.Is(err, ErrClientHTTPError),
		errors.Is(err, ErrServerHTTPError),
		errors.Is(err, ErrOtherHTTPError):
		return OutcomeHTTPError
	case errors.Is(err, ErrContentType):
		return OutcomeContentType
	case errors.Is(err, ErrTooLarge):
		return OutcomeTooLarge
	case errors.Is(err, ErrDimensions):
		return OutcomeDimensions
	case errors.Is(err, ErrSizeBounds):
		return OutcomeSizeBounds
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrResponseBodyRead), errors.Is(err, ErrRequestCreation):
		// A network sentinel may still wrap a deadline; prefer the timeout category then
		if errors.Is(err, context.DeadlineExceeded) || isNetTimeout(err) {
			return OutcomeTimeout
		}
		return OutcomeNetworkError
	case errors.Is(err, ErrRetryFailed):
		underlying := errors.Unwrap(err)
		if underlying != nil && (errors.Is(underlying, ErrServerHTTPError) || errors.Is(underlying, ErrClientHTTPError)) {
			return OutcomeHTTPError
		}
		return OutcomeNetworkError
	}

	// --- Fallback checks for common underlying error types/strings ---
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return OutcomeCanceled
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return OutcomeTimeout
		}
		return OutcomeNetworkError
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return OutcomeTimeout
	}

	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"):
		return OutcomeTimeout
	case strings.Contains(lowerErrMsg, "connection refused"),
		strings.Contains(lowerErrMsg, "no such host"),
		strings.Contains(lowerErrMsg, "reset by peer"),
		strings.Contains(lowerErrMsg, "broken pipe"),
		strings.Contains(lowerErrMsg, "tls"),
		strings.Contains(lowerErrMsg, "eof"):
		return OutcomeNetworkError
	}

	return OutcomeUnknown
}

func isNetTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
