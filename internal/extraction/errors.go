package extraction

import (
	"context"
	"errors"
	"fmt"

	"casework/internal/casefile"
	"casework/pkg/platform/sentinel"
)

// ErrorCategory defines the normalized extraction failure taxonomy
type ErrorCategory string

const (
	// ErrorTimeout indicates the extractor took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the extractor output did not match the document schema
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorUnsupported indicates no extractor handles the document's format
	ErrorUnsupported ErrorCategory = "unsupported"

	// ErrorProviderOutage indicates the extraction backend is unavailable
	ErrorProviderOutage ErrorCategory = "provider_outage"

	// ErrorNotFound indicates the document was not supplied
	ErrorNotFound ErrorCategory = "not_found"

	// ErrorInternal indicates an unexpected internal error
	ErrorInternal ErrorCategory = "internal"
)

// ExtractionError wraps a per-document failure with normalized categorization.
type ExtractionError struct {
	Kind      casefile.Kind
	Category  ErrorCategory
	Cause     string
	Err       error
	Retryable bool
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s [%s]: %s: %v", e.Kind, e.Category, e.Cause, e.Err)
	}
	return fmt.Sprintf("extract %s [%s]: %s", e.Kind, e.Category, e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewExtractionError creates a normalized extraction error.
func NewExtractionError(kind casefile.Kind, category ErrorCategory, cause string, err error) *ExtractionError {
	return &ExtractionError{
		Kind:      kind,
		Category:  category,
		Cause:     cause,
		Err:       err,
		Retryable: category == ErrorTimeout || category == ErrorProviderOutage,
	}
}

// Classify normalizes an extractor error. Errors already carrying a category
// keep it; otherwise the category is inferred from well-known causes.
func Classify(kind casefile.Kind, err error) *ExtractionError {
	if err == nil {
		return nil
	}
	var ee *ExtractionError
	if errors.As(err, &ee) {
		if ee.Kind == "" {
			ee.Kind = kind
		}
		return ee
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewExtractionError(kind, ErrorTimeout, "extractor timed out", err)
	case errors.Is(err, context.Canceled):
		return NewExtractionError(kind, ErrorTimeout, "extraction cancelled", err)
	case errors.Is(err, sentinel.ErrUnavailable):
		return NewExtractionError(kind, ErrorProviderOutage, "extraction backend unavailable", err)
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrExtractorNotFound):
		return NewExtractionError(kind, ErrorUnsupported, "unsupported document format", err)
	case errors.Is(err, casefile.ErrNoRecognisedFields):
		return NewExtractionError(kind, ErrorBadData, "document matched no known fields", err)
	}
	return NewExtractionError(kind, ErrorInternal, "extractor failed", err)
}

// IsRetryable checks if an error is worth retrying
func IsRetryable(err error) bool {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error
func GetCategory(err error) ErrorCategory {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ErrorInternal
}

var (
	// ErrAllDocumentsFailed is returned when none of the four documents extracted.
	ErrAllDocumentsFailed = errors.New("all documents failed")
	// ErrUnsupportedFormat is returned by extractors and the router for content they cannot read.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrExtractorNotFound is returned when no extractor is registered for a kind.
	ErrExtractorNotFound = errors.New("extractor not found")
)
