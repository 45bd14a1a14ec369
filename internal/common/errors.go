package common

import (
	"errors"
	"fmt"
	"time"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")

	// upload validation, detected before any provider call
	ErrNoFileUploaded      = errors.New("no file uploaded")
	ErrUnsupportedFileType = errors.New("unsupported file type: only PDF is accepted")
	ErrEmptyExtractedText  = errors.New("no extractable text found in PDF")

	// provider / parsing
	ErrInvalidResponseFormat = errors.New("provider response could not be parsed as JSON")
	ErrProviderQuotaExceeded = errors.New("provider quota exceeded")
	ErrProviderRateLimited   = errors.New("provider rate limited")
	ErrProviderAuth          = errors.New("provider authentication failed")
	ErrProviderFailure       = errors.New("provider request failed")

	// store
	ErrRecordNotFound          = errors.New("record not found")
	ErrStoreWrite              = errors.New("store write failed")
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	ErrQueueClosed = errors.New("queue is shutting down")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// StoreWriteError tags a persistence failure so callers can match ErrStoreWrite
// while keeping the driver error in the chain.
func StoreWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreWrite, op, err)
}

// ProviderError is returned by LLM provider clients. Kind is one of the
// ErrProvider* sentinels.
type ProviderError struct {
	Provider   string
	Kind       error
	StatusCode int
	RetryAfter time.Duration
	Message    string
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Kind
}

// RetryAfterHint extracts a provider retry hint from err, or 0.
func RetryAfterHint(err error) time.Duration {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}
