package locator

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the type of error
type ErrorCategory string

const (
	// ErrorCategoryCapture when no frame could be obtained
	ErrorCategoryCapture ErrorCategory = "capture"
	// ErrorCategoryStrategy when one detection step failed or panicked
	ErrorCategoryStrategy ErrorCategory = "strategy"
	// ErrorCategoryPersistence when a training sample could not be stored
	ErrorCategoryPersistence ErrorCategory = "persistence"
	// ErrorCategoryHealthCheck when preflight could not run
	ErrorCategoryHealthCheck ErrorCategory = "health_check"
	// ErrorCategoryExhausted when every strategy came back empty
	ErrorCategoryExhausted ErrorCategory = "exhausted"
)

// CategorizedError wraps an error with its category and, for strategy
// failures, the strategy that produced it
type CategorizedError struct {
	Category ErrorCategory
	Strategy string
	Message  string
	Original error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	prefix := string(e.Category)
	if e.Strategy != "" {
		prefix += ":" + e.Strategy
	}
	if e.Original == nil {
		return fmt.Sprintf("[%s] %s", prefix, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", prefix, e.Message, e.Original)
}

// Unwrap implements error unwrapping
func (e *CategorizedError) Unwrap() error {
	return e.Original
}

// NewCaptureError creates a capture error
func NewCaptureError(message string, err error) *CategorizedError {
	return &CategorizedError{Category: ErrorCategoryCapture, Message: message, Original: err}
}

// NewStrategyError creates an error attributed to one strategy
func NewStrategyError(strategy, message string, err error) *CategorizedError {
	return &CategorizedError{Category: ErrorCategoryStrategy, Strategy: strategy, Message: message, Original: err}
}

// NewPersistenceError creates a training store error
func NewPersistenceError(message string, err error) *CategorizedError {
	return &CategorizedError{Category: ErrorCategoryPersistence, Message: message, Original: err}
}

// NewHealthCheckError creates a preflight error
func NewHealthCheckError(message string, err error) *CategorizedError {
	return &CategorizedError{Category: ErrorCategoryHealthCheck, Message: message, Original: err}
}

// ErrExhausted is recorded when no strategy resolved the element
var ErrExhausted = &CategorizedError{Category: ErrorCategoryExhausted, Message: "no strategy resolved the element"}

// CategoryOf returns the category of err, or "" when err is not categorized
func CategoryOf(err error) ErrorCategory {
	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}
