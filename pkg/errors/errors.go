package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies application errors
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a rule violation or a missing required field
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConflict indicates a conflict with existing data
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeInternal indicates an internal error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from an external service
	ErrorTypeExternal ErrorType = "EXTERNAL"

	// ErrorTypeProvider indicates the completion provider call failed or timed out
	ErrorTypeProvider ErrorType = "PROVIDER"

	// ErrorTypeParse indicates a malformed completion provider response
	ErrorTypeParse ErrorType = "PARSE"

	// ErrorTypeAlreadyFinalized indicates a transition on a finalized acte
	ErrorTypeAlreadyFinalized ErrorType = "ALREADY_FINALIZED"

	// ErrorTypeLowConfidence indicates a validation attempt below the confidence threshold
	ErrorTypeLowConfidence ErrorType = "LOW_CONFIDENCE"

	// ErrorTypeFinalizedAct indicates an override attempt on a finalized acte
	ErrorTypeFinalizedAct ErrorType = "FINALIZED_ACT"

	// ErrorTypeAnchor indicates a ledger anchoring failure (retryable in background)
	ErrorTypeAnchor ErrorType = "ANCHOR"

	// ErrorTypeIntegrityDivergence indicates a mismatch between local state and the ledger
	ErrorTypeIntegrityDivergence ErrorType = "INTEGRITY_DIVERGENCE"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{Type: ErrorTypeNotFound, Message: message}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{Type: ErrorTypeValidation, Message: message}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) *AppError {
	return &AppError{Type: ErrorTypeConflict, Message: message}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeExternal, Message: message, Err: err}
}

// NewProviderError creates a new completion provider error
func NewProviderError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeProvider, Message: message, Err: err}
}

// NewParseError creates a new provider response parse error
func NewParseError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeParse, Message: message, Err: err}
}

// NewAlreadyFinalizedError creates a new already finalized error
func NewAlreadyFinalizedError(message string) *AppError {
	return &AppError{Type: ErrorTypeAlreadyFinalized, Message: message}
}

// NewLowConfidenceError creates a new low confidence error
func NewLowConfidenceError(message string) *AppError {
	return &AppError{Type: ErrorTypeLowConfidence, Message: message}
}

// NewFinalizedActError creates a new finalized acte error
func NewFinalizedActError(message string) *AppError {
	return &AppError{Type: ErrorTypeFinalizedAct, Message: message}
}

// NewAnchorError creates a new anchoring error
func NewAnchorError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeAnchor, Message: message, Err: err}
}

// NewIntegrityDivergenceError creates a new integrity divergence error
func NewIntegrityDivergenceError(message string) *AppError {
	return &AppError{Type: ErrorTypeIntegrityDivergence, Message: message}
}
