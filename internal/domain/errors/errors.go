package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures across the auction core.
type ErrorType string

const (
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeStateConflict      ErrorType = "state_conflict"
	ErrorTypeAuthorization      ErrorType = "authorization"
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeResourceExhausted  ErrorType = "resource_exhausted"
	ErrorTypeInvariantViolation ErrorType = "invariant_violation"
	ErrorTypeTransient          ErrorType = "transient"
	ErrorTypeInternal           ErrorType = "internal"
)

// AppError is the structured error carried between the engine and its callers.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

func NewStateConflictError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeStateConflict,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 409,
	}
}

func NewAuthorizationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeAuthorization,
		Code:       "FORBIDDEN",
		Message:    message,
		Retryable:  false,
		StatusCode: 403,
	}
}

func NewUnauthenticatedError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeAuthorization,
		Code:       "UNAUTHENTICATED",
		Message:    message,
		Retryable:  false,
		StatusCode: 401,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		Retryable:  false,
		StatusCode: 404,
	}
}

func NewResourceExhaustedError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeResourceExhausted,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 409,
	}
}

// NewInvariantViolationError marks internal corruption. The owning
// coordinator halts after broadcasting the failure.
func NewInvariantViolationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInvariantViolation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 500,
	}
}

func NewTransientError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeTransient,
		Code:       "TRANSIENT",
		Message:    message,
		Retryable:  true,
		StatusCode: 503,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

// Predefined common errors
var (
	ErrAuctionNotFound = NewNotFoundError("auction")
	ErrTeamNotFound    = NewNotFoundError("team")
	ErrPlayerNotFound  = NewNotFoundError("player")
	ErrTradeNotFound   = NewNotFoundError("trade")
	ErrStaleVersion    = NewStateConflictError("STALE_VERSION", "Entity was modified concurrently")
	ErrAuctionNotLive  = NewStateConflictError("AUCTION_NOT_LIVE", "Auction is not live")
	ErrUndoStackEmpty  = NewResourceExhaustedError("UNDO_STACK_EMPTY", "No reversible action available")
)

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode extracts HTTP status code from error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 500
}

// Code extracts the machine-readable code, or "INTERNAL_ERROR".
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "INTERNAL_ERROR"
}
