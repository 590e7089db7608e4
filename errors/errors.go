package errors

import (
	"fmt"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is matches another AppError by code, so errors.Is works against a coded
// target without sharing the instance. Targets without a code never match.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code != "" && t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Pipe Error Constructors ---

// PipeFull creates a new AppError for a put that found no buffer space
// within its retry budget.
func PipeFull(capacity int) *AppError {
	return &AppError{
		Code: ErrCodePipeFull, Message: "Pipe buffer is full.",
		Retryable: true,
		Details:   map[string]any{"capacity": capacity},
	}
}

// PipeStopped creates a new AppError for a put into a stopped pipe.
func PipeStopped() *AppError {
	return &AppError{
		Code: ErrCodePipeStopped, Message: "Pipe is stopped and no longer accepts items.",
		Retryable: false,
	}
}

// --- Transfer Error Constructors ---

// SourceGet creates a new AppError for a failed read from a transfer source.
func SourceGet(cause error) *AppError {
	return &AppError{
		Code: ErrCodeSourceGet, Message: "Reading from the source failed.",
		Retryable: false, Cause: cause,
	}
}

// DestinationPut creates a new AppError for a failed write to a transfer destination.
func DestinationPut(cause error) *AppError {
	return &AppError{
		Code: ErrCodeDestinationPut, Message: "Writing to the destination failed.",
		Retryable: false, Cause: cause,
	}
}

// ConditionalGet creates a new AppError for an admission predicate that
// raised while filtering a get.
func ConditionalGet(cause error) *AppError {
	return &AppError{
		Code: ErrCodeConditionalGet, Message: "Get admission predicate failed.",
		Retryable: false, Cause: cause,
	}
}

// ConditionalPut creates a new AppError for an admission predicate that
// raised while filtering a put.
func ConditionalPut(cause error) *AppError {
	return &AppError{
		Code: ErrCodeConditionalPut, Message: "Put admission predicate failed.",
		Retryable: false, Cause: cause,
	}
}

// Transform creates a new AppError for a handler invocation that failed.
func Transform(cause error) *AppError {
	return &AppError{
		Code: ErrCodeTransform, Message: "Transforming the item failed.",
		Retryable: false, Cause: cause,
	}
}

// Generator creates a new AppError for a streamed handler result whose
// expansion into individual items failed.
func Generator(cause error) *AppError {
	return &AppError{
		Code: ErrCodeGenerator, Message: "Expanding the transformed result failed.",
		Retryable: false, Cause: cause,
	}
}

// Hook creates a new AppError for a transfer hook that failed or panicked.
func Hook(name string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeHook, Message: fmt.Sprintf("Hook %s failed.", name),
		Retryable: false, Cause: cause,
		Details: map[string]any{"hook": name},
	}
}

// --- Stream Error Constructors ---

// Reconnect creates the recoverable-failure signal consumed by the
// reconnect supervisor.
func Reconnect(cause error) *AppError {
	return &AppError{
		Code: ErrCodeReconnect, Message: "Stream failed with a recoverable error.",
		Retryable: true, Cause: cause,
	}
}

// ConnectionLost creates a new AppError for an exhausted reconnect budget.
func ConnectionLost(attempts int, cause error) *AppError {
	return &AppError{
		Code: ErrCodeConnectionLost, Message: "Stream connection lost and could not be reestablished.",
		Retryable: false, Cause: cause,
		Details: map[string]any{"attempts": attempts},
	}
}

// --- Validation Error Constructors ---

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		Retryable: false,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		Retryable: false,
		Details:   map[string]any{"field": field},
	}
}

// Internal creates a new AppError for an unexpected internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		Retryable: false, Cause: cause,
	}
}
