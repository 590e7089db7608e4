package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Pipe state errors
const (
	// ErrCodePipeFull indicates a put could not complete because the pipe
	// buffer stayed full for the whole retry budget.
	ErrCodePipeFull ErrorCode = "PIPE_FULL"
	// ErrCodePipeStopped indicates a put was attempted on a stopped pipe.
	ErrCodePipeStopped ErrorCode = "PIPE_STOPPED"
)

// Transfer errors, one per phase of the move loop
const (
	// ErrCodeSourceGet indicates reading an item from the source failed.
	ErrCodeSourceGet ErrorCode = "SOURCE_GET"
	// ErrCodeDestinationPut indicates writing an item to the destination failed.
	ErrCodeDestinationPut ErrorCode = "DESTINATION_PUT"
	// ErrCodeConditionalGet indicates an admission predicate raised during a get.
	ErrCodeConditionalGet ErrorCode = "CONDITIONAL_GET"
	// ErrCodeConditionalPut indicates an admission predicate raised during a put.
	ErrCodeConditionalPut ErrorCode = "CONDITIONAL_PUT"
	// ErrCodeTransform indicates a handler invocation failed.
	ErrCodeTransform ErrorCode = "TRANSFORM"
	// ErrCodeGenerator indicates expanding a streamed handler result failed.
	ErrCodeGenerator ErrorCode = "GENERATOR"
	// ErrCodeHook indicates a transfer hook failed or panicked.
	ErrCodeHook ErrorCode = "HOOK"
)

// Stream errors
const (
	// ErrCodeReconnect signals a recoverable stream failure to the
	// reconnect supervisor. It never reaches callers of a supervised run.
	ErrCodeReconnect ErrorCode = "RECONNECT"
	// ErrCodeConnectionLost indicates the reconnect budget was exhausted.
	ErrCodeConnectionLost ErrorCode = "CONNECTION_LOST"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodePipeFull:  true,
	ErrCodeReconnect: true,
	ErrCodeInternal:  false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
