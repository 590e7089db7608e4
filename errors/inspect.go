package errors

import (
	stderrors "errors"
)

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost AppError in the chain, or an
// empty code when there is none.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether any AppError in the chain carries the given code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Unwrap()
	}
	return false
}

// IsPipeFull reports whether the error is a pipe-full failure, the
// condition transfer loops must log as data loss.
func IsPipeFull(err error) bool {
	return IsCode(err, ErrCodePipeFull)
}

// IsReconnect reports whether the error is the internal reconnect signal.
func IsReconnect(err error) bool {
	return IsCode(err, ErrCodeReconnect)
}

// IsConnection reports whether the error is a fatal connection loss.
func IsConnection(err error) bool {
	return IsCode(err, ErrCodeConnectionLost)
}

// IsRetryable reports whether the error is an AppError marked retryable.
func IsRetryable(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Retryable
	}
	return false
}
