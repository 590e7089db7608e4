// Package errors provides unified error handling for pipekit dataflows.
// It implements structured error types with machine-readable codes,
// cause chaining, and retryable detection.
package errors
