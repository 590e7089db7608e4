package kafka

import "strings"

// Recoverable classifies broker failures worth reconnecting for. It is
// the kafka counterpart of ws.Recoverable and plugs into
// flow.StreamConfig.Recoverable.
func Recoverable(err error) bool {
	return IsConnectionError(err) || IsRetryableError(err)
}

// IsConnectionError checks for connection-level failures. kafka-go wraps
// most of these in strings, so matching is textual.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	connectionPatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"no route to host",
		"network is unreachable",
		"broker not available",
		"leader not available",
		"connection closed",
		"dial tcp",
		"network exception",
	}
	for _, p := range connectionPatterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}

// IsRetryableError reports transient broker conditions that clear on
// their own.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"temporary",
		"request timed out",
		"not enough replicas",
		"rebalance in progress",
		"group coordinator not available",
	}
	for _, p := range retryablePatterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}

// IsNonRetryableError reports failures that repeat deterministically, such
// as oversized or misaddressed messages.
func IsNonRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	nonRetryablePatterns := []string{
		"message too large",
		"invalid topic",
		"invalid partition",
		"unknown topic",
		"authorization failed",
	}
	for _, p := range nonRetryablePatterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}
