// Package resilience provides retry with configurable exponential backoff.
//
// The retry engine drives every repeated-attempt loop in the module:
// backpressure-aware puts and stream reconnection both build their delay
// schedules from a RetryConfig.
//
//	cfg := resilience.DefaultRetryConfig()
//	cfg.MaxAttempts = 5
//
//	err := resilience.RetryFunc(ctx, cfg, func() error {
//	    return dest.Put(ctx, item)
//	})
//
// Backoff exposes the raw delay computation for callers that manage their
// own attempt loop, such as the reconnecting stream supervisor.
package resilience
