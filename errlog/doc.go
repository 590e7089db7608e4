// Package errlog provides de-duplicated error-chain logging and a shielding
// wrapper for flow callbacks.
//
// A Recorder remembers which errors it has already logged so that the same
// error value, re-wrapped and re-reported as it climbs a call chain, produces
// its message chain exactly once. Recorders are scoped to whatever owns them,
// typically one per fitting, and are discarded with their owner.
//
// Shield wraps a per-item callback and classifies its failures: cancellation
// is logged and optionally swallowed, allow-listed errors are logged and
// returned unchanged, and everything else is logged and converted into a
// typed error carrying the item that triggered it.
//
// Usage:
//
//	rec := errlog.NewRecorder(log)
//	rec.Record(err, "transfer failed")
//
//	put = errlog.Shield(errlog.ShieldConfig{Recorder: rec}, put)
package errlog
