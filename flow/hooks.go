package flow

import (
	"context"
	stderrors "errors"

	"github.com/kbukum/pipekit/errlog"
	"github.com/kbukum/pipekit/logger"
)

// Hooks are optional callbacks observing the phases of a transfer. All are
// invoked through a Call envelope, so a panicking hook surfaces as a hook
// error instead of crashing the loop. Hook failures are recorded and
// swallowed unless the transfer escalates them, in which case they are
// joined after the phase's own outcome and never mask it.
type Hooks[In, Out any] struct {
	// OnSuccessfulGet runs after an item is retrieved, before the transform.
	OnSuccessfulGet func(ctx context.Context, v In) error
	// OnFailedGet runs when retrieving from the source fails.
	OnFailedGet func(ctx context.Context, err error) error
	// OnFailedTransform runs when the handler fails for an item.
	OnFailedTransform func(ctx context.Context, v In, err error) error
	// OnSuccessfulPut runs after each value is delivered downstream.
	OnSuccessfulPut func(ctx context.Context, v Out) error
	// OnFailedPut runs when delivering a value downstream fails.
	OnFailedPut func(ctx context.Context, v Out, err error) error
}

// hookRunner executes hooks with the transfer's escalation policy.
type hookRunner struct {
	raise bool
	rec   *errlog.Recorder
	log   *logger.Logger
}

func newHookRunner(raise bool, rec *errlog.Recorder, log *logger.Logger) *hookRunner {
	return &hookRunner{raise: raise, rec: rec, log: logger.OrNop(log)}
}

// run invokes one hook. It returns nil when the hook succeeds or when hook
// failures are swallowed; otherwise it returns the hook error for the
// caller to join with the phase outcome.
func (r *hookRunner) run(ctx context.Context, name string, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	err := NewCall(name, fn, r.log).Invoke(ctx)
	if err == nil {
		return nil
	}
	r.rec.Record(err, "hook failed")
	if r.raise {
		return err
	}
	return nil
}

// escalate merges a hook failure into the phase outcome. The phase outcome
// always leads so a failing hook cannot hide the failure it observed.
func escalate(primary, hookErr error) error {
	switch {
	case hookErr == nil:
		return primary
	case primary == nil:
		return hookErr
	default:
		return stderrors.Join(primary, hookErr)
	}
}
