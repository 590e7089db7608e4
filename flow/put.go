package flow

import (
	"context"
	"time"

	"github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/pipe"
	"github.com/kbukum/pipekit/resilience"
)

// Delivery retry defaults. A single attempt waits up to the attempt
// timeout for buffer space; backoff between attempts doubles and is capped.
const (
	DefaultPutAttemptTimeout = 100 * time.Millisecond
	DefaultPutMaxAttempts    = 3
	DefaultPutMaxBackoff     = time.Second
)

// PutConfig bounds one delivery into a backpressured destination.
type PutConfig struct {
	// AttemptTimeout caps how long a single put waits for buffer space.
	AttemptTimeout time.Duration
	// Retry shapes the additional attempts made while the destination
	// stays full. Unless RetryIf is set explicitly, only full-buffer
	// failures are retried; a stopped destination fails immediately.
	Retry resilience.RetryConfig
}

// DefaultPutConfig returns the delivery bounds used when a transfer does
// not specify its own.
func DefaultPutConfig() PutConfig {
	return PutConfig{
		AttemptTimeout: DefaultPutAttemptTimeout,
		Retry: resilience.RetryConfig{
			MaxAttempts:    DefaultPutMaxAttempts,
			InitialBackoff: DefaultPutAttemptTimeout,
			MaxBackoff:     DefaultPutMaxBackoff,
			BackoffFactor:  2.0,
		},
	}
}

func (c PutConfig) withDefaults() PutConfig {
	d := DefaultPutConfig()
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = d.AttemptTimeout
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = d.Retry.MaxAttempts
	}
	if c.Retry.InitialBackoff <= 0 {
		c.Retry.InitialBackoff = d.Retry.InitialBackoff
	}
	if c.Retry.MaxBackoff <= 0 {
		c.Retry.MaxBackoff = d.Retry.MaxBackoff
	}
	if c.Retry.BackoffFactor <= 0 {
		c.Retry.BackoffFactor = d.Retry.BackoffFactor
	}
	return c
}

// putValue delivers one value, retrying full-buffer failures within the
// config's budget. It returns the number of attempts made alongside the
// outcome. Exhausting the budget returns the last full-buffer error, so
// callers can tell lost data apart from other failures. Cancellation of
// ctx surfaces as the context's own error, never as a full buffer.
func putValue[T any](ctx context.Context, dst Destination[T], v T, cfg PutConfig, log *logger.Logger) (int, error) {
	log = logger.OrNop(log)
	rcfg := cfg.Retry
	if rcfg.RetryIf == nil {
		rcfg.RetryIf = func(err error) bool {
			return errors.IsCode(err, errors.ErrCodePipeFull)
		}
	}
	onRetry := rcfg.OnRetry
	rcfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		log.Debug("Destination is full, backing off before retrying", logger.Fields(
			logger.FieldAttempt, attempt,
			"backoff", backoff.String(),
		))
		if onRetry != nil {
			onRetry(attempt, err, backoff)
		}
	}

	attempts := 0
	err := resilience.RetryFunc(ctx, rcfg, func() error {
		attempts++
		actx, cancel := context.WithTimeout(ctx, cfg.AttemptTimeout)
		defer cancel()
		return dst.Put(actx, v)
	})
	return attempts, err
}

// Values abstracts the shapes a conditional put accepts: a single value, a
// fixed batch, or a streamed sequence. The zero value holds nothing.
type Values[T any] struct {
	it pipe.Iterator[T]
}

// One wraps a single value.
func One[T any](v T) Values[T] { return Values[T]{it: pipe.FromSlice([]T{v})} }

// Many wraps a fixed batch delivered in order.
func Many[T any](vs ...T) Values[T] { return Values[T]{it: pipe.FromSlice(vs)} }

// FromIterator wraps a streamed sequence.
func FromIterator[T any](it pipe.Iterator[T]) Values[T] { return Values[T]{it: it} }

// PutOnCondition delivers each value that passes the admission predicate,
// honoring the destination's backpressure within the put budget. A nil
// predicate admits everything. The first failure stops the sequence: a
// full destination surfaces as a full-buffer error for the caller to treat
// as data loss, and a predicate failure surfaces as a conditional-put
// error.
func PutOnCondition[T any](ctx context.Context, vals Values[T], dst Destination[T], admit func(T) (bool, error), cfg PutConfig, log *logger.Logger) error {
	if vals.it == nil {
		return nil
	}
	cfg = cfg.withDefaults()
	log = logger.OrNop(log)
	for {
		v, ok, err := vals.it.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return errors.Generator(err)
		}
		if !ok {
			return nil
		}
		if admit != nil {
			keep, aerr := admit(v)
			if aerr != nil {
				return errors.ConditionalPut(aerr)
			}
			if !keep {
				continue
			}
		}
		if _, err := putValue(ctx, dst, v, cfg, log); err != nil {
			return err
		}
	}
}

// GetOnCondition retrieves the next item whose value passes the admission
// predicate. Rejected values are marked done and skipped; the sentinel is
// returned as-is. Marking the returned item done is the caller's job. A
// predicate failure marks the offending item done and surfaces as a
// conditional-get error.
func GetOnCondition[T any](ctx context.Context, src Source[T], admit func(T) (bool, error)) (pipe.Item[T], error) {
	var zero pipe.Item[T]
	for {
		item, err := src.Get(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return zero, err
			}
			return zero, errors.SourceGet(err)
		}
		if item.IsEnd() || admit == nil {
			return item, nil
		}
		keep, aerr := admit(item.Value())
		if aerr != nil {
			src.TaskDone()
			return zero, errors.ConditionalGet(aerr)
		}
		if keep {
			return item, nil
		}
		src.TaskDone()
	}
}
