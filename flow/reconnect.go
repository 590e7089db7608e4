package flow

import (
	"context"
	"time"

	"github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/observability"
	"github.com/kbukum/pipekit/resilience"
)

// DefaultMaxReconnectAttempts bounds consecutive reconnects without a
// delivering pass before the connection is declared lost.
const DefaultMaxReconnectAttempts = 3

// Reconnect backoff defaults.
const (
	defaultReconnectBackoff    = 5 * time.Second
	defaultReconnectMaxBackoff = 30 * time.Second
)

// ReconnectConfig tunes the reconnect supervisor.
type ReconnectConfig[In, Out any] struct {
	Stream StreamConfig[In, Out]

	// MaxAttempts bounds consecutive reconnect attempts. The counter
	// resets whenever a pass delivers at least one item, so a long-lived
	// but flaky stream is not treated as a dead one.
	MaxAttempts int
	// Backoff shapes the sleep before each reconnect.
	Backoff resilience.RetryConfig
}

func (c ReconnectConfig[In, Out]) withDefaults() ReconnectConfig[In, Out] {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxReconnectAttempts
	}
	if c.Backoff.InitialBackoff <= 0 {
		c.Backoff.InitialBackoff = defaultReconnectBackoff
	}
	if c.Backoff.MaxBackoff <= 0 {
		c.Backoff.MaxBackoff = defaultReconnectMaxBackoff
	}
	if c.Backoff.BackoffFactor <= 0 {
		c.Backoff.BackoffFactor = 2.0
	}
	return c
}

// ReconnectingStreamToPipe supervises StreamToPipe across connection
// losses. Each pass connects the stream, runs it into the destination, and
// disconnects. Recoverable failures trigger a backoff sleep and a fresh
// pass; exhausting the attempt budget stops the destination and returns a
// connection-lost error carrying the last failure. Normal stream
// exhaustion, cancellation, and fatal errors end the supervision with the
// pass's own outcome.
func ReconnectingStreamToPipe[In, Out any](ctx context.Context, src StreamSource[In], h Handler[In, Out], dst Destination[Out], cfg ReconnectConfig[In, Out]) error {
	if src == nil {
		return errors.MissingField("stream")
	}
	if dst == nil {
		return errors.MissingField("destination")
	}
	if cfg.Stream.Name == "" {
		cfg.Stream.Name = "stream"
	}
	cfg = cfg.withDefaults()
	log := logger.OrNop(cfg.Stream.Logger).WithComponent(cfg.Stream.Name)
	met := cfg.Stream.Metrics

	attempts := 0
	for {
		err := runStreamPass(ctx, src, h, dst, cfg.Stream, log)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return err
		case errors.IsCode(err, errors.ErrCodeReconnect):
		default:
			return err
		}

		if deliveredOf(err) > 0 {
			attempts = 0
		}
		if attempts >= cfg.MaxAttempts {
			lost := errors.ConnectionLost(attempts, reconnectCause(err))
			log.Error("Reconnect budget exhausted, stopping destination", logger.Fields(
				logger.FieldAttempt, attempts,
				logger.FieldError, lost.Error(),
			))
			stopQuietly(ctx, dst, log)
			return lost
		}
		attempts++
		met.RecordReconnect(ctx, cfg.Stream.Name)
		observability.SpanFromContext(ctx).AddEvent("reconnect")

		backoff := resilience.Backoff(attempts, cfg.Backoff)
		log.Warn("Stream lost, reconnecting after backoff", logger.Fields(
			logger.FieldAttempt, attempts,
			"backoff", backoff.String(),
		))
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			stopQuietly(context.WithoutCancel(ctx), dst, log)
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// runStreamPass performs one connect-stream-disconnect cycle. The stream
// is always disconnected before the pass's outcome is reported, whatever
// that outcome is.
func runStreamPass[In, Out any](ctx context.Context, src StreamSource[In], h Handler[In, Out], dst Destination[Out], cfg StreamConfig[In, Out], log *logger.Logger) error {
	if err := connectStream(ctx, src, cfg.Name); err != nil {
		if ctx.Err() != nil {
			stopQuietly(context.WithoutCancel(ctx), dst, log)
			return ctx.Err()
		}
		disconnectQuietly(ctx, src, log)
		if cfg.Recoverable != nil && cfg.Recoverable(err) {
			return errors.Reconnect(err)
		}
		log.Error("Connecting stream failed", logger.Fields(logger.FieldError, err.Error()))
		stopQuietly(ctx, dst, log)
		return err
	}

	err := StreamToPipe(ctx, src, h, dst, cfg)
	dctx := ctx
	if ctx.Err() != nil {
		dctx = context.WithoutCancel(ctx)
	}
	disconnectQuietly(dctx, src, log)
	return err
}

// connectStream traces one connection attempt.
func connectStream[T any](ctx context.Context, src StreamSource[T], name string) error {
	ctx, span := observability.StartSpan(ctx, observability.SpanStreamConnect)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrFlowName, name)
	err := src.Connect(ctx)
	if err != nil {
		observability.SetSpanError(ctx, err)
	}
	return err
}

func disconnectQuietly[T any](ctx context.Context, src StreamSource[T], log *logger.Logger) {
	if err := src.Disconnect(ctx); err != nil {
		log.Warn("Disconnecting stream failed", logger.Fields(logger.FieldError, err.Error()))
	}
}

func stopQuietly[T any](ctx context.Context, dst Destination[T], log *logger.Logger) {
	if _, err := dst.Stop(ctx); err != nil {
		log.Warn("Stopping destination failed", logger.Fields(logger.FieldError, err.Error()))
	}
}

// deliveredOf reads the delivery count a reconnect signal carries.
func deliveredOf(err error) int64 {
	app, ok := errors.AsAppError(err)
	if !ok {
		return 0
	}
	n, _ := app.Details["delivered"].(int64)
	return n
}

// reconnectCause unwraps the stream failure behind a reconnect signal.
func reconnectCause(err error) error {
	if app, ok := errors.AsAppError(err); ok && app.Cause != nil {
		return app.Cause
	}
	return err
}
