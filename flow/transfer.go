package flow

import (
	"context"

	"github.com/kbukum/pipekit/errlog"
	"github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/observability"
	"github.com/kbukum/pipekit/pipe"
)

// TransferConfig tunes one transfer loop. The zero value is usable: a
// passthrough-style transfer with default delivery bounds, nil results
// skipped, and hook failures recorded but swallowed.
type TransferConfig[In, Out any] struct {
	// Name labels the transfer in logs and metrics.
	Name string
	// Hooks observe the loop's phases.
	Hooks Hooks[In, Out]
	// ForwardNil delivers nil-valued handler results instead of skipping
	// them. Only meaningful when Out can hold nil.
	ForwardNil bool
	// RaiseForHooks escalates hook failures out of the loop instead of
	// swallowing them. The phase's own outcome still leads the escalation.
	RaiseForHooks bool
	// Put bounds each delivery into the destination.
	Put PutConfig

	Logger   *logger.Logger
	Recorder *errlog.Recorder
	Metrics  *observability.Metrics
}

// Transfer moves items from src to dst until the sentinel arrives, applying
// the handler to each item. It returns nil after the sentinel, when dst has
// been stopped and all retrieved items are marked done.
//
// On cancellation the loop does not abandon buffered work: it snapshots the
// source, flushes the values through the same transform-and-put path on a
// detached context, stops the destination, and returns the context's error.
// A flush that cannot complete is logged as data loss, never dropped
// silently.
func Transfer[In, Out any](ctx context.Context, src Source[In], h Handler[In, Out], dst Destination[Out], cfg TransferConfig[In, Out]) error {
	t, err := newTransfer(src, h, dst, cfg)
	if err != nil {
		return err
	}
	return t.run(ctx, true)
}

type transfer[In, Out any] struct {
	src     Source[In]
	dst     Destination[Out]
	handler Handler[In, Out]
	cfg     TransferConfig[In, Out]
	log     *logger.Logger
	rec     *errlog.Recorder
	met     *observability.Metrics
	hooks   *hookRunner
	isNil   func(Out) bool

	// Stream-mode settings. recoverable classifies source failures worth
	// reconnecting for; stopOnFailure seals the destination on fatal exits.
	recoverable   func(error) bool
	stopOnFailure bool
	moved         int64
}

func newTransfer[In, Out any](src Source[In], h Handler[In, Out], dst Destination[Out], cfg TransferConfig[In, Out]) (*transfer[In, Out], error) {
	if src == nil {
		return nil, errors.MissingField("source")
	}
	if dst == nil {
		return nil, errors.MissingField("destination")
	}
	if !h.valid() {
		return nil, errInvalidHandler()
	}
	if cfg.Name == "" {
		cfg.Name = "transfer"
	}
	cfg.Put = cfg.Put.withDefaults()
	log := logger.OrNop(cfg.Logger).WithComponent(cfg.Name)
	rec := cfg.Recorder
	if rec == nil {
		rec = errlog.NewRecorder(log)
	}
	return &transfer[In, Out]{
		src:     src,
		dst:     dst,
		handler: h,
		cfg:     cfg,
		log:     log,
		rec:     rec,
		met:     cfg.Metrics,
		hooks:   newHookRunner(cfg.RaiseForHooks, rec, log),
		isNil:   nilChecker[Out](),
	}, nil
}

// run drives the loop. stopDst is false when several transfers share one
// destination and the caller seals it after all of them finish.
func (t *transfer[In, Out]) run(ctx context.Context, stopDst bool) error {
	ctx, span := observability.StartSpan(ctx, observability.SpanTransfer)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrFlowName, t.cfg.Name)

	t.log.Debug("Transfer started")
	err := t.loop(ctx, stopDst)
	if err != nil && ctx.Err() == nil && !errors.IsCode(err, errors.ErrCodeReconnect) {
		observability.SetSpanError(ctx, err)
		t.rec.Record(err, "transfer failed")
	}
	return err
}

func (t *transfer[In, Out]) loop(ctx context.Context, stopDst bool) error {
	for {
		item, err := t.src.Get(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return t.drain(ctx, nil, stopDst)
			}
			if t.recoverable != nil && t.recoverable(err) {
				t.log.Warn("Source failed with a recoverable error, signaling reconnect", logger.Fields(
					logger.FieldError, err.Error(),
				))
				return errors.Reconnect(err).WithDetail("delivered", t.moved)
			}
			return t.failGet(ctx, err)
		}
		if item.IsEnd() {
			t.src.TaskDone()
			if stopDst {
				t.stopDestination(ctx)
			}
			t.log.Debug("Transfer complete, sentinel forwarded")
			return nil
		}

		v := item.Value()
		if hookErr := t.onSuccessfulGet(ctx, v); hookErr != nil {
			// Processing of the retrieved item is over either way; keep
			// the source's join accounting balanced.
			t.src.TaskDone()
			if t.stopOnFailure {
				t.stopDestination(ctx)
			}
			return hookErr
		}
		if err := t.transform(ctx, v); err != nil {
			if ctx.Err() != nil {
				return t.drain(ctx, &v, stopDst)
			}
			if errors.IsCode(err, errors.ErrCodePipeFull) {
				t.log.Error("Data loss: item dropped after the destination stayed full", logger.Fields(
					logger.FieldError, err.Error(),
				))
				t.met.RecordDataLoss(ctx, t.cfg.Name, 1)
			}
			t.src.TaskDone()
			if t.stopOnFailure {
				t.stopDestination(ctx)
			}
			return err
		}
		t.src.TaskDone()
	}
}

// transform applies the handler to one retrieved value and delivers each
// produced value downstream.
func (t *transfer[In, Out]) transform(ctx context.Context, v In) error {
	h := t.handler
	switch {
	case h.mapFn != nil:
		out, err := h.mapFn(ctx, v)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return t.failTransform(ctx, v, errors.Transform(err))
		}
		return t.deliver(ctx, out)

	case h.expandFn != nil:
		outs, err := h.expandFn(ctx, v)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return t.failTransform(ctx, v, errors.Transform(err))
		}
		for _, out := range outs {
			if err := t.deliver(ctx, out); err != nil {
				return err
			}
		}
		return nil

	default:
		err := h.streamFn(ctx, v, func(out Out) error {
			return t.deliver(ctx, out)
		})
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return err
		case errors.IsCode(err, errors.ErrCodeDestinationPut),
			errors.IsCode(err, errors.ErrCodeHook):
			// Delivery failures surfaced through emit keep their own code.
			return err
		default:
			return t.failTransform(ctx, v, errors.Generator(err))
		}
	}
}

// deliver pushes one handler result into the destination, honoring the
// skip-nil policy and the put budget.
func (t *transfer[In, Out]) deliver(ctx context.Context, out Out) error {
	if !t.cfg.ForwardNil && t.isNil(out) {
		t.log.Debug("Skipping nil handler result")
		return nil
	}
	attempts, err := putValue(ctx, t.dst, out, t.cfg.Put, t.log)
	t.met.RecordPutAttempts(ctx, t.cfg.Name, int64(attempts))
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		perr := errors.DestinationPut(err)
		hookErr := t.onFailedPut(ctx, out, perr)
		t.met.RecordTransferError(ctx, t.cfg.Name, string(errors.ErrCodeDestinationPut))
		return escalate(perr, hookErr)
	}
	t.met.RecordItemsMoved(ctx, t.cfg.Name, 1)
	t.moved++
	return escalate(nil, t.onSuccessfulPut(ctx, out))
}

func (t *transfer[In, Out]) failGet(ctx context.Context, cause error) error {
	gerr := errors.SourceGet(cause)
	hookErr := t.onFailedGet(ctx, gerr)
	t.met.RecordTransferError(ctx, t.cfg.Name, string(errors.ErrCodeSourceGet))
	if t.stopOnFailure {
		t.stopDestination(ctx)
	}
	return escalate(gerr, hookErr)
}

func (t *transfer[In, Out]) failTransform(ctx context.Context, v In, terr *errors.AppError) error {
	hookErr := t.onFailedTransform(ctx, v, terr)
	t.met.RecordTransferError(ctx, t.cfg.Name, string(terr.Code))
	return escalate(terr, hookErr)
}

// drain flushes what the source still buffers after cancellation, plus the
// in-flight value whose delivery the cancellation interrupted. The flush
// runs on a detached context so it is bounded by the put budget rather
// than cut off immediately.
func (t *transfer[In, Out]) drain(ctx context.Context, pending *In, stopDst bool) error {
	dctx := context.WithoutCancel(ctx)
	items := pipe.Sentinelize(t.src.TakeSnapshot())

	var queue []In
	if pending != nil {
		queue = append(queue, *pending)
	}
	for _, it := range items[:len(items)-1] {
		queue = append(queue, it.Value())
	}
	t.log.Warn("Transfer cancelled, draining source", logger.Fields(
		logger.FieldItems, len(queue),
	))

	flushed := 0
	for i, v := range queue {
		if err := t.transform(dctx, v); err != nil {
			lost := len(queue) - i
			t.log.Error("Data loss: could not flush buffered items to the destination", logger.Fields(
				"lost", lost,
				"flushed", flushed,
				logger.FieldError, err.Error(),
			))
			t.met.RecordDataLoss(dctx, t.cfg.Name, int64(lost))
			t.rec.Record(err, "drain flush failed")
			break
		}
		t.src.TaskDone()
		flushed++
	}
	if stopDst {
		t.stopDestination(dctx)
	}
	t.log.Debug("Drain finished", logger.Fields(logger.FieldItems, flushed))
	return ctx.Err()
}

func (t *transfer[In, Out]) stopDestination(ctx context.Context) {
	if _, err := t.dst.Stop(ctx); err != nil {
		t.log.Warn("Stopping destination failed", logger.Fields(
			logger.FieldError, err.Error(),
		))
	}
}

// Hook adapters. Each checks for an unset hook before building the Call so
// the runner sees nil for absent hooks.

func (t *transfer[In, Out]) onSuccessfulGet(ctx context.Context, v In) error {
	fn := t.cfg.Hooks.OnSuccessfulGet
	if fn == nil {
		return nil
	}
	return t.hooks.run(ctx, "OnSuccessfulGet", func(c context.Context) error { return fn(c, v) })
}

func (t *transfer[In, Out]) onFailedGet(ctx context.Context, err error) error {
	fn := t.cfg.Hooks.OnFailedGet
	if fn == nil {
		return nil
	}
	return t.hooks.run(ctx, "OnFailedGet", func(c context.Context) error { return fn(c, err) })
}

func (t *transfer[In, Out]) onFailedTransform(ctx context.Context, v In, err error) error {
	fn := t.cfg.Hooks.OnFailedTransform
	if fn == nil {
		return nil
	}
	return t.hooks.run(ctx, "OnFailedTransform", func(c context.Context) error { return fn(c, v, err) })
}

func (t *transfer[In, Out]) onSuccessfulPut(ctx context.Context, v Out) error {
	fn := t.cfg.Hooks.OnSuccessfulPut
	if fn == nil {
		return nil
	}
	return t.hooks.run(ctx, "OnSuccessfulPut", func(c context.Context) error { return fn(c, v) })
}

func (t *transfer[In, Out]) onFailedPut(ctx context.Context, v Out, err error) error {
	fn := t.cfg.Hooks.OnFailedPut
	if fn == nil {
		return nil
	}
	return t.hooks.run(ctx, "OnFailedPut", func(c context.Context) error { return fn(c, v, err) })
}
