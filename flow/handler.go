package flow

import (
	"context"
	"reflect"

	"github.com/kbukum/pipekit/errors"
)

// Handler transforms one retrieved item into zero or more outgoing items.
// Build one with Map, Expand, Stream, or Identity; the zero value is
// rejected when a transfer binds it.
type Handler[In, Out any] struct {
	mapFn    func(context.Context, In) (Out, error)
	expandFn func(context.Context, In) ([]Out, error)
	streamFn func(context.Context, In, func(Out) error) error
}

// Map builds a one-to-one handler.
func Map[In, Out any](fn func(context.Context, In) (Out, error)) Handler[In, Out] {
	return Handler[In, Out]{mapFn: fn}
}

// Expand builds a one-to-many handler whose results are delivered
// individually, in order.
func Expand[In, Out any](fn func(context.Context, In) ([]Out, error)) Handler[In, Out] {
	return Handler[In, Out]{expandFn: fn}
}

// Stream builds a handler that emits results incrementally through the
// provided callback. The callback delivers each value downstream and
// returns the delivery error, which the handler should propagate.
func Stream[In, Out any](fn func(ctx context.Context, v In, emit func(Out) error) error) Handler[In, Out] {
	return Handler[In, Out]{streamFn: fn}
}

// Identity builds a passthrough handler. Transfers require an explicit
// handler, so a plain pipe-to-pipe move spells out that nothing changes.
func Identity[T any]() Handler[T, T] {
	return Map(func(_ context.Context, v T) (T, error) { return v, nil })
}

func (h Handler[In, Out]) valid() bool {
	return h.mapFn != nil || h.expandFn != nil || h.streamFn != nil
}

// Apply runs the handler on one value, passing each result to emit in
// production order. Transfers drive handlers through their own dispatch;
// Apply is for code that wants a handler's results without a transfer.
func (h Handler[In, Out]) Apply(ctx context.Context, v In, emit func(Out) error) error {
	switch {
	case h.mapFn != nil:
		out, err := h.mapFn(ctx, v)
		if err != nil {
			return err
		}
		return emit(out)
	case h.expandFn != nil:
		outs, err := h.expandFn(ctx, v)
		if err != nil {
			return err
		}
		for _, out := range outs {
			if err := emit(out); err != nil {
				return err
			}
		}
		return nil
	case h.streamFn != nil:
		return h.streamFn(ctx, v, emit)
	default:
		return errInvalidHandler()
	}
}

// nilChecker returns a predicate reporting whether a handler result is nil,
// used to skip nil results unless the transfer forwards them. Resolved once
// at bind time; value types always report false.
func nilChecker[T any]() func(T) bool {
	switch reflect.TypeFor[T]().Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map,
		reflect.Pointer, reflect.Slice:
		return func(v T) bool {
			return reflect.ValueOf(&v).Elem().IsNil()
		}
	default:
		return func(T) bool { return false }
	}
}

// errInvalidHandler is returned when a transfer binds a zero-valued Handler.
func errInvalidHandler() *errors.AppError {
	return errors.Validation("handler has no transform; use Identity for a passthrough")
}
