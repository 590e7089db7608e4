package pipe

import (
	"context"
)

// Iterator pulls values until the stream ends. Next returns ok=false
// with a nil error when the stream is exhausted; a non-nil error means
// the pull itself failed.
type Iterator[T any] interface {
	Next(ctx context.Context) (T, bool, error)
}

// Iter returns an iterator over the pipe that yields values until the
// sentinel. It calls TaskDone for every item it consumes, including the
// sentinel.
func (p *Pipe[T]) Iter() Iterator[T] {
	return &pipeIterator[T]{pipe: p}
}

type pipeIterator[T any] struct {
	pipe *Pipe[T]
	done bool
}

func (it *pipeIterator[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.done {
		return zero, false, nil
	}
	item, err := it.pipe.Get(ctx)
	if err != nil {
		return zero, false, err
	}
	it.pipe.TaskDone()
	if item.IsEnd() {
		it.done = true
		return zero, false, nil
	}
	return item.Value(), true, nil
}

// FromSlice returns an iterator over a fixed set of values.
func FromSlice[T any](values []T) Iterator[T] {
	return &sliceIterator[T]{values: values}
}

type sliceIterator[T any] struct {
	values []T
	pos    int
}

func (it *sliceIterator[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	if it.pos >= len(it.values) {
		return zero, false, nil
	}
	v := it.values[it.pos]
	it.pos++
	return v, true, nil
}

// FromFunc adapts a pull function to an Iterator.
func FromFunc[T any](fn func(ctx context.Context) (T, bool, error)) Iterator[T] {
	return funcIterator[T](fn)
}

type funcIterator[T any] func(ctx context.Context) (T, bool, error)

func (fn funcIterator[T]) Next(ctx context.Context) (T, bool, error) {
	return fn(ctx)
}

// Collect drains the iterator into a slice.
func Collect[T any](ctx context.Context, it Iterator[T]) ([]T, error) {
	var out []T
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// Drain consumes the iterator, discarding values, and returns how many
// it saw.
func Drain[T any](ctx context.Context, it Iterator[T]) (int, error) {
	n := 0
	for {
		_, ok, err := it.Next(ctx)
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}

// ForEach applies fn to every value the iterator yields. It stops at
// the first error from the iterator or from fn.
func ForEach[T any](ctx context.Context, it Iterator[T], fn func(T) error) error {
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}
