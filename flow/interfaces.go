package flow

import (
	"context"

	"github.com/kbukum/pipekit/pipe"
)

// Source is the read side of a transfer. *pipe.Pipe satisfies it, as does
// any adapter that exposes ordered items with a terminating sentinel.
type Source[T any] interface {
	// Get blocks for the next item. The sentinel item reports IsEnd and is
	// always the final delivery.
	Get(ctx context.Context) (pipe.Item[T], error)

	// TaskDone marks one previously retrieved item as fully processed.
	TaskDone()

	// TakeSnapshot removes and returns the currently buffered items. Used
	// for best-effort draining when a transfer is cancelled.
	TakeSnapshot() []pipe.Item[T]
}

// Destination is the write side of a transfer.
type Destination[T any] interface {
	// Put delivers one value, honoring the destination's backpressure.
	Put(ctx context.Context, v T) error

	// Stop seals the destination so readers observe a sentinel after the
	// buffered items. It reports whether this call newly sealed the
	// destination; stopping twice is a no-op returning false.
	Stop(ctx context.Context) (bool, error)

	// Stopped reports whether the destination no longer accepts values.
	Stopped() bool
}

// StreamSource is a push-based external feed, such as a websocket or a
// message broker subscription. Recv returns io.EOF when the stream ends
// normally; any other error is classified by the caller as recoverable or
// fatal.
type StreamSource[T any] interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Recv(ctx context.Context) (T, error)
}

var (
	_ Source[int]      = (*pipe.Pipe[int])(nil)
	_ Destination[int] = (*pipe.Pipe[int])(nil)
)
