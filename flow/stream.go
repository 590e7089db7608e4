package flow

import (
	"context"
	stderrors "errors"
	"io"

	"github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/pipe"
)

// StreamConfig tunes StreamToPipe.
type StreamConfig[In, Out any] struct {
	TransferConfig[In, Out]

	// Recoverable classifies Connect and Recv failures worth reconnecting
	// for. When nil, every stream failure is fatal.
	Recoverable func(error) bool
}

// StreamToPipe feeds a push-based stream into a destination through the
// transfer loop, with the stream bound as the loop's source. The loop ends
// when the stream reports io.EOF, which seals the destination like a
// sentinel would.
//
// Failure handling differs from a pipe-to-pipe transfer in two ways: a
// Recv failure the config classifies as recoverable returns a reconnect
// signal and leaves the destination open for the supervisor to resume
// into, while any fatal failure stops the destination before propagating.
func StreamToPipe[In, Out any](ctx context.Context, src StreamSource[In], h Handler[In, Out], dst Destination[Out], cfg StreamConfig[In, Out]) error {
	if src == nil {
		return errors.MissingField("stream")
	}
	if cfg.Name == "" {
		cfg.Name = "stream"
	}
	t, err := newTransfer(streamAdapter[In]{s: src}, h, dst, cfg.TransferConfig)
	if err != nil {
		return err
	}
	t.recoverable = cfg.Recoverable
	t.stopOnFailure = true
	return t.run(ctx, true)
}

// streamAdapter presents a StreamSource as a transfer Source. io.EOF maps
// to the sentinel; there is nothing to snapshot and no join accounting.
type streamAdapter[T any] struct {
	s StreamSource[T]
}

func (a streamAdapter[T]) Get(ctx context.Context) (pipe.Item[T], error) {
	v, err := a.s.Recv(ctx)
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return pipe.End[T](), nil
		}
		var zero pipe.Item[T]
		return zero, err
	}
	return pipe.Of(v), nil
}

func (a streamAdapter[T]) TaskDone() {}

func (a streamAdapter[T]) TakeSnapshot() []pipe.Item[T] { return nil }
