// Package flow provides the transfer engine that moves items between pipes
// and external streams.
//
// Architecture:
//
//   - Source / Destination: the pipe capabilities a transfer consumes.
//   - Handler: a transform bound once per transfer, in one of three shapes
//     (one-to-one, one-to-many, streaming) plus Identity.
//   - Transfer: the generic get -> transform -> put loop with optional hooks,
//     bounded delivery retries, and best-effort draining on cancellation.
//   - StreamToPipe: adapts a push-based external stream to a destination
//     pipe, classifying failures as recoverable or fatal.
//   - ReconnectingStreamToPipe: supervises StreamToPipe, reconnecting on
//     recoverable failures with a bounded attempt budget.
//   - FanIn / Distribute: many-to-one and one-to-many wiring.
//
// Usage:
//
//	src := pipe.New[int](16)
//	dst := pipe.New[int](16)
//
//	double := flow.Map(func(ctx context.Context, v int) (int, error) {
//		return v * 2, nil
//	})
//
//	err := flow.Transfer(ctx, src, double, dst, flow.TransferConfig[int, int]{
//		Name: "doubler",
//	})
package flow
