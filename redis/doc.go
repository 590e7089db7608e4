// Package redis provides a Redis-list-backed pipe so a dataflow can span
// processes. A Queue satisfies both flow.Source and flow.Destination: one
// process Puts items and Stops the queue, another Gets them, with the
// sentinel carried in-band as a JSON envelope.
//
// The queue keeps pipe semantics where the medium allows: FIFO order,
// bounded length with a pipe-full failure when the bound holds past the
// caller's deadline, and a stop marker that rejects further puts while
// buffered items drain. Join accounting does not cross processes; TaskDone
// is a no-op.
package redis
