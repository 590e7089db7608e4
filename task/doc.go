// Package task supervises one background goroutine with an explicit
// lifecycle: NotStarted, Running, then exactly one of Completed, Failed,
// or Cancelled.
//
// A Manager is one-shot. Start launches the bound function on a context
// detached from the caller's cancellation, so the only ways the task ends
// are its own return value or the Manager's Stop. Stop cancels and waits
// for the function to fully unwind, which gives transfer loops room to
// finish their drain before the caller proceeds.
//
// Terminal callbacks fire exactly once: OnSuccess for a nil return,
// OnFailure for an error or panic. Cancellation invokes neither; it is an
// ordinary shutdown, not an outcome worth alerting on.
package task
