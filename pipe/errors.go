package pipe

import stderrors "errors"

// Low-level conditions the errors taxonomy wraps as causes, so callers
// can test with errors.Is without depending on the taxonomy codes.
var (
	// ErrStopped is the cause behind every rejected put on a stopped pipe.
	ErrStopped = stderrors.New("pipe is stopped")

	// ErrFull is the cause behind every put that found no buffer space
	// within its deadline.
	ErrFull = stderrors.New("pipe is full")
)
