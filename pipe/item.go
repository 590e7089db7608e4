package pipe

// Item is a single element moving through a pipe: either a value or the
// sentinel that marks the end of the stream. The zero Item is a value
// item carrying T's zero value.
type Item[T any] struct {
	value T
	end   bool
}

// Of wraps a value in an Item.
func Of[T any](v T) Item[T] {
	return Item[T]{value: v}
}

// End returns the sentinel item. Pipes enqueue it themselves when
// stopped; user code only ever observes it through Get or Snapshot.
func End[T any]() Item[T] {
	return Item[T]{end: true}
}

// IsEnd reports whether the item is the sentinel.
func (it Item[T]) IsEnd() bool {
	return it.end
}

// Value returns the wrapped value. For the sentinel it returns T's zero
// value.
func (it Item[T]) Value() T {
	return it.value
}

// Sentinelize normalizes a slice of items so it ends with exactly one
// sentinel. If the slice already contains a sentinel, everything after
// the first one is dropped; otherwise a sentinel is appended. The input
// is not modified. Applying Sentinelize twice gives the same result as
// applying it once.
func Sentinelize[T any](items []Item[T]) []Item[T] {
	for i, it := range items {
		if it.IsEnd() {
			out := make([]Item[T], i+1)
			copy(out, items[:i+1])
			return out
		}
	}
	out := make([]Item[T], len(items), len(items)+1)
	copy(out, items)
	return append(out, End[T]())
}
