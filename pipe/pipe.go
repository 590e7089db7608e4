package pipe

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/logger"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 100

// Pipe is a bounded FIFO buffer with an explicit lifecycle. While
// active it accepts puts up to its capacity. Stop enqueues the sentinel
// behind the buffered items; consumers keep getting until they observe
// it. Start clears all buffered state and reactivates the pipe.
//
// All methods are safe for concurrent use by multiple producers and
// consumers.
type Pipe[T any] struct {
	name     string
	capacity int
	log      *logger.Logger

	mu         sync.Mutex
	items      []Item[T]
	head       int
	stopped    bool
	unfinished int

	notEmpty chan struct{}
	notFull  chan struct{}
	idle     chan struct{}
}

// Option configures a Pipe.
type Option[T any] func(*Pipe[T])

// WithName sets the pipe name used in logs and metrics. Defaults to a
// generated id.
func WithName[T any](name string) Option[T] {
	return func(p *Pipe[T]) { p.name = name }
}

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger[T any](log *logger.Logger) Option[T] {
	return func(p *Pipe[T]) { p.log = log }
}

// New creates an active pipe with the given capacity. Non-positive
// capacities fall back to DefaultCapacity.
func New[T any](capacity int, opts ...Option[T]) *Pipe[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &Pipe[T]{capacity: capacity}
	for _, opt := range opts {
		opt(p)
	}
	if p.name == "" {
		p.name = "pipe-" + uuid.NewString()[:8]
	}
	p.log = logger.OrNop(p.log).WithComponent("pipe").WithFields(map[string]interface{}{
		logger.FieldPipe: p.name,
	})
	return p
}

// Name returns the pipe name.
func (p *Pipe[T]) Name() string { return p.name }

// Capacity returns the fixed buffer capacity.
func (p *Pipe[T]) Capacity() int { return p.capacity }

// Get removes and returns the oldest buffered item, suspending until
// one is available or ctx ends. After the pipe stops, buffered items
// are still served in order; the sentinel comes last.
func (p *Pipe[T]) Get(ctx context.Context) (Item[T], error) {
	for {
		p.mu.Lock()
		if p.live() > 0 {
			it := p.dequeue()
			if !p.stopped && p.live() < p.capacity {
				p.signalNotFull()
			}
			p.mu.Unlock()
			return it, nil
		}
		ch := p.waitNotEmpty()
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return Item[T]{}, ctx.Err()
		}
	}
}

// Put appends a value, suspending while the buffer is full. Bound the
// wait with a context deadline: if the deadline expires while the pipe
// is still full, Put fails with a pipe-full error carrying the context
// error as cause. Cancellation is reported as-is. Putting into a
// stopped pipe fails immediately.
func (p *Pipe[T]) Put(ctx context.Context, v T) error {
	for {
		p.mu.Lock()
		if p.stopped {
			p.mu.Unlock()
			return errors.PipeStopped().WithDetail("pipe", p.name).WithCause(ErrStopped)
		}
		if p.live() < p.capacity {
			p.enqueue(Of(v))
			p.mu.Unlock()
			return nil
		}
		ch := p.waitNotFull()
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
				cause := fmt.Errorf("%w: %w", ErrFull, ctx.Err())
				return errors.PipeFull(p.capacity).WithDetail("pipe", p.name).WithCause(cause)
			}
			return ctx.Err()
		}
	}
}

// TryPut appends a value without waiting. It fails with a pipe-full
// error when the buffer has no space.
func (p *Pipe[T]) TryPut(v T) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return errors.PipeStopped().WithDetail("pipe", p.name).WithCause(ErrStopped)
	}
	if p.live() >= p.capacity {
		return errors.PipeFull(p.capacity).WithDetail("pipe", p.name).WithCause(ErrFull)
	}
	p.enqueue(Of(v))
	return nil
}

// TaskDone marks one previously gotten item as fully processed.
// Consumers call it once per Get, including for the sentinel.
func (p *Pipe[T]) TaskDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unfinished == 0 {
		p.log.Warn("TaskDone called with no outstanding items")
		return
	}
	p.unfinished--
	if p.unfinished == 0 {
		p.signalIdle()
	}
}

// Join suspends until every accepted item has been gotten and marked
// done with TaskDone, or ctx ends.
func (p *Pipe[T]) Join(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.unfinished == 0 {
			p.mu.Unlock()
			return nil
		}
		ch := p.waitIdle()
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop transitions the pipe to stopped and enqueues the sentinel behind
// the buffered items. The sentinel is exempt from the capacity bound,
// so Stop never blocks. It reports whether this call newly stopped the
// pipe; stopping an already-stopped pipe is a no-op returning false.
func (p *Pipe[T]) Stop(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false, nil
	}
	p.stopped = true
	p.items = append(p.items, End[T]())
	p.unfinished++
	p.signalNotEmpty()
	p.signalNotFull() // wake blocked putters so they fail fast
	buffered := p.live()
	p.mu.Unlock()

	p.log.Debug("Pipe stopped", logger.Fields(logger.FieldItems, buffered))
	return true, nil
}

// Start clears all buffered state, resets join accounting, and returns
// the pipe to active.
func (p *Pipe[T]) Start() {
	p.mu.Lock()
	p.items = nil
	p.head = 0
	p.stopped = false
	p.unfinished = 0
	p.signalNotFull()
	p.signalIdle()
	p.mu.Unlock()

	p.log.Debug("Pipe restarted")
}

// Stopped reports whether the pipe has been stopped.
func (p *Pipe[T]) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// Size returns the number of buffered items, including the sentinel
// once the pipe is stopped.
func (p *Pipe[T]) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live()
}

// Empty reports whether the buffer holds no items.
func (p *Pipe[T]) Empty() bool {
	return p.Size() == 0
}

// Full reports whether the buffer has no space for further puts.
func (p *Pipe[T]) Full() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live() >= p.capacity
}

// Snapshot returns a copy of the buffered items in order without
// consuming them.
func (p *Pipe[T]) Snapshot() []Item[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Item[T], p.live())
	copy(out, p.items[p.head:])
	return out
}

// TakeSnapshot removes and returns the buffered items in order. Join
// accounting is untouched; a caller flushing the result elsewhere still
// marks each value done with TaskDone. Used for best-effort draining on
// cancellation.
func (p *Pipe[T]) TakeSnapshot() []Item[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Item[T], p.live())
	copy(out, p.items[p.head:])
	p.items = nil
	p.head = 0
	if !p.stopped {
		p.signalNotFull()
	}
	return out
}

// --- internal, mu held ---

func (p *Pipe[T]) live() int {
	return len(p.items) - p.head
}

func (p *Pipe[T]) enqueue(it Item[T]) {
	p.items = append(p.items, it)
	p.unfinished++
	p.signalNotEmpty()
}

func (p *Pipe[T]) dequeue() Item[T] {
	it := p.items[p.head]
	p.items[p.head] = Item[T]{}
	p.head++
	// Compact once the dead prefix dominates the backing array.
	if p.head >= 64 && p.head*2 >= len(p.items) {
		n := copy(p.items, p.items[p.head:])
		clear(p.items[n:])
		p.items = p.items[:n]
		p.head = 0
	}
	return it
}

func (p *Pipe[T]) waitNotEmpty() chan struct{} {
	if p.notEmpty == nil {
		p.notEmpty = make(chan struct{})
	}
	return p.notEmpty
}

func (p *Pipe[T]) waitNotFull() chan struct{} {
	if p.notFull == nil {
		p.notFull = make(chan struct{})
	}
	return p.notFull
}

func (p *Pipe[T]) waitIdle() chan struct{} {
	if p.idle == nil {
		p.idle = make(chan struct{})
	}
	return p.idle
}

func (p *Pipe[T]) signalNotEmpty() {
	if ch := p.notEmpty; ch != nil {
		p.notEmpty = nil
		close(ch)
	}
}

func (p *Pipe[T]) signalNotFull() {
	if ch := p.notFull; ch != nil {
		p.notFull = nil
		close(ch)
	}
}

func (p *Pipe[T]) signalIdle() {
	if ch := p.idle; ch != nil {
		p.idle = nil
		close(ch)
	}
}
