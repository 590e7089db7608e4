package task

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/logger"
)

// Func is the long-running body a Manager supervises. It must honor ctx
// cancellation; Stop waits for it to return.
type Func func(ctx context.Context) error

// Manager supervises one background goroutine. Construct with NewManager,
// call Start once, and either let the function finish or call Stop. A
// finished Manager cannot be restarted; build a new one.
type Manager struct {
	name string
	fn   Func
	log  *logger.Logger

	onSuccess func()
	onFailure func(error)

	mu     sync.Mutex
	state  State
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithName sets the name used in logs. Defaults to a generated id.
func WithName(name string) Option {
	return func(m *Manager) { m.name = name }
}

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(log *logger.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// OnSuccess registers a callback invoked once when the function returns
// nil. It runs on the task's goroutine, after the state transition.
func OnSuccess(fn func()) Option {
	return func(m *Manager) { m.onSuccess = fn }
}

// OnFailure registers a callback invoked once when the function returns an
// error or panics. The error is not re-raised anywhere else; this callback
// is the sole notification channel.
func OnFailure(fn func(error)) Option {
	return func(m *Manager) { m.onFailure = fn }
}

// NewManager binds fn to a fresh, not-yet-started Manager.
func NewManager(fn Func, opts ...Option) *Manager {
	m := &Manager{
		fn:    fn,
		state: StateNotStarted,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.name == "" {
		m.name = "task-" + uuid.NewString()[:8]
	}
	m.log = logger.OrNop(m.log).WithComponent("task").WithFields(map[string]interface{}{
		"task": m.name,
	})
	return m
}

// Name returns the manager's name.
func (m *Manager) Name() string { return m.name }

// Start launches the bound function on its own goroutine. The task runs on
// a context derived from context.Background, not from the caller: the only
// ways it ends are its own return or Stop. Starting twice or starting a
// nil-function manager fails.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fn == nil {
		return errors.MissingField("task function")
	}
	if m.state != StateNotStarted {
		return errors.InvalidInput("state", fmt.Sprintf("cannot start a %s task", m.state))
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.state = StateRunning
	m.log.Debug("Task started")
	go m.run(ctx)
	return nil
}

func (m *Manager) run(ctx context.Context) {
	err := m.invoke(ctx)
	m.finish(ctx, err)
	close(m.done)
}

// invoke shields the supervisor from a panicking task body.
func (m *Manager) invoke(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Internal(fmt.Errorf("task panicked: %v", r))
		}
	}()
	return m.fn(ctx)
}

// finish performs the single terminal transition and fires the matching
// callback outside the lock.
func (m *Manager) finish(ctx context.Context, err error) {
	m.mu.Lock()
	cancelled := ctx.Err() != nil && (err == nil || stderrors.Is(err, ctx.Err()))
	switch {
	case cancelled:
		m.state = StateCancelled
	case err != nil:
		m.state = StateFailed
		m.err = err
	default:
		m.state = StateCompleted
	}
	state := m.state
	m.mu.Unlock()

	switch state {
	case StateCancelled:
		m.log.Debug("Task cancelled")
	case StateFailed:
		m.log.Error("Task failed", logger.Fields(logger.FieldError, err.Error()))
		if m.onFailure != nil {
			m.onFailure(err)
		}
	default:
		m.log.Debug("Task completed")
		if m.onSuccess != nil {
			m.onSuccess()
		}
	}
}

// Stop cancels the task and blocks until it has fully unwound, including
// any drain work its body performs on the way out. Stopping a task that
// already reached a terminal state is a no-op. Stop fails only when the
// wait itself is cut short by ctx, in which case the task keeps unwinding
// in the background.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateNotStarted:
		m.state = StateCancelled
		m.mu.Unlock()
		close(m.done)
		return nil
	case StateRunning:
		m.cancel()
	default:
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the task reaches a terminal state or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsRunning reports whether the task is currently running.
func (m *Manager) IsRunning() bool {
	return m.State() == StateRunning
}

// Err returns the error a failed task ended with, or nil.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}
