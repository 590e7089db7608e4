package fitting

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/pipekit/component"
	"github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/flow"
	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/observability"
	"github.com/kbukum/pipekit/task"
)

// Fitting runs one connecting task as a supervised background dataflow.
// The typed constructors below bind the task to a concrete source, handler,
// and destination; the Fitting itself only supervises.
type Fitting struct {
	name    string
	details string
	connect task.Func
	log     *logger.Logger
	metrics *observability.Metrics

	onSuccess func()
	onFailure func(error)

	mu  sync.Mutex
	mgr *task.Manager
}

// Option configures a Fitting.
type Option func(*Fitting)

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(log *logger.Logger) Option {
	return func(f *Fitting) { f.log = log }
}

// WithMetrics sets the metrics handle used for per-run flow metrics. The
// typed constructors default this to the transfer config's metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(f *Fitting) { f.metrics = m }
}

// OnSuccess registers a callback fired once per run when the connecting
// task completes normally.
func OnSuccess(fn func()) Option {
	return func(f *Fitting) { f.onSuccess = fn }
}

// OnFailure registers a callback fired once per run when the connecting
// task fails. This is the only place a fitting reports its task's error.
func OnFailure(fn func(error)) Option {
	return func(f *Fitting) { f.onFailure = fn }
}

// New builds a fitting around an arbitrary connecting task. Prefer the
// typed constructors; New is the escape hatch for custom loops.
func New(name string, connect task.Func, opts ...Option) *Fitting {
	f := &Fitting{name: name, connect: connect}
	for _, opt := range opts {
		opt(f)
	}
	if f.name == "" {
		f.name = "fitting-" + uuid.NewString()[:8]
	}
	f.log = logger.OrNop(f.log).WithComponent("fitting").WithFields(map[string]interface{}{
		logger.FieldFlow: f.name,
	})
	return f
}

// PipeToPipe binds a pipe-like source to a destination through a handler.
func PipeToPipe[In, Out any](name string, src flow.Source[In], h flow.Handler[In, Out], dst flow.Destination[Out], cfg flow.TransferConfig[In, Out], opts ...Option) *Fitting {
	cfg.Name = name
	f := New(name, func(ctx context.Context) error {
		return flow.Transfer(ctx, src, h, dst, cfg)
	}, opts...)
	f.details = "pipe-to-pipe"
	f.adoptMetrics(cfg.Metrics)
	return f
}

// FanIn binds several sources to one destination. The destination is
// sealed once every source has delivered its sentinel.
func FanIn[In, Out any](name string, srcs []flow.Source[In], h flow.Handler[In, Out], dst flow.Destination[Out], cfg flow.TransferConfig[In, Out], opts ...Option) *Fitting {
	cfg.Name = name
	f := New(name, func(ctx context.Context) error {
		return flow.FanIn(ctx, srcs, h, dst, cfg)
	}, opts...)
	f.details = fmt.Sprintf("fan-in sources=%d", len(srcs))
	f.adoptMetrics(cfg.Metrics)
	return f
}

// Distribute binds one source to several destinations, each through its
// own handler.
func Distribute[In, Out any](name string, src flow.Source[In], hs []flow.Handler[In, Out], dsts []flow.Destination[Out], cfg flow.TransferConfig[In, Out], opts ...Option) *Fitting {
	cfg.Name = name
	f := New(name, func(ctx context.Context) error {
		return flow.Distribute(ctx, src, hs, dsts, cfg)
	}, opts...)
	f.details = fmt.Sprintf("distribute destinations=%d", len(dsts))
	f.adoptMetrics(cfg.Metrics)
	return f
}

// StreamToPipe binds an external push stream to a destination. The stream
// must already be connected; use ReconnectingStream when the fitting
// should own the connection lifecycle.
func StreamToPipe[In, Out any](name string, src flow.StreamSource[In], h flow.Handler[In, Out], dst flow.Destination[Out], cfg flow.StreamConfig[In, Out], opts ...Option) *Fitting {
	cfg.Name = name
	f := New(name, func(ctx context.Context) error {
		return flow.StreamToPipe(ctx, src, h, dst, cfg)
	}, opts...)
	f.details = "stream-to-pipe"
	f.adoptMetrics(cfg.Metrics)
	return f
}

// ReconnectingStream binds an external push stream to a destination under
// the reconnect supervisor. The fitting connects on start and disconnects
// on stop.
func ReconnectingStream[In, Out any](name string, src flow.StreamSource[In], h flow.Handler[In, Out], dst flow.Destination[Out], cfg flow.ReconnectConfig[In, Out], opts ...Option) *Fitting {
	cfg.Stream.Name = name
	f := New(name, func(ctx context.Context) error {
		return flow.ReconnectingStreamToPipe(ctx, src, h, dst, cfg)
	}, opts...)
	f.details = "reconnecting-stream"
	f.adoptMetrics(cfg.Stream.Metrics)
	return f
}

// adoptMetrics keeps a metrics handle set via WithMetrics over one pulled
// from the transfer config.
func (f *Fitting) adoptMetrics(m *observability.Metrics) {
	if f.metrics == nil {
		f.metrics = m
	}
}

// Name returns the fitting name.
func (f *Fitting) Name() string { return f.name }

// Start launches the connecting task under a fresh task manager. Starting
// a fitting that is already running fails; starting one that has finished
// begins a new run.
func (f *Fitting) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mgr != nil && f.mgr.IsRunning() {
		return errors.InvalidInput("state", "fitting is already running")
	}
	mgr := task.NewManager(f.tracedRun(),
		task.WithName(f.name),
		task.WithLogger(f.log),
		task.OnSuccess(f.onSuccess),
		task.OnFailure(f.onFailure),
	)
	if err := mgr.Start(); err != nil {
		return err
	}
	f.mgr = mgr
	f.log.Info("Fitting started")
	return nil
}

// tracedRun wraps the connecting task so each run carries its own span,
// run context, and flow start/end metrics.
func (f *Fitting) tracedRun() task.Func {
	connect := f.connect
	return func(ctx context.Context) error {
		rc := observability.NewRunContext("", f.name, uuid.NewString(), f.metrics)
		ctx = observability.WithRunContext(ctx, rc)
		ctx, span := rc.StartSpanForRun(ctx, observability.SpanFlowRun)
		err := connect(ctx)
		status := "completed"
		switch {
		case err == nil:
		case ctx.Err() != nil:
			status = "cancelled"
		default:
			status = "failed"
		}
		rc.EndRun(ctx, span, status, err)
		return err
	}
}

// Stop cancels the connecting task and waits for it to unwind, which
// includes the transfer loop's drain-and-flush. Stopping a fitting that
// never started is a no-op.
func (f *Fitting) Stop(ctx context.Context) error {
	f.mu.Lock()
	mgr := f.mgr
	f.mu.Unlock()
	if mgr == nil {
		return nil
	}
	if err := mgr.Stop(ctx); err != nil {
		return err
	}
	f.log.Info("Fitting stopped", logger.Fields(logger.FieldStatus, mgr.State().String()))
	return nil
}

// IsRunning reports whether the connecting task is currently running.
func (f *Fitting) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mgr != nil && f.mgr.IsRunning()
}

// State returns the current run's task state, or StateNotStarted before
// the first Start.
func (f *Fitting) State() task.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mgr == nil {
		return task.StateNotStarted
	}
	return f.mgr.State()
}

// Err returns the error the current run failed with, or nil.
func (f *Fitting) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mgr == nil {
		return nil
	}
	return f.mgr.Err()
}

// Wait blocks until the current run reaches a terminal state.
func (f *Fitting) Wait(ctx context.Context) error {
	f.mu.Lock()
	mgr := f.mgr
	f.mu.Unlock()
	if mgr == nil {
		return errors.InvalidInput("state", "fitting was never started")
	}
	return mgr.Wait(ctx)
}

// Health reports the fitting as healthy while its task runs, degraded
// when it has not run or ended cleanly, and unhealthy when it failed.
func (f *Fitting) Health(_ context.Context) component.Health {
	switch st := f.State(); st {
	case task.StateRunning:
		return component.Health{Name: f.name, Status: component.StatusHealthy}
	case task.StateFailed:
		return component.Health{
			Name:    f.name,
			Status:  component.StatusUnhealthy,
			Message: f.Err().Error(),
		}
	default:
		return component.Health{
			Name:    f.name,
			Status:  component.StatusDegraded,
			Message: "not running: " + st.String(),
		}
	}
}

// Describe returns summary info for group startup logging.
func (f *Fitting) Describe() component.Description {
	return component.Description{
		Name:    f.name,
		Type:    "fitting",
		Details: f.details,
	}
}

var (
	_ component.Component   = (*Fitting)(nil)
	_ component.Describable = (*Fitting)(nil)
)
