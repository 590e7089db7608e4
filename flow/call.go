package flow

import (
	"context"
	"fmt"

	"github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/logger"
)

// Call pairs a named callable with a logger for deferred invocation. Hooks
// and other user-supplied callbacks run through a Call so a panic or error
// in foreign code is captured and attributed instead of tearing down the
// transfer loop.
type Call struct {
	name string
	fn   func(context.Context) error
	log  *logger.Logger
}

// NewCall builds an invocation envelope. A nil fn yields a Call whose
// Invoke is a no-op.
func NewCall(name string, fn func(context.Context) error, log *logger.Logger) *Call {
	return &Call{name: name, fn: fn, log: logger.OrNop(log)}
}

// Name returns the label the callable was registered under.
func (c *Call) Name() string { return c.name }

// Invoke executes the callable. Panics are recovered and returned as hook
// errors carrying the call name, so one misbehaving callback cannot crash
// the loop that scheduled it.
func (c *Call) Invoke(ctx context.Context) (err error) {
	if c == nil || c.fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("callback panicked", logger.Fields(
				"call", c.name,
				logger.FieldError, fmt.Sprintf("%v", r),
			))
			err = errors.Hook(c.name, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := c.fn(ctx); err != nil {
		return errors.Hook(c.name, err)
	}
	return nil
}
