package flow

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/logger"
)

// FanIn runs one transfer per source into a shared destination, applying
// the same handler to every source. The destination is sealed exactly once,
// after every source has delivered its sentinel, so an early-finishing
// source never cuts off its siblings. Stateful handlers must tolerate
// concurrent use.
//
// The first transfer failure cancels the remaining ones; each of those
// drains its own source before returning, and the failure is what FanIn
// reports.
func FanIn[In, Out any](ctx context.Context, sources []Source[In], h Handler[In, Out], dst Destination[Out], cfg TransferConfig[In, Out]) error {
	if len(sources) == 0 {
		return errors.Validation("fan-in requires at least one source")
	}
	if dst == nil {
		return errors.MissingField("destination")
	}
	if cfg.Name == "" {
		cfg.Name = "fan-in"
	}
	log := logger.OrNop(cfg.Logger).WithComponent(cfg.Name)

	ts := make([]*transfer[In, Out], len(sources))
	for i, src := range sources {
		c := cfg
		c.Name = fmt.Sprintf("%s[%d]", cfg.Name, i)
		t, err := newTransfer(src, h, dst, c)
		if err != nil {
			return err
		}
		ts[i] = t
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range ts {
		g.Go(func() error {
			return t.run(gctx, false)
		})
	}
	err := g.Wait()

	sctx := ctx
	if ctx.Err() != nil {
		sctx = context.WithoutCancel(ctx)
	}
	stopQuietly(sctx, dst, log)
	return err
}
