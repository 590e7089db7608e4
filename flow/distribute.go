package flow

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/logger"
)

// Distribute fans one source out to several destinations. Every retrieved
// value is dispatched to all destinations concurrently, through either one
// shared handler or exactly one handler per destination. The sentinel
// stops every destination and ends the run.
//
// Cancellation stops the destinations and propagates without flushing;
// buffered items stay in the source for its owner to dispose of.
func Distribute[In, Out any](ctx context.Context, src Source[In], handlers []Handler[In, Out], dsts []Destination[Out], cfg TransferConfig[In, Out]) error {
	if src == nil {
		return errors.MissingField("source")
	}
	if len(dsts) == 0 {
		return errors.Validation("distribute requires at least one destination")
	}
	if len(handlers) != 1 && len(handlers) != len(dsts) {
		return errors.InvalidInput("handlers", "need one shared handler or one per destination")
	}
	if cfg.Name == "" {
		cfg.Name = "distributor"
	}
	log := logger.OrNop(cfg.Logger).WithComponent(cfg.Name)

	ts := make([]*transfer[In, Out], len(dsts))
	for i, dst := range dsts {
		h := handlers[0]
		if len(handlers) > 1 {
			h = handlers[i]
		}
		c := cfg
		c.Name = fmt.Sprintf("%s[%d]", cfg.Name, i)
		t, err := newTransfer(src, h, dst, c)
		if err != nil {
			return err
		}
		ts[i] = t
	}

	for {
		item, err := src.Get(ctx)
		if err != nil {
			if ctx.Err() != nil {
				stopAll(context.WithoutCancel(ctx), dsts, log)
				return err
			}
			return errors.SourceGet(err)
		}
		if item.IsEnd() {
			src.TaskDone()
			stopAll(ctx, dsts, log)
			log.Debug("Distribution complete, all destinations stopped")
			return nil
		}

		v := item.Value()
		g, gctx := errgroup.WithContext(ctx)
		for _, t := range ts {
			g.Go(func() error {
				return t.transform(gctx, v)
			})
		}
		err = g.Wait()
		src.TaskDone()
		if err != nil {
			if ctx.Err() != nil {
				stopAll(context.WithoutCancel(ctx), dsts, log)
				return ctx.Err()
			}
			return err
		}
	}
}

func stopAll[T any](ctx context.Context, dsts []Destination[T], log *logger.Logger) {
	for _, d := range dsts {
		stopQuietly(ctx, d, log)
	}
}
