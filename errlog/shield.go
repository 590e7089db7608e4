package errlog

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/kbukum/pipekit/errors"
)

// ShieldConfig controls how Shield classifies failures.
type ShieldConfig struct {
	// Recorder receives every failure before it is returned or swallowed.
	// Nil means failures are classified but not logged.
	Recorder *Recorder

	// Level is the severity non-cancellation failures are recorded at.
	Level Level

	// SwallowCancel returns nil instead of the cancellation error when the
	// wrapped call fails with context.Canceled.
	SwallowCancel bool

	// Reraise lists errors returned unchanged after recording. Matching
	// uses errors.Is, so both sentinel values and coded app errors work.
	Reraise []error

	// Convert turns any remaining failure into the error the caller sees.
	// Nil falls back to an internal error carrying the item and the
	// original failure as cause.
	Convert func(item any, err error) error
}

// Shield wraps a per-item callback with failure classification. Cancellation
// is recorded and re-raised, or swallowed when configured. Errors matching
// the Reraise list are recorded and returned unchanged. Everything else is
// recorded and converted, preserving the original failure as cause and the
// triggering item as a diagnostic detail.
func Shield[T any](cfg ShieldConfig, fn func(context.Context, T) error) func(context.Context, T) error {
	rec := cfg.Recorder
	if rec == nil {
		rec = NewRecorder(nil)
	}
	convert := cfg.Convert
	if convert == nil {
		convert = func(item any, err error) error {
			return errors.Internal(err).WithDetail("item", fmt.Sprintf("%v", item))
		}
	}

	return func(ctx context.Context, item T) error {
		err := fn(ctx, item)
		if err == nil {
			return nil
		}

		if stderrors.Is(err, context.Canceled) {
			rec.Log(LevelDebug, err, "call cancelled")
			if cfg.SwallowCancel {
				return nil
			}
			return err
		}

		for _, allowed := range cfg.Reraise {
			if stderrors.Is(err, allowed) {
				rec.Log(cfg.Level, err, "")
				return err
			}
		}

		rec.Log(cfg.Level, err, "")
		return convert(item, err)
	}
}
