package errlog

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/kbukum/pipekit/errors"
)

func TestShield_PassesThroughSuccess(t *testing.T) {
	fn := Shield(ShieldConfig{}, func(ctx context.Context, v int) error {
		return nil
	})
	if err := fn(context.Background(), 1); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestShield_ConvertsUnknownErrors(t *testing.T) {
	cause := stderrors.New("boom")
	fn := Shield(ShieldConfig{}, func(ctx context.Context, v int) error {
		return cause
	})

	err := fn(context.Background(), 42)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsCode(err, errors.ErrCodeInternal) {
		t.Errorf("expected conversion to internal error, got %v", err)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected original error preserved as cause")
	}

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		t.Fatal("expected AppError")
	}
	if appErr.Details["item"] != "42" {
		t.Errorf("expected triggering item in details, got %v", appErr.Details)
	}
}

func TestShield_CustomConvert(t *testing.T) {
	fn := Shield(ShieldConfig{
		Convert: func(item any, err error) error {
			return errors.DestinationPut(err)
		},
	}, func(ctx context.Context, v string) error {
		return stderrors.New("write refused")
	})

	err := fn(context.Background(), "payload")
	if !errors.IsCode(err, errors.ErrCodeDestinationPut) {
		t.Errorf("expected custom conversion, got %v", err)
	}
}

func TestShield_ReraiseListUnchanged(t *testing.T) {
	full := errors.PipeFull(4)
	fn := Shield(ShieldConfig{
		Reraise: []error{errors.New(errors.ErrCodePipeFull, "")},
	}, func(ctx context.Context, v int) error {
		return full
	})

	err := fn(context.Background(), 1)
	if err != full {
		t.Errorf("expected the original error returned unchanged, got %v", err)
	}
}

func TestShield_CancelReraisedByDefault(t *testing.T) {
	fn := Shield(ShieldConfig{}, func(ctx context.Context, v int) error {
		return context.Canceled
	})

	err := fn(context.Background(), 1)
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation propagated, got %v", err)
	}
}

func TestShield_SwallowCancel(t *testing.T) {
	fn := Shield(ShieldConfig{SwallowCancel: true}, func(ctx context.Context, v int) error {
		return context.Canceled
	})

	if err := fn(context.Background(), 1); err != nil {
		t.Errorf("expected cancellation swallowed, got %v", err)
	}
}

func TestShield_RecordsFailures(t *testing.T) {
	rec, buf := newCaptureRecorder()
	fn := Shield(ShieldConfig{Recorder: rec}, func(ctx context.Context, v int) error {
		return stderrors.New("handler blew up")
	})

	fn(context.Background(), 1)
	fn(context.Background(), 2)

	if got := countLines(buf, "handler blew up"); got != 1 {
		t.Errorf("expected repeated failure recorded once, got %d", got)
	}
}
