package flow

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/pipe"
)

func TestDistribute_SharedHandlerReachesAllDestinations(t *testing.T) {
	ctx := context.Background()
	src := pipe.New[int](8)
	fill(t, src, 1, 2)
	d1 := pipe.New[int](8)
	d2 := pipe.New[int](8)

	err := Distribute(ctx, Source[int](src),
		[]Handler[int, int]{Identity[int]()},
		[]Destination[int]{d1, d2},
		TransferConfig[int, int]{})
	if err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}
	for i, d := range []*pipe.Pipe[int]{d1, d2} {
		if !d.Stopped() {
			t.Errorf("destination %d should be sealed after the sentinel", i)
		}
		if got := collect(t, d); fmt.Sprint(got) != fmt.Sprint([]int{1, 2}) {
			t.Errorf("destination %d: expected every value, got %v", i, got)
		}
	}

	jctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := src.Join(jctx); err != nil {
		t.Errorf("source should be fully processed: %v", err)
	}
}

func TestDistribute_PerDestinationHandlers(t *testing.T) {
	ctx := context.Background()
	src := pipe.New[int](8)
	fill(t, src, 1, 2)
	d1 := pipe.New[int](8)
	d2 := pipe.New[int](8)

	inc := Map(func(_ context.Context, v int) (int, error) { return v + 1, nil })
	tens := Map(func(_ context.Context, v int) (int, error) { return v * 10, nil })

	err := Distribute(ctx, Source[int](src),
		[]Handler[int, int]{inc, tens},
		[]Destination[int]{d1, d2},
		TransferConfig[int, int]{})
	if err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}
	if got := collect(t, d1); fmt.Sprint(got) != fmt.Sprint([]int{2, 3}) {
		t.Errorf("first destination: %v", got)
	}
	if got := collect(t, d2); fmt.Sprint(got) != fmt.Sprint([]int{10, 20}) {
		t.Errorf("second destination: %v", got)
	}
}

func TestDistribute_HandlerCountMismatchRejected(t *testing.T) {
	ctx := context.Background()
	src := pipe.New[int](2)
	d1 := pipe.New[int](2)
	d2 := pipe.New[int](2)
	d3 := pipe.New[int](2)

	err := Distribute(ctx, Source[int](src),
		[]Handler[int, int]{Identity[int](), Identity[int]()},
		[]Destination[int]{d1, d2, d3},
		TransferConfig[int, int]{})
	if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestDistribute_CancellationStopsAllDestinations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := pipe.New[int](8)
	if err := src.Put(context.Background(), 1); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	d1 := pipe.New[int](8)
	d2 := pipe.New[int](8)

	errCh := make(chan error, 1)
	go func() {
		errCh <- Distribute(ctx, Source[int](src),
			[]Handler[int, int]{Identity[int]()},
			[]Destination[int]{d1, d2},
			TransferConfig[int, int]{})
	}()

	waitFor(t, time.Second, func() bool { return d1.Size() == 1 && d2.Size() == 1 })
	cancel()

	select {
	case err := <-errCh:
		if !stderrors.Is(err, context.Canceled) {
			t.Fatalf("expected cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Distribute did not return after cancellation")
	}
	if !d1.Stopped() || !d2.Stopped() {
		t.Error("every destination should be sealed on cancellation")
	}
}

func TestDistribute_HandlerFailurePropagates(t *testing.T) {
	ctx := context.Background()
	src := pipe.New[int](8)
	fill(t, src, 1, 2, 3)
	d1 := pipe.New[int](8)
	d2 := pipe.New[int](8)

	boom := stderrors.New("boom")
	h := Map(func(_ context.Context, v int) (int, error) {
		if v == 2 {
			return 0, boom
		}
		return v, nil
	})
	err := Distribute(ctx, Source[int](src),
		[]Handler[int, int]{h},
		[]Destination[int]{d1, d2},
		TransferConfig[int, int]{})
	if !errors.IsCode(err, errors.ErrCodeTransform) {
		t.Fatalf("expected the transform failure, got %v", err)
	}
	if !stderrors.Is(err, boom) {
		t.Error("original cause should be reachable through the chain")
	}
	if d1.Size() != 1 || d2.Size() != 1 {
		t.Errorf("only the first value should have been dispatched, sizes %d and %d",
			d1.Size(), d2.Size())
	}
}
