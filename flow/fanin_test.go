package flow

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/pipe"
)

func TestFanIn_MergesAllSourcesAndSealsOnce(t *testing.T) {
	ctx := context.Background()
	s1 := pipe.New[int](8)
	s2 := pipe.New[int](8)
	s3 := pipe.New[int](8)
	fill(t, s1, 1, 2)
	fill(t, s2, 3, 4)
	fill(t, s3, 5, 6)
	dst := pipe.New[int](16)

	err := FanIn(ctx, []Source[int]{s1, s2, s3}, Identity[int](), dst, TransferConfig[int, int]{})
	if err != nil {
		t.Fatalf("FanIn failed: %v", err)
	}
	if !dst.Stopped() {
		t.Error("destination should be sealed after all sources finish")
	}
	got := collect(t, dst)
	sort.Ints(got)
	if fmt.Sprint(got) != fmt.Sprint([]int{1, 2, 3, 4, 5, 6}) {
		t.Errorf("expected the union of all sources, got %v", got)
	}
	if dst.Size() != 0 {
		t.Errorf("exactly one sentinel should have been enqueued, %d items remain", dst.Size())
	}

	jctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	for i, s := range []*pipe.Pipe[int]{s1, s2, s3} {
		if err := s.Join(jctx); err != nil {
			t.Errorf("source %d should be fully processed: %v", i, err)
		}
	}
}

func TestFanIn_EarlyFinisherDoesNotSealDestination(t *testing.T) {
	ctx := context.Background()
	s1 := pipe.New[int](2)
	s2 := pipe.New[int](8)
	fill(t, s1)
	fill(t, s2, 1, 2, 3)
	dst := pipe.New[int](8)

	err := FanIn(ctx, []Source[int]{s1, s2}, Identity[int](), dst, TransferConfig[int, int]{})
	if err != nil {
		t.Fatalf("an instantly finished source must not cut off its siblings: %v", err)
	}
	got := collect(t, dst)
	sort.Ints(got)
	if fmt.Sprint(got) != fmt.Sprint([]int{1, 2, 3}) {
		t.Errorf("the slower source's items should all arrive, got %v", got)
	}
}

func TestFanIn_FailurePropagates(t *testing.T) {
	ctx := context.Background()
	s1 := pipe.New[int](8)
	s2 := pipe.New[int](8)
	fill(t, s1, 5)
	fill(t, s2, 1, 2)
	dst := pipe.New[int](8)

	boom := stderrors.New("boom")
	h := Map(func(_ context.Context, v int) (int, error) {
		if v == 5 {
			return 0, boom
		}
		return v, nil
	})
	err := FanIn(ctx, []Source[int]{s1, s2}, h, dst, TransferConfig[int, int]{})
	if !errors.IsCode(err, errors.ErrCodeTransform) {
		t.Fatalf("expected the transform failure, got %v", err)
	}
	if !dst.Stopped() {
		t.Error("destination is still sealed after a failed merge")
	}
}

func TestFanIn_NoSourcesRejected(t *testing.T) {
	ctx := context.Background()
	dst := pipe.New[int](2)

	err := FanIn(ctx, nil, Identity[int](), Destination[int](dst), TransferConfig[int, int]{})
	if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
