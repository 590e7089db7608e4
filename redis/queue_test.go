package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/flow"
	"github.com/kbukum/pipekit/pipe"
)

// newTestClient creates a Client backed by miniredis.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mini.Close)

	client, err := New(Config{Addr: mini.Addr()}, nil)
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

type trade struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func TestQueue_FIFORoundTripWithSentinel(t *testing.T) {
	client := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	q, err := NewQueue[trade](client, "trades", 10, nil)
	if err != nil {
		t.Fatalf("NewQueue failed: %v", err)
	}

	in := []trade{{"BTC", 100.5}, {"ETH", 20.25}, {"SOL", 3.75}}
	for _, v := range in {
		if err := q.Put(ctx, v); err != nil {
			t.Fatalf("Put(%+v) failed: %v", v, err)
		}
	}
	if _, err := q.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	var out []trade
	for {
		it, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if it.IsEnd() {
			break
		}
		out = append(out, it.Value())
	}
	if len(out) != len(in) {
		t.Fatalf("received %d items, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("position %d: got %+v, want %+v", i, out[i], in[i])
		}
	}
}

func TestQueue_PutAfterStopFails(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	q, err := NewQueue[int](client, "nums", 10, nil)
	if err != nil {
		t.Fatalf("NewQueue failed: %v", err)
	}
	if q.Stopped() {
		t.Fatal("fresh queue reported stopped")
	}
	newly, err := q.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !newly {
		t.Fatal("first Stop did not report newly stopped")
	}
	if !q.Stopped() {
		t.Fatal("stopped queue reported active")
	}
	err = q.Put(ctx, 1)
	if !errors.IsCode(err, errors.ErrCodePipeStopped) {
		t.Fatalf("Put after Stop = %v, want pipe-stopped", err)
	}
	// Second stop is a no-op and must not enqueue a second sentinel.
	newly, err = q.Stop(ctx)
	if err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
	if newly {
		t.Fatal("second Stop reported newly stopped")
	}
	n, err := q.Size(ctx)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("list length = %d after double stop, want 1 sentinel", n)
	}
}

func TestQueue_FullPutTimesOutAsPipeFull(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	q, err := NewQueue[int](client, "tiny", 1, nil)
	if err != nil {
		t.Fatalf("NewQueue failed: %v", err)
	}
	if err := q.Put(ctx, 1); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if full, _ := q.Full(ctx); !full {
		t.Fatal("queue at capacity not reported full")
	}

	putCtx, cancel := context.WithTimeout(ctx, 120*time.Millisecond)
	defer cancel()
	err = q.Put(putCtx, 2)
	if !errors.IsCode(err, errors.ErrCodePipeFull) {
		t.Fatalf("Put into full queue = %v, want pipe-full", err)
	}
}

func TestQueue_StartClearsStateForReuse(t *testing.T) {
	client := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	q, err := NewQueue[int](client, "cycle", 5, nil)
	if err != nil {
		t.Fatalf("NewQueue failed: %v", err)
	}
	if err := q.Put(ctx, 1); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := q.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := q.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if q.Stopped() {
		t.Fatal("restarted queue reported stopped")
	}
	n, err := q.Size(ctx)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("restarted queue holds %d elements, want 0", n)
	}
	if err := q.Put(ctx, 2); err != nil {
		t.Fatalf("Put after restart failed: %v", err)
	}
}

func TestQueue_TakeSnapshotEmptiesList(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	q, err := NewQueue[int](client, "snap", 10, nil)
	if err != nil {
		t.Fatalf("NewQueue failed: %v", err)
	}
	for _, v := range []int{7, 8, 9} {
		if err := q.Put(ctx, v); err != nil {
			t.Fatalf("Put(%d) failed: %v", v, err)
		}
	}

	items := q.TakeSnapshot()
	if len(items) != 3 {
		t.Fatalf("snapshot holds %d items, want 3", len(items))
	}
	for i, want := range []int{7, 8, 9} {
		if items[i].IsEnd() || items[i].Value() != want {
			t.Fatalf("snapshot[%d] = %+v, want %d", i, items[i], want)
		}
	}
	n, err := q.Size(ctx)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("list still holds %d elements after TakeSnapshot", n)
	}
}

func TestQueue_TransferFromMemoryPipe(t *testing.T) {
	client := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	src := pipe.New[trade](8)
	dst, err := NewQueue[trade](client, "out", 10, nil)
	if err != nil {
		t.Fatalf("NewQueue failed: %v", err)
	}

	in := []trade{{"BTC", 1}, {"ETH", 2}}
	for _, v := range in {
		if err := src.Put(ctx, v); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if _, err := src.Stop(ctx); err != nil {
		t.Fatalf("source Stop failed: %v", err)
	}

	err = flow.Transfer(ctx, src, flow.Identity[trade](), dst, flow.TransferConfig[trade, trade]{Name: "to-redis"})
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	var out []trade
	for {
		it, gerr := dst.Get(ctx)
		if gerr != nil {
			t.Fatalf("Get failed: %v", gerr)
		}
		if it.IsEnd() {
			break
		}
		out = append(out, it.Value())
	}
	if len(out) != len(in) || out[0] != in[0] || out[1] != in[1] {
		t.Fatalf("redis queue received %v, want %v", out, in)
	}
	if !dst.Stopped() {
		t.Fatal("transfer did not seal the redis queue")
	}
}

func TestConfig_Validate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	cfg.DialTimeout = "soon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("bad dial_timeout validated")
	}
	cfg = Config{Addr: "localhost:6379", DB: -1}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative db validated")
	}
}
