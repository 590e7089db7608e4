package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/flow"
	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/pipe"
)

// DefaultCapacity is used when NewQueue is given a non-positive capacity.
const DefaultCapacity = 1000

// fullPollInterval is how often a blocked Put re-checks the list length.
const fullPollInterval = 50 * time.Millisecond

// blockTimeout slices a blocking Get so ctx cancellation is observed.
const blockTimeout = time.Second

// envelope is the wire form of one list element. End marks the sentinel.
type envelope struct {
	End   bool            `json:"end,omitempty"`
	Value json.RawMessage `json:"v,omitempty"`
}

// Queue is a bounded FIFO pipe backed by a Redis list. It satisfies both
// flow.Source and flow.Destination, so a transfer can read from or write
// to another process through it.
type Queue[T any] struct {
	client   *Client
	key      string
	capacity int
	log      *logger.Logger
}

// NewQueue creates a queue over the list stored at key. Queues in
// different processes built on the same key share one stream of items.
func NewQueue[T any](client *Client, key string, capacity int, log *logger.Logger) (*Queue[T], error) {
	if client == nil {
		return nil, errors.MissingField("client")
	}
	if key == "" {
		return nil, errors.MissingField("key")
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue[T]{
		client:   client,
		key:      key,
		capacity: capacity,
		log: logger.OrNop(log).WithComponent("redis.queue").WithFields(map[string]interface{}{
			logger.FieldPipe: key,
		}),
	}, nil
}

// Key returns the backing list key.
func (q *Queue[T]) Key() string { return q.key }

// Capacity returns the configured length bound.
func (q *Queue[T]) Capacity() int { return q.capacity }

func (q *Queue[T]) stopKey() string { return q.key + ":stopped" }

// Get blocks for the next item, or until ctx ends. Buffered items are
// still served after Stop; the sentinel comes last.
func (q *Queue[T]) Get(ctx context.Context) (pipe.Item[T], error) {
	var zero pipe.Item[T]
	rdb := q.client.Unwrap()
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		res, err := rdb.BLPop(ctx, blockTimeout, q.key).Result()
		if err != nil {
			if stderrors.Is(err, goredis.Nil) {
				continue // timed out empty, re-check ctx
			}
			return zero, fmt.Errorf("blpop %s: %w", q.key, err)
		}
		// BLPop returns [key, value].
		var env envelope
		if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
			return zero, fmt.Errorf("decode envelope from %s: %w", q.key, err)
		}
		if env.End {
			return pipe.End[T](), nil
		}
		var v T
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return zero, fmt.Errorf("decode value from %s: %w", q.key, err)
		}
		return pipe.Of(v), nil
	}
}

// Put appends a value, polling while the list is at capacity. A deadline
// expiring while the list stays full fails with a pipe-full error;
// cancellation is reported as-is. Putting into a stopped queue fails.
func (q *Queue[T]) Put(ctx context.Context, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode value for %s: %w", q.key, err)
	}
	payload, err := json.Marshal(envelope{Value: data})
	if err != nil {
		return fmt.Errorf("encode envelope for %s: %w", q.key, err)
	}
	rdb := q.client.Unwrap()
	for {
		stopped, err := rdb.Exists(ctx, q.stopKey()).Result()
		if err != nil {
			return fmt.Errorf("check stop marker %s: %w", q.key, err)
		}
		if stopped > 0 {
			return errors.PipeStopped().WithDetail("pipe", q.key).WithCause(pipe.ErrStopped)
		}
		length, err := rdb.LLen(ctx, q.key).Result()
		if err != nil {
			return fmt.Errorf("llen %s: %w", q.key, err)
		}
		if int(length) < q.capacity {
			if err := rdb.RPush(ctx, q.key, payload).Err(); err != nil {
				return fmt.Errorf("rpush %s: %w", q.key, err)
			}
			return nil
		}

		timer := time.NewTimer(fullPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
				cause := fmt.Errorf("%w: %w", pipe.ErrFull, ctx.Err())
				return errors.PipeFull(q.capacity).WithDetail("pipe", q.key).WithCause(cause)
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Stop sets the stop marker and appends the sentinel behind the buffered
// items. The sentinel is exempt from the capacity bound, so Stop never
// blocks. It reports whether this call newly stopped the queue; the SetNX
// on the stop marker decides that race across processes.
func (q *Queue[T]) Stop(ctx context.Context) (bool, error) {
	rdb := q.client.Unwrap()
	set, err := rdb.SetNX(ctx, q.stopKey(), "1", 0).Result()
	if err != nil {
		return false, fmt.Errorf("set stop marker %s: %w", q.key, err)
	}
	if !set {
		return false, nil
	}
	payload, _ := json.Marshal(envelope{End: true})
	if err := rdb.RPush(ctx, q.key, payload).Err(); err != nil {
		return true, fmt.Errorf("rpush sentinel %s: %w", q.key, err)
	}
	q.log.Debug("Queue stopped")
	return true, nil
}

// Start deletes the list and the stop marker, returning the queue to
// active empty.
func (q *Queue[T]) Start(ctx context.Context) error {
	rdb := q.client.Unwrap()
	if err := rdb.Del(ctx, q.key, q.stopKey()).Err(); err != nil {
		return fmt.Errorf("del %s: %w", q.key, err)
	}
	q.log.Debug("Queue restarted")
	return nil
}

// Stopped reports whether the stop marker is set. Transport failures
// report false; the next Put surfaces them properly.
func (q *Queue[T]) Stopped() bool {
	n, err := q.client.Unwrap().Exists(context.Background(), q.stopKey()).Result()
	return err == nil && n > 0
}

// Size returns the current list length.
func (q *Queue[T]) Size(ctx context.Context) (int, error) {
	n, err := q.client.Unwrap().LLen(ctx, q.key).Result()
	return int(n), err
}

// Full reports whether the list is at capacity.
func (q *Queue[T]) Full(ctx context.Context) (bool, error) {
	n, err := q.Size(ctx)
	return n >= q.capacity, err
}

// TaskDone is a no-op; join accounting does not cross processes.
func (q *Queue[T]) TaskDone() {}

// TakeSnapshot atomically removes and returns the buffered items. Items
// that fail to decode are dropped with a log line rather than poisoning
// the drain.
func (q *Queue[T]) TakeSnapshot() []pipe.Item[T] {
	ctx := context.Background()
	rdb := q.client.Unwrap()

	var rangeCmd *goredis.StringSliceCmd
	_, err := rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		rangeCmd = p.LRange(ctx, q.key, 0, -1)
		p.Del(ctx, q.key)
		return nil
	})
	if err != nil {
		q.log.Warn("Snapshot failed", logger.Fields(logger.FieldError, err.Error()))
		return nil
	}

	raw, err := rangeCmd.Result()
	if err != nil {
		q.log.Warn("Snapshot read failed", logger.Fields(logger.FieldError, err.Error()))
		return nil
	}
	items := make([]pipe.Item[T], 0, len(raw))
	for _, s := range raw {
		var env envelope
		if err := json.Unmarshal([]byte(s), &env); err != nil {
			q.log.Warn("Dropping undecodable snapshot element", logger.Fields(
				logger.FieldError, err.Error(),
			))
			continue
		}
		if env.End {
			items = append(items, pipe.End[T]())
			continue
		}
		var v T
		if err := json.Unmarshal(env.Value, &v); err != nil {
			q.log.Warn("Dropping undecodable snapshot value", logger.Fields(
				logger.FieldError, err.Error(),
			))
			continue
		}
		items = append(items, pipe.Of(v))
	}
	return items
}

var (
	_ flow.Source[int]      = (*Queue[int])(nil)
	_ flow.Destination[int] = (*Queue[int])(nil)
)
