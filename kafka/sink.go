package kafka

import (
	"context"
	"fmt"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/flow"
	"github.com/kbukum/pipekit/logger"
)

// Sink writes messages to one topic as a flow.Destination[Message]. The
// broker provides the real buffering, so the pipe-side backpressure is
// the writer's own batching and write timeout.
type Sink struct {
	cfg   Config
	topic string
	log   *logger.Logger

	mu      sync.Mutex
	writer  *kafkago.Writer
	stopped bool
}

// NewSink creates a sink for one topic. The writer dials lazily on the
// first Put.
func NewSink(cfg Config, topic string, log *logger.Logger) (*Sink, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Validation(err.Error())
	}
	if topic == "" {
		return nil, errors.MissingField("topic")
	}
	transport, err := newTransport(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka sink transport: %w", err)
	}
	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		Transport:    transport,
		Compression:  resolveCompression(cfg.Compression),
		BatchSize:    cfg.BatchSize,
		BatchTimeout: ParseDuration(cfg.BatchTimeout),
		WriteTimeout: ParseDuration(cfg.WriteTimeout),
		RequiredAcks: kafkago.RequiredAcks(cfg.RequiredAcks),
	}
	return &Sink{
		cfg:    cfg,
		topic:  topic,
		writer: writer,
		log: logger.OrNop(log).WithComponent("kafka.sink").WithFields(map[string]interface{}{
			"topic": topic,
		}),
	}, nil
}

// Topic returns the produced topic.
func (s *Sink) Topic() string { return s.topic }

// Put writes one message to the topic.
func (s *Sink) Put(ctx context.Context, m Message) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return errors.PipeStopped().WithDetail("topic", s.topic)
	}
	writer := s.writer
	s.mu.Unlock()
	if err := writer.WriteMessages(ctx, toKafka(m)); err != nil {
		return fmt.Errorf("write topic %s: %w", s.topic, err)
	}
	return nil
}

// Stop seals the sink and flushes the writer's batches, reporting whether
// this call newly sealed it. There is no in-band sentinel on a Kafka
// topic; downstream consumers rely on their own end-of-stream signaling.
func (s *Sink) Stop(_ context.Context) (bool, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false, nil
	}
	s.stopped = true
	s.mu.Unlock()
	s.log.Info("Kafka sink stopped")
	return true, s.writer.Close()
}

// Stopped reports whether the sink no longer accepts messages.
func (s *Sink) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Stats returns a snapshot of the writer's counters.
func (s *Sink) Stats() WriterStats {
	return collectWriterStats(s.writer.Stats())
}

var _ flow.Destination[Message] = (*Sink)(nil)
