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

// Source streams one topic as a flow.StreamSource[Message]. Connect opens
// a reader and Disconnect closes it, so the reconnect supervisor can cycle
// the consumer-group membership on broker trouble.
type Source struct {
	cfg   Config
	topic string
	log   *logger.Logger

	mu     sync.Mutex
	reader *kafkago.Reader
}

// NewSource creates a source for one topic.
func NewSource(cfg Config, topic string, log *logger.Logger) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Validation(err.Error())
	}
	if topic == "" {
		return nil, errors.MissingField("topic")
	}
	return &Source{
		cfg:   cfg,
		topic: topic,
		log: logger.OrNop(log).WithComponent("kafka.source").WithFields(map[string]interface{}{
			"topic": topic,
		}),
	}, nil
}

// Topic returns the consumed topic.
func (s *Source) Topic() string { return s.topic }

// Connect opens the reader. Connecting an already-connected source fails.
func (s *Source) Connect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader != nil {
		return errors.InvalidInput("state", "source is already connected")
	}
	dialer, err := newDialer(&s.cfg)
	if err != nil {
		return fmt.Errorf("kafka source dialer: %w", err)
	}
	startOffset := kafkago.FirstOffset
	if s.cfg.StartOffset == "last" {
		startOffset = kafkago.LastOffset
	}
	s.reader = kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:           s.cfg.Brokers,
		Topic:             s.topic,
		GroupID:           s.cfg.GroupID,
		Dialer:            dialer,
		StartOffset:       startOffset,
		MinBytes:          s.cfg.MinBytes,
		MaxBytes:          s.cfg.MaxBytes,
		SessionTimeout:    ParseDuration(s.cfg.SessionTimeout),
		HeartbeatInterval: ParseDuration(s.cfg.HeartbeatInterval),
		RebalanceTimeout:  ParseDuration(s.cfg.RebalanceTimeout),
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			s.log.Error("reader: "+fmt.Sprintf(msg, args...), nil)
		}),
	})
	s.log.Info("Kafka source connected", logger.Fields("group", s.cfg.GroupID))
	return nil
}

// Disconnect closes the reader, committing group offsets on the way out.
// Safe to call on a source that is not connected.
func (s *Source) Disconnect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader == nil {
		return nil
	}
	err := s.reader.Close()
	s.reader = nil
	s.log.Info("Kafka source disconnected")
	return err
}

// Recv blocks for the next message. A topic never ends on its own, so
// Recv only returns on a message, a broker failure, or ctx cancellation.
func (s *Source) Recv(ctx context.Context) (Message, error) {
	s.mu.Lock()
	reader := s.reader
	s.mu.Unlock()
	if reader == nil {
		return Message{}, errors.InvalidInput("state", "source is not connected")
	}
	m, err := reader.ReadMessage(ctx)
	if err != nil {
		return Message{}, err
	}
	return fromKafka(m), nil
}

// Stats returns a snapshot of the reader's counters, or zero values when
// the source is not connected.
func (s *Source) Stats() ReaderStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader == nil {
		return ReaderStats{}
	}
	return collectReaderStats(s.reader.Stats())
}

var _ flow.StreamSource[Message] = (*Source)(nil)
