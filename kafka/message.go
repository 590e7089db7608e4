package kafka

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/pipekit/flow"
)

// Message is the item type Kafka sources and sinks move through pipes.
type Message struct {
	Key       string            `json:"key"`
	Value     []byte            `json:"value"`
	Topic     string            `json:"topic,omitempty"`
	Partition int               `json:"partition,omitempty"`
	Offset    int64             `json:"offset,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// fromKafka converts an inbound kafka-go message.
func fromKafka(m kafkago.Message) Message {
	msg := Message{
		Key:       string(m.Key),
		Value:     m.Value,
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Timestamp: m.Time,
	}
	if len(m.Headers) > 0 {
		msg.Headers = make(map[string]string, len(m.Headers))
		for _, h := range m.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}
	}
	return msg
}

// toKafka converts an outbound message. Topic is left to the writer.
func toKafka(m Message) kafkago.Message {
	out := kafkago.Message{
		Key:   []byte(m.Key),
		Value: m.Value,
		Time:  m.Timestamp,
	}
	for k, v := range m.Headers {
		out.Headers = append(out.Headers, kafkago.Header{Key: k, Value: []byte(v)})
	}
	return out
}

// DecodeJSON is a handler that unmarshals each message value into a T.
func DecodeJSON[T any]() flow.Handler[Message, T] {
	return flow.Map(func(_ context.Context, m Message) (T, error) {
		var v T
		err := json.Unmarshal(m.Value, &v)
		return v, err
	})
}

// EncodeJSON is a handler that marshals each item into a message value,
// keyed by keyFn when given.
func EncodeJSON[T any](keyFn func(T) string) flow.Handler[T, Message] {
	return flow.Map(func(_ context.Context, v T) (Message, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return Message{}, err
		}
		m := Message{Value: data, Timestamp: time.Now()}
		if keyFn != nil {
			m.Key = keyFn(v)
		}
		return m, nil
	})
}
