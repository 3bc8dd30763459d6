// Package stream mirrors lifecycle events to Kafka. Publishing is a
// best-effort side effect: callers treat write errors as droppable.
package stream

import (
	"context"
	"encoding/json"

	skafka "github.com/segmentio/kafka-go"
)

// Writer defines the subset of the kafka writer the publisher needs, making
// it testable without a broker.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// Publisher writes keyed JSON events to a topic.
type Publisher struct {
	writer Writer
}

// NewPublisher creates a publisher writing to the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	w := &skafka.Writer{
		Addr:     skafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &skafka.LeastBytes{},
	}
	return &Publisher{writer: w}
}

// NewPublisherWithWriter allows injecting a test writer.
func NewPublisherWithWriter(w Writer) *Publisher {
	return &Publisher{writer: w}
}

// Publish marshals the value to JSON and writes a message with the given key.
func (p *Publisher) Publish(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, skafka.Message{Key: []byte(key), Value: b})
}

// Close closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
