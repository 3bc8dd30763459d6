package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	skafka "github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	messages []skafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...skafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishMarshalsKeyedJSON(t *testing.T) {
	writer := &fakeWriter{}
	pub := NewPublisherWithWriter(writer)

	payload := map[string]string{"type": "crate", "message": "New crate registered: CRT-1"}
	if err := pub.Publish(context.Background(), "CRT-1", payload); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(writer.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(writer.messages))
	}
	msg := writer.messages[0]
	if string(msg.Key) != "CRT-1" {
		t.Fatalf("unexpected key: %s", msg.Key)
	}
	var decoded map[string]string
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if decoded["message"] != "New crate registered: CRT-1" {
		t.Fatalf("unexpected value: %+v", decoded)
	}
}

func TestPublishSurfacesWriteErrors(t *testing.T) {
	writer := &fakeWriter{err: fmt.Errorf("broker down")}
	pub := NewPublisherWithWriter(writer)
	if err := pub.Publish(context.Background(), "k", "v"); err == nil {
		t.Fatalf("expected write error")
	}
}

func TestPublishRejectsUnmarshalableValue(t *testing.T) {
	writer := &fakeWriter{}
	pub := NewPublisherWithWriter(writer)
	if err := pub.Publish(context.Background(), "k", func() {}); err == nil {
		t.Fatalf("expected marshal error")
	}
	if len(writer.messages) != 0 {
		t.Fatalf("no message should be written on marshal failure")
	}
}

func TestCloseClosesWriter(t *testing.T) {
	writer := &fakeWriter{}
	pub := NewPublisherWithWriter(writer)
	if err := pub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !writer.closed {
		t.Fatalf("writer not closed")
	}
}
