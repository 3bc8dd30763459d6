package core

import (
	"context"
	"time"

	"cratecore/pkg/domain"
)

// Event is one lifecycle event emitted after a crate mutation has
// committed. Events feed the audit trail, the notification fanout, and the
// optional stream publisher; none of those sinks can affect the committed
// mutation.
type Event struct {
	Type      string             `json:"type"`
	Message   string             `json:"message"`
	Status    domain.EventStatus `json:"status"`
	RelatedID string             `json:"related_id"`
	Time      time.Time          `json:"time"`
}

// EventSink consumes lifecycle events on a best-effort basis. A sink error
// is reported to the side-effect log and otherwise swallowed: at-most-once,
// no retry, no rollback.
type EventSink interface {
	Name() string
	Consume(ctx context.Context, event Event) error
}

// AuditTrail appends one immutable Activity record per lifecycle event.
type AuditTrail struct {
	store PersistentStore
}

// NewAuditTrail constructs the audit trail writer over the given store.
func NewAuditTrail(store PersistentStore) *AuditTrail {
	return &AuditTrail{store: store}
}

// Name identifies the sink in side-effect failure reports.
func (a *AuditTrail) Name() string { return "audit" }

// Consume persists the event as an Activity record.
func (a *AuditTrail) Consume(ctx context.Context, event Event) error {
	_, err := a.store.AppendActivity(ctx, Activity{
		Type:      event.Type,
		Message:   event.Message,
		Status:    event.Status,
		Time:      event.Time,
		RelatedID: event.RelatedID,
	})
	return err
}

// NotificationFanout persists one unread Notification per lifecycle event.
type NotificationFanout struct {
	store PersistentStore
}

// NewNotificationFanout constructs the notification writer over the given store.
func NewNotificationFanout(store PersistentStore) *NotificationFanout {
	return &NotificationFanout{store: store}
}

// Name identifies the sink in side-effect failure reports.
func (n *NotificationFanout) Name() string { return "notify" }

// Consume persists the event as an unread Notification.
func (n *NotificationFanout) Consume(ctx context.Context, event Event) error {
	_, err := n.store.CreateNotification(ctx, Notification{
		Type:      event.Type,
		Message:   event.Message,
		Status:    event.Status,
		Time:      event.Time,
		RelatedID: event.RelatedID,
	})
	return err
}

// EventPublisher is the subset of the stream publisher the core depends on.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// StreamSink mirrors lifecycle events to an external stream, keyed by the
// related crate identifier.
type StreamSink struct {
	publisher EventPublisher
}

// NewStreamSink wraps a publisher as a best-effort event sink.
func NewStreamSink(publisher EventPublisher) *StreamSink {
	return &StreamSink{publisher: publisher}
}

// Name identifies the sink in side-effect failure reports.
func (s *StreamSink) Name() string { return "stream" }

// Consume publishes the event to the stream.
func (s *StreamSink) Consume(ctx context.Context, event Event) error {
	return s.publisher.Publish(ctx, event.RelatedID, event)
}
