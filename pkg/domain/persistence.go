package domain

import "context"

// Transaction exposes the crate mutations a persistence implementation must
// support within an atomic scope. Audit and notification records are written
// outside this scope on purpose: their failure domains are independent of
// the lifecycle mutation.
type Transaction interface {
	Snapshot() TransactionView
	CreateCrate(Crate) (Crate, error)
	UpdateCrate(id string, mutator func(*Crate) error) (Crate, error)
	DeleteCrate(id string) error
	FindCrate(id string) (Crate, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListCrates() []Crate
	FindCrate(id string) (Crate, bool)
}

// PersistentStore is a minimal abstraction over durable backends. Crate
// mutations run through RunInTransaction; activities and notifications are
// append-mostly side collections with their own write paths.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error

	GetCrate(id string) (Crate, bool)
	ListCrates() []Crate

	AppendActivity(ctx context.Context, activity Activity) (Activity, error)
	ListActivities(ctx context.Context, limit int) ([]Activity, error)

	CreateNotification(ctx context.Context, notification Notification) (Notification, error)
	ListNotifications(ctx context.Context, limit int) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id string) (Notification, error)
}
