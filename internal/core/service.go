package core

import (
	"context"
	"fmt"
	"time"

	"cratecore/pkg/domain"
)

// ClockFunc supplies the current time for timestamps and event times.
type ClockFunc func() time.Time

// MetricsRecorder observes lifecycle operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// SideEffectLog receives sink failures from the post-commit dispatch loop.
// Failures are recorded and dropped; they never affect the committed mutation.
type SideEffectLog interface {
	RecordSinkFailure(sink string, event Event, err error)
}

// Service is the crate lifecycle engine. Every mutation runs in a store
// transaction under the default rules engine; derived events are dispatched
// to the configured sinks strictly after commit.
type Service struct {
	store   PersistentStore
	sinks   []EventSink
	clock   ClockFunc
	metrics MetricsRecorder
	effects SideEffectLog
}

// Option customises service construction.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock ClockFunc) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMetricsRecorder attaches an operation metrics recorder.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithSideEffectLog attaches a receiver for sink dispatch failures.
func WithSideEffectLog(log SideEffectLog) Option {
	return func(s *Service) {
		if log != nil {
			s.effects = log
		}
	}
}

// WithEventSinks replaces the default audit and notification sinks.
func WithEventSinks(sinks ...EventSink) Option {
	return func(s *Service) {
		s.sinks = sinks
	}
}

// WithStreamPublisher mirrors lifecycle events to an external stream in
// addition to the configured sinks.
func WithStreamPublisher(publisher EventPublisher) Option {
	return func(s *Service) {
		if publisher != nil {
			s.sinks = append(s.sinks, NewStreamSink(publisher))
		}
	}
}

// NewService builds a lifecycle service over the given store. By default
// events feed the store-backed audit trail and notification fanout.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		sinks: []EventSink{NewAuditTrail(store), NewNotificationFanout(store)},
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// eventTypeCrate is the activity type recorded for every crate lifecycle event.
const eventTypeCrate = "crate"

// RegisterInput carries the caller-supplied fields for crate registration.
type RegisterInput struct {
	CrateID           string
	OwnerID           string
	AssignedWarehouse string
}

// Register creates a crate with default physical state and cold-chain
// thresholds, then emits a registration event.
func (s *Service) Register(ctx context.Context, input RegisterInput) (Crate, error) {
	start := s.clock()
	crate, err := s.register(ctx, input)
	s.observe(ctx, "register", start, err)
	return crate, err
}

func (s *Service) register(ctx context.Context, input RegisterInput) (Crate, error) {
	if input.CrateID == "" {
		return Crate{}, domain.ValidationError{Field: "crate_id", Reason: "must not be empty"}
	}
	if input.OwnerID == "" {
		return Crate{}, domain.ValidationError{Field: "owner_id", Reason: "must not be empty"}
	}
	if input.AssignedWarehouse == "" {
		return Crate{}, domain.ValidationError{Field: "assigned_warehouse", Reason: "must not be empty"}
	}
	var created Crate
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		crate := Crate{
			CrateID:           input.CrateID,
			OwnerID:           input.OwnerID,
			Status:            StatusAvailable,
			Condition:         domain.ConditionExcellent,
			DoorState:         domain.DoorOpen,
			CoolingUnit:       domain.CoolingInactive,
			Sensors:           domain.SensorsOffline,
			Thresholds:        domain.DefaultThresholds(),
			Location:          input.AssignedWarehouse,
			AssignedWarehouse: input.AssignedWarehouse,
		}
		var err error
		created, err = tx.CreateCrate(crate)
		return err
	})
	if err != nil {
		return Crate{}, err
	}
	s.dispatch(ctx, Event{
		Type:      eventTypeCrate,
		Message:   fmt.Sprintf("New crate registered: %s", created.CrateID),
		Status:    EventSuccess,
		RelatedID: created.CrateID,
		Time:      s.clock(),
	})
	return created, nil
}

// TelemetryInput carries a partial physical-state report. Nil fields leave
// the stored value untouched.
type TelemetryInput struct {
	CrateID string
	OwnerID string

	DoorState   *string
	CoolingUnit *string
	Sensors     *string

	Temperature *string
	Humidity    *string

	TempUpper     *float64
	TempLower     *float64
	HumidityUpper *float64
	HumidityLower *float64

	Condition         *CrateCondition
	LinkedOrder       *string
	AssignedWarehouse *string

	Location        *string
	LocationDetails *string
}

// ApplyTelemetry merges a telemetry report into the crate. When the merged
// state shows the door closed, cooling active, and sensors live, the crate
// is forced into transit, discarding any active flag. Telemetry emits no
// lifecycle events.
func (s *Service) ApplyTelemetry(ctx context.Context, input TelemetryInput) (Crate, error) {
	start := s.clock()
	crate, err := s.applyTelemetry(ctx, input)
	s.observe(ctx, "apply_telemetry", start, err)
	return crate, err
}

func (s *Service) applyTelemetry(ctx context.Context, input TelemetryInput) (Crate, error) {
	var updated Crate
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateCrate(input.CrateID, func(crate *Crate) error {
			if err := requireOwner(crate, input.OwnerID); err != nil {
				return err
			}
			applyString(&crate.DoorState, input.DoorState)
			applyString(&crate.CoolingUnit, input.CoolingUnit)
			applyString(&crate.Sensors, input.Sensors)
			applyString(&crate.Temperature, input.Temperature)
			applyString(&crate.Humidity, input.Humidity)
			applyFloat(&crate.TempUpper, input.TempUpper)
			applyFloat(&crate.TempLower, input.TempLower)
			applyFloat(&crate.HumidityUpper, input.HumidityUpper)
			applyFloat(&crate.HumidityLower, input.HumidityLower)
			if input.Condition != nil {
				crate.Condition = *input.Condition
			}
			applyString(&crate.LinkedOrder, input.LinkedOrder)
			applyString(&crate.AssignedWarehouse, input.AssignedWarehouse)
			applyString(&crate.Location, input.Location)
			applyString(&crate.LocationDetails, input.LocationDetails)
			if inTransitConditions(*crate) {
				forceStatus(crate, StatusInTransit)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return Crate{}, err
	}
	return updated, nil
}

// inTransitConditions reports whether the merged physical state implies the
// crate is sealed and moving.
func inTransitConditions(crate Crate) bool {
	return crate.DoorState == domain.DoorClosed &&
		crate.CoolingUnit == domain.CoolingActive &&
		crate.Sensors == domain.SensorsLive
}

// forceStatus overwrites the lifecycle status unconditionally. Forcing a
// flagged crate discards its flag so the flag invariant keeps holding.
func forceStatus(crate *Crate, status CrateStatus) {
	crate.Status = status
	crate.PreviousStatus = nil
	crate.FlagDetails = nil
}

// FlagInput carries the fault details attached when flagging a crate.
type FlagInput struct {
	CrateID     string
	OwnerID     string
	Reason      string
	Description string
}

// Flag suspends a crate with a fault flag. The pre-flag status is captured
// once: re-flagging an already flagged crate replaces the details but keeps
// the original restore target.
func (s *Service) Flag(ctx context.Context, input FlagInput) (Crate, error) {
	start := s.clock()
	crate, err := s.flag(ctx, input)
	s.observe(ctx, "flag", start, err)
	return crate, err
}

func (s *Service) flag(ctx context.Context, input FlagInput) (Crate, error) {
	if input.Reason == "" {
		return Crate{}, domain.ValidationError{Field: "reason", Reason: "must not be empty"}
	}
	var updated Crate
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateCrate(input.CrateID, func(crate *Crate) error {
			if err := requireOwner(crate, input.OwnerID); err != nil {
				return err
			}
			if !crate.Flagged() {
				previous := crate.Status
				crate.PreviousStatus = &previous
			}
			crate.Status = StatusFlagged
			crate.Condition = domain.ConditionFlagged
			crate.FlagDetails = &FlagDetails{Reason: input.Reason, Description: input.Description}
			return nil
		})
		return err
	})
	if err != nil {
		return Crate{}, err
	}
	description := input.Description
	if description == "" {
		description = "No description"
	}
	s.dispatch(ctx, Event{
		Type:      eventTypeCrate,
		Message:   fmt.Sprintf("Crate %s flagged: %s - %s", updated.CrateID, input.Reason, description),
		Status:    EventWarning,
		RelatedID: updated.CrateID,
		Time:      s.clock(),
	})
	return updated, nil
}

// Resolve clears a crate's fault flag and restores the status the flag
// superseded, falling back to available when no restore target was captured.
// The restore assignments apply even to an unflagged crate, so resolving one
// normalizes it to available with an Excellent condition and still emits the
// resolve event.
func (s *Service) Resolve(ctx context.Context, crateID, ownerID string) (Crate, error) {
	start := s.clock()
	crate, err := s.resolve(ctx, crateID, ownerID)
	s.observe(ctx, "resolve", start, err)
	return crate, err
}

func (s *Service) resolve(ctx context.Context, crateID, ownerID string) (Crate, error) {
	var updated Crate
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateCrate(crateID, func(crate *Crate) error {
			if err := requireOwner(crate, ownerID); err != nil {
				return err
			}
			restored := StatusAvailable
			if crate.PreviousStatus != nil {
				restored = *crate.PreviousStatus
			}
			crate.Status = restored
			crate.Condition = domain.ConditionExcellent
			crate.PreviousStatus = nil
			crate.FlagDetails = nil
			return nil
		})
		return err
	})
	if err != nil {
		return Crate{}, err
	}
	s.dispatch(ctx, Event{
		Type:      eventTypeCrate,
		Message:   fmt.Sprintf("Flag resolved for crate %s, status restored to %s", updated.CrateID, updated.Status),
		Status:    EventSuccess,
		RelatedID: updated.CrateID,
		Time:      s.clock(),
	})
	return updated, nil
}

// AssignInput links a crate to an outbound order.
type AssignInput struct {
	CrateID  string
	OwnerID  string
	OrderID  string
	Location string
}

// AssignOrder links the crate to an order and forces it into transit,
// discarding any active flag.
func (s *Service) AssignOrder(ctx context.Context, input AssignInput) (Crate, error) {
	start := s.clock()
	crate, err := s.assignOrder(ctx, input)
	s.observe(ctx, "assign_order", start, err)
	return crate, err
}

func (s *Service) assignOrder(ctx context.Context, input AssignInput) (Crate, error) {
	if input.OrderID == "" {
		return Crate{}, domain.ValidationError{Field: "order_id", Reason: "must not be empty"}
	}
	var updated Crate
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateCrate(input.CrateID, func(crate *Crate) error {
			if err := requireOwner(crate, input.OwnerID); err != nil {
				return err
			}
			crate.LinkedOrder = input.OrderID
			if input.Location != "" {
				crate.Location = input.Location
			}
			forceStatus(crate, StatusInTransit)
			return nil
		})
		return err
	})
	if err != nil {
		return Crate{}, err
	}
	s.dispatch(ctx, Event{
		Type:      eventTypeCrate,
		Message:   fmt.Sprintf("Crate %s assigned to order %s", updated.CrateID, input.OrderID),
		Status:    EventSuccess,
		RelatedID: updated.CrateID,
		Time:      s.clock(),
	})
	return updated, nil
}

// Retire removes a crate from the registry and records the deletion at error
// severity so it stands out in the audit trail.
func (s *Service) Retire(ctx context.Context, crateID, ownerID string) error {
	start := s.clock()
	err := s.retire(ctx, crateID, ownerID)
	s.observe(ctx, "retire", start, err)
	return err
}

func (s *Service) retire(ctx context.Context, crateID, ownerID string) error {
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		crate, ok := tx.FindCrate(crateID)
		if !ok || crate.OwnerID != ownerID {
			return domain.NotFoundError{Entity: domain.EntityCrate, ID: crateID}
		}
		return tx.DeleteCrate(crateID)
	})
	if err != nil {
		return err
	}
	s.dispatch(ctx, Event{
		Type:      eventTypeCrate,
		Message:   fmt.Sprintf("Crate %s was deleted", crateID),
		Status:    EventError,
		RelatedID: crateID,
		Time:      s.clock(),
	})
	return nil
}

// SetThresholds replaces the crate's acceptable telemetry ranges. Inverted
// ranges are persisted as given; the rules engine reports them at warn
// severity without blocking.
func (s *Service) SetThresholds(ctx context.Context, crateID, ownerID string, thresholds Thresholds) (Crate, error) {
	start := s.clock()
	crate, err := s.setThresholds(ctx, crateID, ownerID, thresholds)
	s.observe(ctx, "set_thresholds", start, err)
	return crate, err
}

func (s *Service) setThresholds(ctx context.Context, crateID, ownerID string, thresholds Thresholds) (Crate, error) {
	var updated Crate
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateCrate(crateID, func(crate *Crate) error {
			if err := requireOwner(crate, ownerID); err != nil {
				return err
			}
			crate.Thresholds = thresholds
			return nil
		})
		return err
	})
	if err != nil {
		return Crate{}, err
	}
	return updated, nil
}

// GetThresholds returns the crate's configured telemetry ranges.
func (s *Service) GetThresholds(ctx context.Context, crateID, ownerID string) (Thresholds, error) {
	crate, err := s.GetCrate(ctx, crateID, ownerID)
	if err != nil {
		return Thresholds{}, err
	}
	return crate.Thresholds, nil
}

// GetCrate returns one crate scoped to its owner.
func (s *Service) GetCrate(_ context.Context, crateID, ownerID string) (Crate, error) {
	crate, ok := s.store.GetCrate(crateID)
	if !ok || crate.OwnerID != ownerID {
		return Crate{}, domain.NotFoundError{Entity: domain.EntityCrate, ID: crateID}
	}
	return crate, nil
}

// ListCrates returns every crate belonging to the owner, ordered by crate ID.
func (s *Service) ListCrates(_ context.Context, ownerID string) []Crate {
	var owned []Crate
	for _, crate := range s.store.ListCrates() {
		if crate.OwnerID == ownerID {
			owned = append(owned, crate)
		}
	}
	return owned
}

// TelemetryView is the read-side projection of a crate's physical state.
type TelemetryView struct {
	CrateID     string     `json:"crate_id"`
	DoorState   string     `json:"crate_status"`
	CoolingUnit string     `json:"cooling_unit"`
	Sensors     string     `json:"sensors"`
	Temperature string     `json:"temperature"`
	Humidity    string     `json:"humidity"`
	Thresholds  Thresholds `json:"thresholds"`
	LastUpdate  time.Time  `json:"last_update"`
}

// Telemetry returns the crate's current physical state and thresholds.
func (s *Service) Telemetry(ctx context.Context, crateID, ownerID string) (TelemetryView, error) {
	crate, err := s.GetCrate(ctx, crateID, ownerID)
	if err != nil {
		return TelemetryView{}, err
	}
	return TelemetryView{
		CrateID:     crate.CrateID,
		DoorState:   crate.DoorState,
		CoolingUnit: crate.CoolingUnit,
		Sensors:     crate.Sensors,
		Temperature: crate.Temperature,
		Humidity:    crate.Humidity,
		Thresholds:  crate.Thresholds,
		LastUpdate:  crate.LastUpdate,
	}, nil
}

// defaultActivityLimit caps the activity feed when the caller does not ask
// for a specific window.
const defaultActivityLimit = 20

// RecentActivities returns the newest audit records, newest first. A
// non-positive limit falls back to the default window.
func (s *Service) RecentActivities(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	return s.store.ListActivities(ctx, limit)
}

// ListNotifications returns the newest notifications, newest first.
func (s *Service) ListNotifications(ctx context.Context, limit int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, limit)
}

// MarkNotificationRead marks one notification as read.
func (s *Service) MarkNotificationRead(ctx context.Context, id string) (Notification, error) {
	return s.store.MarkNotificationRead(ctx, id)
}

// dispatch delivers an event to every sink. Sink failures go to the
// side-effect log and never surface to the caller.
func (s *Service) dispatch(ctx context.Context, event Event) {
	for _, sink := range s.sinks {
		if err := sink.Consume(ctx, event); err != nil && s.effects != nil {
			s.effects.RecordSinkFailure(sink.Name(), event, err)
		}
	}
}

func (s *Service) observe(ctx context.Context, operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Observe(ctx, operation, err == nil, s.clock().Sub(start))
}

func requireOwner(crate *Crate, ownerID string) error {
	if crate.OwnerID != ownerID {
		return domain.NotFoundError{Entity: domain.EntityCrate, ID: crate.CrateID}
	}
	return nil
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func applyFloat(dst **float64, src *float64) {
	if src != nil {
		value := *src
		*dst = &value
	}
}
