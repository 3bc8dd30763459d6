// Package domain defines the persistent entities, value types, and rule
// evaluation primitives shared by the cratecore lifecycle engine and its
// storage backends.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityCrate identifies a tracked shipping crate record.
	EntityCrate EntityType = "crate"
	// EntityActivity identifies an append-only audit trail record.
	EntityActivity EntityType = "activity"
	// EntityNotification identifies a user-facing notification record.
	EntityNotification EntityType = "notification"
)

// CrateStatus represents the canonical crate lifecycle states.
type CrateStatus string

// Canonical crate lifecycle statuses. A crate starts available and cycles
// between states until it is retired; there is no terminal status.
const (
	// StatusAvailable indicates a crate idle at its warehouse.
	StatusAvailable CrateStatus = "available"
	// StatusInTransit indicates a crate moving toward a delivery location.
	StatusInTransit CrateStatus = "in_transit"
	// StatusDelivered indicates a crate that reached its destination.
	StatusDelivered CrateStatus = "delivered"
	// StatusFlagged indicates a crate suspended with a fault flag.
	StatusFlagged CrateStatus = "flagged"
	// StatusMaintenance indicates a crate pulled for servicing. No lifecycle
	// operation produces this state; it is only ever assigned directly.
	StatusMaintenance CrateStatus = "maintenance"
)

// CrateStatuses lists every valid lifecycle status.
func CrateStatuses() []CrateStatus {
	return []CrateStatus{StatusAvailable, StatusInTransit, StatusDelivered, StatusFlagged, StatusMaintenance}
}

// ValidStatus reports whether s is inside the lifecycle status domain.
func ValidStatus(s CrateStatus) bool {
	switch s {
	case StatusAvailable, StatusInTransit, StatusDelivered, StatusFlagged, StatusMaintenance:
		return true
	}
	return false
}

// CrateCondition grades the physical condition of a crate.
type CrateCondition string

// Crate condition grades. ConditionFlagged mirrors the lowercase spelling
// used by the fault pipeline, distinct from the graded values.
const (
	ConditionExcellent CrateCondition = "Excellent"
	ConditionGood      CrateCondition = "Good"
	ConditionFair      CrateCondition = "Fair"
	ConditionPoor      CrateCondition = "Poor"
	ConditionFlagged   CrateCondition = "flagged"
)

// EventStatus is the severity attached to audit and notification records.
type EventStatus string

// Event severities. Deletions are recorded at EventError as a
// high-visibility audit convention, not because deletion failed.
const (
	EventSuccess EventStatus = "success"
	EventInfo    EventStatus = "info"
	EventWarning EventStatus = "warning"
	EventError   EventStatus = "error"
)

// Reported physical-state values. The door, cooling, and sensor fields are
// free text on the wire; these constants cover the values the auto-transit
// policy matches on.
const (
	DoorOpen        = "Open"
	DoorClosed      = "Closed"
	CoolingActive   = "Active"
	CoolingInactive = "Inactive"
	SensorsLive     = "Live"
	SensorsOffline  = "Offline"
)

// Bounds is a configured acceptable range for one telemetry metric.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Thresholds holds the per-crate acceptable ranges for temperature and
// humidity. No cross-field validation is applied on write; an inverted
// range is persisted as-is and surfaced as a warn-severity violation.
type Thresholds struct {
	Temperature Bounds `json:"temperature"`
	Humidity    Bounds `json:"humidity"`
}

// DefaultThresholds returns the cold-chain defaults applied at registration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Temperature: Bounds{Min: 2, Max: 8},
		Humidity:    Bounds{Min: 40, Max: 80},
	}
}

// FlagDetails records why a crate was flagged. Present iff the crate status
// is flagged.
type FlagDetails struct {
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// Crate is the tracked physical unit and the aggregate root of the core.
// Crates are keyed by CrateID, unique and immutable after registration, and
// owned by exactly one identity.
type Crate struct {
	CrateID string `json:"crate_id"`
	OwnerID string `json:"owner_id"`

	Status CrateStatus `json:"status"`
	// PreviousStatus holds the status superseded by the most recent flag;
	// nil whenever the crate is not flagged.
	PreviousStatus *CrateStatus   `json:"previous_status"`
	Condition      CrateCondition `json:"condition"`
	FlagDetails    *FlagDetails   `json:"flag_details,omitempty"`

	// DoorState is the reported physical door state (Open/Closed).
	DoorState   string `json:"crate_status"`
	CoolingUnit string `json:"cooling_unit"`
	Sensors     string `json:"sensors"`

	Temperature   string   `json:"temperature"`
	Humidity      string   `json:"humidity"`
	TempUpper     *float64 `json:"temp_upper"`
	TempLower     *float64 `json:"temp_lower"`
	HumidityUpper *float64 `json:"humidity_upper"`
	HumidityLower *float64 `json:"humidity_lower"`

	Thresholds Thresholds `json:"thresholds"`

	Location          string `json:"location"`
	LocationDetails   string `json:"location_details"`
	AssignedWarehouse string `json:"assigned_warehouse"`
	LinkedOrder       string `json:"linked_order"`

	CreatedAt  time.Time `json:"created_at"`
	LastUpdate time.Time `json:"last_update"`
}

// Flagged reports whether the crate currently carries a fault flag.
func (c Crate) Flagged() bool {
	return c.Status == StatusFlagged
}

// Activity is one immutable audit trail record. Activities are never
// updated or deleted by the core; creation is fire-and-forget.
type Activity struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Message   string      `json:"message"`
	Status    EventStatus `json:"status"`
	Time      time.Time   `json:"time"`
	RelatedID string      `json:"related_id"`
}

// Notification is a user-facing alert derived from a lifecycle event. The
// only mutation after creation is marking it read.
type Notification struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Message   string      `json:"message"`
	Status    EventStatus `json:"status"`
	Read      bool        `json:"read"`
	Time      time.Time   `json:"time"`
	RelatedID string      `json:"related_id"`
}

// Change describes one entity mutation captured within a transaction for
// rule evaluation and audit purposes.
type Change struct {
	Entity   EntityType
	Action   Action
	EntityID string
	Before   ChangePayload
	After    ChangePayload
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the supported mutations captured per transaction.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn allows commit but reports the violation.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
