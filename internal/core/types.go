package core

import "cratecore/pkg/domain"

type (
	Crate              = domain.Crate
	Activity           = domain.Activity
	Notification       = domain.Notification
	Thresholds         = domain.Thresholds
	Bounds             = domain.Bounds
	FlagDetails        = domain.FlagDetails
	CrateStatus        = domain.CrateStatus
	CrateCondition     = domain.CrateCondition
	EventStatus        = domain.EventStatus
	EntityType         = domain.EntityType
	Change             = domain.Change
	Action             = domain.Action
	Severity           = domain.Severity
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	StatusAvailable   = domain.StatusAvailable
	StatusInTransit   = domain.StatusInTransit
	StatusDelivered   = domain.StatusDelivered
	StatusFlagged     = domain.StatusFlagged
	StatusMaintenance = domain.StatusMaintenance
)

const (
	EventSuccess = domain.EventSuccess
	EventInfo    = domain.EventInfo
	EventWarning = domain.EventWarning
	EventError   = domain.EventError
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

// NewRulesEngine re-exports the domain constructor for callers wiring
// custom rule sets.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}
