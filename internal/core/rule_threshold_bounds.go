package core

import (
	"context"
	"fmt"

	"cratecore/pkg/domain"
)

// ThresholdBoundsRule reports inverted threshold ranges (min above max) at
// warn severity. Inverted bounds are persisted as configured; the violation
// only makes the misconfiguration visible.
func ThresholdBoundsRule() Rule {
	return thresholdBoundsRule{}
}

type thresholdBoundsRule struct{}

func (thresholdBoundsRule) Name() string { return "threshold_bounds" }

func (thresholdBoundsRule) Evaluate(_ context.Context, _ TransactionView, changes []Change) (Result, error) {
	var result Result
	for _, change := range changes {
		if change.Entity != domain.EntityCrate || change.Action == domain.ActionDelete {
			continue
		}
		crate, ok := domain.DecodeChangePayload[Crate](change.After)
		if !ok {
			continue
		}
		for _, check := range []struct {
			metric string
			bounds Bounds
		}{
			{"temperature", crate.Thresholds.Temperature},
			{"humidity", crate.Thresholds.Humidity},
		} {
			metric, bounds := check.metric, check.bounds
			if bounds.Min <= bounds.Max {
				continue
			}
			result.Violations = append(result.Violations, Violation{
				Rule:     "threshold_bounds",
				Severity: SeverityWarn,
				Message:  fmt.Sprintf("crate %s %s threshold min %.2f exceeds max %.2f", crate.CrateID, metric, bounds.Min, bounds.Max),
				Entity:   domain.EntityCrate,
				EntityID: crate.CrateID,
			})
		}
	}
	return result, nil
}
