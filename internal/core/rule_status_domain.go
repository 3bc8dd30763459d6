package core

import (
	"context"
	"fmt"

	"cratecore/pkg/domain"
)

// StatusDomainRule blocks commits that would leave a crate outside the
// five-value lifecycle status domain.
func StatusDomainRule() Rule {
	return statusDomainRule{}
}

type statusDomainRule struct{}

func (statusDomainRule) Name() string { return "status_domain" }

func (statusDomainRule) Evaluate(_ context.Context, _ TransactionView, changes []Change) (Result, error) {
	var result Result
	for _, change := range changes {
		if change.Entity != domain.EntityCrate || change.Action == domain.ActionDelete {
			continue
		}
		crate, ok := domain.DecodeChangePayload[Crate](change.After)
		if !ok {
			continue
		}
		if !domain.ValidStatus(crate.Status) {
			result.Violations = append(result.Violations, Violation{
				Rule:     "status_domain",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("crate status %q is not a valid lifecycle status", crate.Status),
				Entity:   domain.EntityCrate,
				EntityID: crate.CrateID,
			})
		}
	}
	return result, nil
}
