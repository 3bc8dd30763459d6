package core

import (
	"context"
	"fmt"

	"cratecore/pkg/domain"
)

// FlagConsistencyRule blocks commits that would break the flag invariant:
// a crate is flagged exactly when flag details are present.
func FlagConsistencyRule() Rule {
	return flagConsistencyRule{}
}

type flagConsistencyRule struct{}

func (flagConsistencyRule) Name() string { return "flag_consistency" }

func (flagConsistencyRule) Evaluate(_ context.Context, _ TransactionView, changes []Change) (Result, error) {
	var result Result
	for _, change := range changes {
		if change.Entity != domain.EntityCrate || change.Action == domain.ActionDelete {
			continue
		}
		crate, ok := domain.DecodeChangePayload[Crate](change.After)
		if !ok {
			continue
		}
		flagged := crate.Status == StatusFlagged
		hasDetails := crate.FlagDetails != nil
		if flagged == hasDetails {
			continue
		}
		msg := fmt.Sprintf("crate %s is flagged without flag details", crate.CrateID)
		if !flagged {
			msg = fmt.Sprintf("crate %s carries flag details but is not flagged", crate.CrateID)
		}
		result.Violations = append(result.Violations, Violation{
			Rule:     "flag_consistency",
			Severity: SeverityBlock,
			Message:  msg,
			Entity:   domain.EntityCrate,
			EntityID: crate.CrateID,
		})
	}
	return result, nil
}
