package core

import (
	"context"
	"fmt"

	"pharmacore/pkg/domain"
)

// PrescriptionTransitionRule blocks review-state changes that are not in the
// prescription workflow table or that lack their required payload fields.
func PrescriptionTransitionRule() Rule {
	return prescriptionTransitionRule{}
}

type prescriptionTransitionRule struct{}

func (prescriptionTransitionRule) Name() string { return "prescription_transition" }

func (prescriptionTransitionRule) Evaluate(_ context.Context, _ RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, change := range changes {
		if change.Entity != EntityPrescription {
			continue
		}
		after, ok := decodeChange[Prescription](change.After)
		if !ok {
			continue
		}
		if !after.Status.Known() {
			res.Violations = append(res.Violations, Violation{
				Rule:     "prescription_transition",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("prescription %s is set to invalid status %s", after.ID, after.Status),
				Entity:   EntityPrescription,
				EntityID: after.ID,
			})
			continue
		}
		before, ok := decodeChange[Prescription](change.Before)
		if !ok || before.Status == after.Status {
			continue
		}
		payload := domain.TransitionPayload{
			RejectionReason:      deref(after.RejectionReason),
			ClarificationRequest: deref(after.ClarificationRequest),
			Notes:                deref(after.Notes),
		}
		if err := domain.ValidatePrescriptionTransition(before.Status, after.Status, payload); err != nil {
			res.Violations = append(res.Violations, Violation{
				Rule:     "prescription_transition",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("prescription %s: %v", after.ID, err),
				Entity:   EntityPrescription,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
