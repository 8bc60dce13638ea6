package core

import (
	"context"
	"fmt"

	"pharmacore/pkg/domain"
)

// OrderTransitionRule blocks fulfilment-state changes outside the linear
// progression from RECEIVED through DELIVERED, except cancellation from a
// non-terminal state.
func OrderTransitionRule() Rule {
	return orderTransitionRule{}
}

type orderTransitionRule struct{}

func (orderTransitionRule) Name() string { return "order_transition" }

func (orderTransitionRule) Evaluate(_ context.Context, _ RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, change := range changes {
		if change.Entity != EntityOrder {
			continue
		}
		after, ok := decodeChange[Order](change.After)
		if !ok {
			continue
		}
		if !after.Status.Known() {
			res.Violations = append(res.Violations, Violation{
				Rule:     "order_transition",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("order %s is set to invalid status %s", after.ID, after.Status),
				Entity:   EntityOrder,
				EntityID: after.ID,
			})
			continue
		}
		before, ok := decodeChange[Order](change.Before)
		if !ok || before.Status == after.Status {
			continue
		}
		payload := domain.TransitionPayload{
			CancelReason: deref(after.CancelReason),
			Notes:        deref(after.Notes),
		}
		if err := domain.ValidateOrderTransition(before.Status, after.Status, payload); err != nil {
			res.Violations = append(res.Violations, Violation{
				Rule:     "order_transition",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("order %s: %v", after.ID, err),
				Entity:   EntityOrder,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}
