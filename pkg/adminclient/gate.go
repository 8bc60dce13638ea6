package adminclient

import "pharmacore/pkg/domain"

// The transition gates are pure functions over the shared domain tables.
// They are consulted before any mutation: a gate failure means no network
// call and no optimistic cache write.

// CanTransitionPrescription reports whether the review workflow allows the
// move. Terminal states (APPROVED, REJECTED) admit no further transitions.
func CanTransitionPrescription(from, to domain.PrescriptionStatus) bool {
	return from.CanTransitionTo(to)
}

// PrescriptionRequiredFields lists the payload fields mandatory for a
// transition into the target status.
func PrescriptionRequiredFields(to domain.PrescriptionStatus) []string {
	return to.RequiredFields()
}

// ValidatePrescriptionTransition checks the edge and required fields; a
// required field that is empty after trimming yields a ValidationError.
func ValidatePrescriptionTransition(from, to domain.PrescriptionStatus, payload domain.TransitionPayload) error {
	return domain.ValidatePrescriptionTransition(from, to, payload)
}

// CanTransitionOrder reports whether the fulfilment workflow allows the move:
// the linear progression plus CANCELLED from any non-terminal state.
func CanTransitionOrder(from, to domain.OrderStatus) bool {
	return from.CanTransitionTo(to)
}

// OrderRequiredFields lists the payload fields mandatory for a transition
// into the target status.
func OrderRequiredFields(to domain.OrderStatus) []string {
	return to.RequiredFields()
}

// ValidateOrderTransition checks the edge and required fields for the order
// workflow.
func ValidateOrderTransition(from, to domain.OrderStatus, payload domain.TransitionPayload) error {
	return domain.ValidateOrderTransition(from, to, payload)
}
