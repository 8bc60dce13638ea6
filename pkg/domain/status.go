package domain

import (
	"fmt"
	"strings"
)

// PrescriptionStatus enumerates the prescription review workflow states.
type PrescriptionStatus string

// Canonical prescription review statuses.
const (
	PrescriptionPending       PrescriptionStatus = "PENDING_VERIFICATION"
	PrescriptionApproved      PrescriptionStatus = "APPROVED"
	PrescriptionRejected      PrescriptionStatus = "REJECTED"
	PrescriptionClarification PrescriptionStatus = "NEEDS_CLARIFICATION"
)

// OrderStatus enumerates order fulfilment states.
type OrderStatus string

// Canonical order fulfilment statuses.
const (
	OrderReceived   OrderStatus = "RECEIVED"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderReady      OrderStatus = "READY"
	OrderDispatched OrderStatus = "DISPATCHED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// StockStatus is the derived availability classification of a product.
type StockStatus string

// Stock availability classifications derived from quantity and threshold.
const (
	StockInStock    StockStatus = "IN_STOCK"
	StockLowStock   StockStatus = "LOW_STOCK"
	StockOutOfStock StockStatus = "OUT_OF_STOCK"
)

// DefaultLowStockThreshold applies when a product has no explicit threshold.
const DefaultLowStockThreshold = 10

// DeriveStockStatus classifies availability from quantity and threshold.
// A non-positive threshold falls back to DefaultLowStockThreshold.
func DeriveStockStatus(quantity, threshold int) StockStatus {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	switch {
	case quantity <= 0:
		return StockOutOfStock
	case quantity <= threshold:
		return StockLowStock
	default:
		return StockInStock
	}
}

// prescriptionTransitions maps each review state to its reachable successors.
var prescriptionTransitions = map[PrescriptionStatus][]PrescriptionStatus{
	PrescriptionPending:       {PrescriptionApproved, PrescriptionRejected, PrescriptionClarification},
	PrescriptionClarification: {PrescriptionApproved, PrescriptionRejected},
	PrescriptionApproved:      {},
	PrescriptionRejected:      {},
}

// Known reports whether s is a recognised prescription status.
func (s PrescriptionStatus) Known() bool {
	_, ok := prescriptionTransitions[s]
	return ok
}

// Terminal reports whether no further transition is allowed from s.
func (s PrescriptionStatus) Terminal() bool {
	next, ok := prescriptionTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether the review workflow permits moving to the
// target status from s.
func (s PrescriptionStatus) CanTransitionTo(to PrescriptionStatus) bool {
	for _, candidate := range prescriptionTransitions[s] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Transition payload field names required by specific target statuses.
const (
	FieldRejectionReason      = "rejection_reason"
	FieldClarificationRequest = "clarification_request"
	FieldCancelReason         = "cancel_reason"
)

// RequiredFields returns the payload fields that must accompany a transition
// into the target prescription status.
func (s PrescriptionStatus) RequiredFields() []string {
	switch s {
	case PrescriptionRejected:
		return []string{FieldRejectionReason}
	case PrescriptionClarification:
		return []string{FieldClarificationRequest}
	default:
		return nil
	}
}

// TransitionPayload carries the side-effect fields of a status transition.
type TransitionPayload struct {
	RejectionReason      string
	ClarificationRequest string
	CancelReason         string
	Notes                string
}

// Field returns the payload value for a required-field name.
func (p TransitionPayload) Field(name string) string {
	switch name {
	case FieldRejectionReason:
		return p.RejectionReason
	case FieldClarificationRequest:
		return p.ClarificationRequest
	case FieldCancelReason:
		return p.CancelReason
	default:
		return ""
	}
}

// ValidationError reports a missing or empty required transition field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidatePrescriptionTransition checks the from→to edge and its required
// payload fields. Required fields are rejected when empty after trimming.
func ValidatePrescriptionTransition(from, to PrescriptionStatus, payload TransitionPayload) error {
	if !to.Known() {
		return ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", string(to))}
	}
	if !from.CanTransitionTo(to) {
		return ValidationError{Field: "status", Message: fmt.Sprintf("cannot transition from %s to %s", from, to)}
	}
	for _, field := range to.RequiredFields() {
		if strings.TrimSpace(payload.Field(field)) == "" {
			return ValidationError{Field: field, Message: "required for transition to " + string(to)}
		}
	}
	return nil
}

// orderSequence is the linear fulfilment progression; CANCELLED is reachable
// from every non-terminal state.
var orderSequence = []OrderStatus{OrderReceived, OrderProcessing, OrderReady, OrderDispatched, OrderDelivered}

// Known reports whether s is a recognised order status.
func (s OrderStatus) Known() bool {
	if s == OrderCancelled {
		return true
	}
	for _, candidate := range orderSequence {
		if candidate == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// Next returns the successor in the linear fulfilment progression, or false
// when s is terminal or cancelled.
func (s OrderStatus) Next() (OrderStatus, bool) {
	for i, candidate := range orderSequence {
		if candidate == s && i+1 < len(orderSequence) {
			return orderSequence[i+1], true
		}
	}
	return "", false
}

// CanTransitionTo reports whether the fulfilment workflow permits moving to
// the target status from s.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	if to == OrderCancelled {
		return s.Known()
	}
	next, ok := s.Next()
	return ok && next == to
}

// RequiredFields returns the payload fields that must accompany a transition
// into the target order status.
func (s OrderStatus) RequiredFields() []string {
	if s == OrderCancelled {
		return []string{FieldCancelReason}
	}
	return nil
}

// ValidateOrderTransition checks the from→to edge and its required payload
// fields for the order workflow.
func ValidateOrderTransition(from, to OrderStatus, payload TransitionPayload) error {
	if !to.Known() {
		return ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", string(to))}
	}
	if !from.CanTransitionTo(to) {
		return ValidationError{Field: "status", Message: fmt.Sprintf("cannot transition from %s to %s", from, to)}
	}
	for _, field := range to.RequiredFields() {
		if strings.TrimSpace(payload.Field(field)) == "" {
			return ValidationError{Field: field, Message: "required for transition to " + string(to)}
		}
	}
	return nil
}
