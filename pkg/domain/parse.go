package domain

import (
	"fmt"
	"strings"
)

// The wire aliases below form the single bidirectional mapping between the
// loose status strings used by older API consumers and the closed enums.
// All boundary code parses through these tables; nothing maps inline.

var prescriptionAliases = map[string]PrescriptionStatus{
	"PENDING":                PrescriptionPending,
	"PENDING_VERIFICATION":   PrescriptionPending,
	"APPROVED":               PrescriptionApproved,
	"REJECTED":               PrescriptionRejected,
	"CLARIFICATION":          PrescriptionClarification,
	"NEEDS_CLARIFICATION":    PrescriptionClarification,
	"AWAITING_CLARIFICATION": PrescriptionClarification,
}

var orderAliases = map[string]OrderStatus{
	"RECEIVED":   OrderReceived,
	"NEW":        OrderReceived,
	"PROCESSING": OrderProcessing,
	"READY":      OrderReady,
	"DISPATCHED": OrderDispatched,
	"SHIPPED":    OrderDispatched,
	"DELIVERED":  OrderDelivered,
	"CANCELLED":  OrderCancelled,
	"CANCELED":   OrderCancelled,
}

// ParsePrescriptionStatus resolves a wire status string, accepting legacy
// aliases, into the canonical enum.
func ParsePrescriptionStatus(raw string) (PrescriptionStatus, error) {
	status, ok := prescriptionAliases[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("unknown prescription status %q", raw)
	}
	return status, nil
}

// ParseOrderStatus resolves a wire status string, accepting legacy aliases,
// into the canonical enum.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status, ok := orderAliases[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("unknown order status %q", raw)
	}
	return status, nil
}

// ParseMovementType resolves a wire movement type string.
func ParseMovementType(raw string) (MovementType, error) {
	switch MovementType(strings.ToUpper(strings.TrimSpace(raw))) {
	case MovementReceived:
		return MovementReceived, nil
	case MovementSold:
		return MovementSold, nil
	case MovementAdjusted:
		return MovementAdjusted, nil
	case MovementReturned:
		return MovementReturned, nil
	case MovementExpired:
		return MovementExpired, nil
	default:
		return "", fmt.Errorf("unknown movement type %q", raw)
	}
}
