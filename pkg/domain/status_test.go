package domain

import "testing"

func TestDeriveStockStatus(t *testing.T) {
	cases := []struct {
		name      string
		quantity  int
		threshold int
		want      StockStatus
	}{
		{"zero quantity", 0, 10, StockOutOfStock},
		{"negative quantity", -1, 10, StockOutOfStock},
		{"at threshold", 10, 10, StockLowStock},
		{"just above threshold", 11, 10, StockInStock},
		{"below threshold", 3, 10, StockLowStock},
		{"default threshold applies at boundary", 10, 0, StockLowStock},
		{"default threshold applies above boundary", 11, 0, StockInStock},
		{"custom threshold", 5, 5, StockLowStock},
		{"custom threshold above", 6, 5, StockInStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveStockStatus(tc.quantity, tc.threshold); got != tc.want {
				t.Fatalf("DeriveStockStatus(%d, %d) = %s, want %s", tc.quantity, tc.threshold, got, tc.want)
			}
		})
	}
}

func TestPrescriptionTransitions(t *testing.T) {
	cases := []struct {
		from PrescriptionStatus
		to   PrescriptionStatus
		want bool
	}{
		{PrescriptionPending, PrescriptionApproved, true},
		{PrescriptionPending, PrescriptionRejected, true},
		{PrescriptionPending, PrescriptionClarification, true},
		{PrescriptionClarification, PrescriptionApproved, true},
		{PrescriptionClarification, PrescriptionRejected, true},
		{PrescriptionClarification, PrescriptionClarification, false},
		{PrescriptionApproved, PrescriptionRejected, false},
		{PrescriptionRejected, PrescriptionApproved, false},
		{PrescriptionApproved, PrescriptionPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestPrescriptionTerminalStates(t *testing.T) {
	if !PrescriptionApproved.Terminal() {
		t.Fatal("APPROVED should be terminal")
	}
	if !PrescriptionRejected.Terminal() {
		t.Fatal("REJECTED should be terminal")
	}
	if PrescriptionPending.Terminal() {
		t.Fatal("PENDING_VERIFICATION should not be terminal")
	}
	if PrescriptionClarification.Terminal() {
		t.Fatal("NEEDS_CLARIFICATION should not be terminal")
	}
}

func TestValidatePrescriptionTransitionRequiredFields(t *testing.T) {
	if err := ValidatePrescriptionTransition(PrescriptionPending, PrescriptionRejected, TransitionPayload{}); err == nil {
		t.Fatal("expected rejection without reason to fail")
	}
	if err := ValidatePrescriptionTransition(PrescriptionPending, PrescriptionRejected, TransitionPayload{RejectionReason: "   "}); err == nil {
		t.Fatal("expected whitespace-only reason to fail")
	}
	if err := ValidatePrescriptionTransition(PrescriptionPending, PrescriptionRejected, TransitionPayload{RejectionReason: "illegible"}); err != nil {
		t.Fatalf("expected rejection with reason to pass: %v", err)
	}
	if err := ValidatePrescriptionTransition(PrescriptionPending, PrescriptionClarification, TransitionPayload{}); err == nil {
		t.Fatal("expected clarification without request to fail")
	}

	err := ValidatePrescriptionTransition(PrescriptionPending, PrescriptionClarification, TransitionPayload{})
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.Field != FieldClarificationRequest {
		t.Fatalf("expected field %s, got %s", FieldClarificationRequest, verr.Field)
	}
}

func TestOrderTransitions(t *testing.T) {
	linear := []OrderStatus{OrderReceived, OrderProcessing, OrderReady, OrderDispatched, OrderDelivered}
	for i := 0; i < len(linear)-1; i++ {
		if !linear[i].CanTransitionTo(linear[i+1]) {
			t.Errorf("expected %s -> %s to be allowed", linear[i], linear[i+1])
		}
	}
	if OrderReceived.CanTransitionTo(OrderReady) {
		t.Error("skipping PROCESSING should be denied")
	}
	if OrderProcessing.CanTransitionTo(OrderReceived) {
		t.Error("moving backwards should be denied")
	}
	for _, from := range []OrderStatus{OrderReceived, OrderProcessing, OrderReady, OrderDispatched} {
		if !from.CanTransitionTo(OrderCancelled) {
			t.Errorf("expected %s -> CANCELLED to be allowed", from)
		}
	}
	if OrderDelivered.CanTransitionTo(OrderCancelled) {
		t.Error("DELIVERED is terminal, cancel should be denied")
	}
	if OrderCancelled.CanTransitionTo(OrderReceived) {
		t.Error("CANCELLED is terminal")
	}
}

func TestValidateOrderTransitionCancelReason(t *testing.T) {
	if err := ValidateOrderTransition(OrderProcessing, OrderCancelled, TransitionPayload{}); err == nil {
		t.Fatal("expected cancel without reason to fail")
	}
	if err := ValidateOrderTransition(OrderProcessing, OrderCancelled, TransitionPayload{CancelReason: "customer request"}); err != nil {
		t.Fatalf("expected cancel with reason to pass: %v", err)
	}
	if err := ValidateOrderTransition(OrderReceived, OrderProcessing, TransitionPayload{}); err != nil {
		t.Fatalf("expected plain advance to pass: %v", err)
	}
}

func TestParseStatusAliases(t *testing.T) {
	for raw, want := range map[string]PrescriptionStatus{
		"PENDING":                PrescriptionPending,
		"pending_verification":   PrescriptionPending,
		"CLARIFICATION":          PrescriptionClarification,
		"AWAITING_CLARIFICATION": PrescriptionClarification,
		"approved":               PrescriptionApproved,
	} {
		got, err := ParsePrescriptionStatus(raw)
		if err != nil {
			t.Fatalf("ParsePrescriptionStatus(%q): %v", raw, err)
		}
		if got != want {
			t.Errorf("ParsePrescriptionStatus(%q) = %s, want %s", raw, got, want)
		}
	}
	if _, err := ParsePrescriptionStatus("SHIPPED"); err == nil {
		t.Fatal("expected unknown prescription status to fail")
	}

	for raw, want := range map[string]OrderStatus{
		"NEW":      OrderReceived,
		"shipped":  OrderDispatched,
		"CANCELED": OrderCancelled,
		"ready":    OrderReady,
	} {
		got, err := ParseOrderStatus(raw)
		if err != nil {
			t.Fatalf("ParseOrderStatus(%q): %v", raw, err)
		}
		if got != want {
			t.Errorf("ParseOrderStatus(%q) = %s, want %s", raw, got, want)
		}
	}
	if _, err := ParseOrderStatus("APPROVED"); err == nil {
		t.Fatal("expected unknown order status to fail")
	}
}
