// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by pharmacore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityProduct identifies a catalog product record.
	EntityProduct EntityType = "product"
	// EntityOrder identifies a customer order record.
	EntityOrder EntityType = "order"
	// EntityCustomer identifies a customer record.
	EntityCustomer EntityType = "customer"
	// EntityPrescription identifies a prescription record.
	EntityPrescription EntityType = "prescription"
	// EntityStockMovement identifies a stock movement record.
	EntityStockMovement EntityType = "stock_movement"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product represents a sellable catalog item with tracked stock.
type Product struct {
	Base
	SKU                  string      `json:"sku"`
	Name                 string      `json:"name"`
	Description          *string     `json:"description,omitempty"`
	Category             string      `json:"category"`
	Manufacturer         *string     `json:"manufacturer,omitempty"`
	PriceCents           int64       `json:"price_cents"`
	RequiresPrescription bool        `json:"requires_prescription"`
	StockQuantity        int         `json:"stock_quantity"`
	LowStockThreshold    int         `json:"low_stock_threshold"`
	StockStatus          StockStatus `json:"stock_status"`
	ExpiresAt            *time.Time  `json:"expires_at,omitempty"`
}

// OrderItem is a single line of an order.
type OrderItem struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// Order represents a customer order progressing through fulfilment.
type Order struct {
	Base
	Number         string      `json:"number"`
	CustomerID     string      `json:"customer_id"`
	Status         OrderStatus `json:"status"`
	Items          []OrderItem `json:"items"`
	TotalCents     int64       `json:"total_cents"`
	PrescriptionID *string     `json:"prescription_id,omitempty"`
	CancelReason   *string     `json:"cancel_reason,omitempty"`
	Notes          *string     `json:"notes,omitempty"`
	PlacedAt       time.Time   `json:"placed_at"`
}

// Customer represents a registered pharmacy customer.
type Customer struct {
	Base
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   *string `json:"phone,omitempty"`
	City    *string `json:"city,omitempty"`
	Blocked bool    `json:"blocked"`
}

// Prescription represents an uploaded prescription under review.
type Prescription struct {
	Base
	CustomerID           string             `json:"customer_id"`
	OrderID              *string            `json:"order_id,omitempty"`
	Status               PrescriptionStatus `json:"status"`
	RejectionReason      *string            `json:"rejection_reason,omitempty"`
	ClarificationRequest *string            `json:"clarification_request,omitempty"`
	Notes                *string            `json:"notes,omitempty"`
	ReviewedBy           *string            `json:"reviewed_by,omitempty"`
	ReviewedAt           *time.Time         `json:"reviewed_at,omitempty"`
	FileKey              *string            `json:"file_key,omitempty"`
	FileName             *string            `json:"file_name,omitempty"`
	FileSize             *int64             `json:"file_size,omitempty"`
	FileContentType      *string            `json:"file_content_type,omitempty"`
}

// MovementType classifies a stock movement.
type MovementType string

// Canonical stock movement types recorded against products.
const (
	MovementReceived MovementType = "RECEIVED"
	MovementSold     MovementType = "SOLD"
	MovementAdjusted MovementType = "ADJUSTED"
	MovementReturned MovementType = "RETURNED"
	MovementExpired  MovementType = "EXPIRED"
)

// StockMovement is an audit record of a change to a product's stock quantity.
type StockMovement struct {
	Base
	ProductID string       `json:"product_id"`
	Type      MovementType `json:"type"`
	Quantity  int          `json:"quantity"`
	Before    int          `json:"before"`
	After     int          `json:"after"`
	Reference *string      `json:"reference,omitempty"`
	Actor     string       `json:"actor"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
