package core

import "pharmacore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Product            = domain.Product
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	Customer           = domain.Customer
	Prescription       = domain.Prescription
	StockMovement      = domain.StockMovement
	MovementType       = domain.MovementType
	PrescriptionStatus = domain.PrescriptionStatus
	OrderStatus        = domain.OrderStatus
	StockStatus        = domain.StockStatus
	TransitionPayload  = domain.TransitionPayload
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Severity           = domain.Severity
	Result             = domain.Result
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	Transaction        = domain.Transaction
	PersistentStore    = domain.PersistentStore
)

const (
	EntityProduct       = domain.EntityProduct
	EntityOrder         = domain.EntityOrder
	EntityCustomer      = domain.EntityCustomer
	EntityPrescription  = domain.EntityPrescription
	EntityStockMovement = domain.EntityStockMovement
)

const (
	PrescriptionPending       = domain.PrescriptionPending
	PrescriptionApproved      = domain.PrescriptionApproved
	PrescriptionRejected      = domain.PrescriptionRejected
	PrescriptionClarification = domain.PrescriptionClarification
)

const (
	OrderReceived   = domain.OrderReceived
	OrderProcessing = domain.OrderProcessing
	OrderReady      = domain.OrderReady
	OrderDispatched = domain.OrderDispatched
	OrderDelivered  = domain.OrderDelivered
	OrderCancelled  = domain.OrderCancelled
)

const (
	StockInStock    = domain.StockInStock
	StockLowStock   = domain.StockLowStock
	StockOutOfStock = domain.StockOutOfStock
)

const (
	MovementReceived = domain.MovementReceived
	MovementSold     = domain.MovementSold
	MovementAdjusted = domain.MovementAdjusted
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
