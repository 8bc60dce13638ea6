package domain

import (
	"context"
	"fmt"
)

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() RuleView
	CreateProduct(Product) (Product, error)
	UpdateProduct(id string, mutator func(*Product) error) (Product, error)
	DeleteProduct(id string) error
	CreateOrder(Order) (Order, error)
	UpdateOrder(id string, mutator func(*Order) error) (Order, error)
	DeleteOrder(id string) error
	CreateCustomer(Customer) (Customer, error)
	UpdateCustomer(id string, mutator func(*Customer) error) (Customer, error)
	DeleteCustomer(id string) error
	CreatePrescription(Prescription) (Prescription, error)
	UpdatePrescription(id string, mutator func(*Prescription) error) (Prescription, error)
	DeletePrescription(id string) error
	CreateStockMovement(StockMovement) (StockMovement, error)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(RuleView) error) error
	GetProduct(id string) (Product, bool)
	ListProducts() []Product
	GetOrder(id string) (Order, bool)
	ListOrders() []Order
	GetCustomer(id string) (Customer, bool)
	ListCustomers() []Customer
	GetPrescription(id string) (Prescription, bool)
	ListPrescriptions() []Prescription
	ListStockMovements() []StockMovement
}
