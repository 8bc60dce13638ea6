package core

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"pharmacore/pkg/domain"
)

// Service exposes the transactional operations the admin surface is built on.
// Every mutation runs through the persistent store's transaction scope, so the
// rules engine gates each commit.
type Service struct {
	store   domain.PersistentStore
	logger  *slog.Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	nowFn   func() time.Time
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		logger:  slog.Default(),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		audit:   noopAudit{},
		nowFn:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithLogger attaches a structured logger to the service.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store returns the underlying persistent store.
func (s *Service) Store() domain.PersistentStore { return s.store }

func (s *Service) now() time.Time { return s.nowFn().UTC() }

// CreateProduct persists a new product.
func (s *Service) CreateProduct(ctx context.Context, product Product) (Product, Result, error) {
	var created Product
	var res Result
	err := s.instrument(ctx, "create_product", EntityProduct, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreateProduct(product)
			return txErr
		})
		return created.ID, err
	})
	return created, res, err
}

// UpdateProduct applies the mutator to an existing product.
func (s *Service) UpdateProduct(ctx context.Context, id string, mutator func(*Product) error) (Product, Result, error) {
	var updated Product
	var res Result
	err := s.instrument(ctx, "update_product", EntityProduct, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateProduct(id, mutator)
			return txErr
		})
		return id, err
	})
	return updated, res, err
}

// DeleteProduct removes a product.
func (s *Service) DeleteProduct(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.instrument(ctx, "delete_product", EntityProduct, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteProduct(id)
		})
		return id, err
	})
	return res, err
}

// GetProduct fetches a product by id.
func (s *Service) GetProduct(_ context.Context, id string) (Product, bool) {
	return s.store.GetProduct(id)
}

// ListProducts returns all products sorted by creation time.
func (s *Service) ListProducts(_ context.Context) []Product {
	return s.store.ListProducts()
}

// AdjustStock applies a signed quantity delta to a product and records a
// stock movement carrying the before and after quantities. The derived stock
// status is recomputed inside the same transaction.
func (s *Service) AdjustStock(ctx context.Context, productID string, delta int, movement MovementType, reference, actor string) (Product, Result, error) {
	var updated Product
	var res Result
	err := s.instrument(ctx, "adjust_stock", EntityProduct, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var before int
			updatedProduct, txErr := tx.UpdateProduct(productID, func(p *Product) error {
				before = p.StockQuantity
				p.StockQuantity += delta
				return nil
			})
			if txErr != nil {
				return txErr
			}
			updated = updatedProduct
			mv := StockMovement{
				ProductID: productID,
				Type:      movement,
				Quantity:  delta,
				Before:    before,
				After:     updated.StockQuantity,
				Actor:     actor,
			}
			if ref := strings.TrimSpace(reference); ref != "" {
				mv.Reference = &ref
			}
			_, txErr = tx.CreateStockMovement(mv)
			return txErr
		})
		return productID, err
	})
	return updated, res, err
}

// SetStockQuantity replaces a product's absolute stock quantity, recording the
// difference as an adjustment movement. The previous quantity is read inside
// the same transaction that writes the new one, so concurrent adjustments
// cannot produce a movement whose delta disagrees with the committed change.
func (s *Service) SetStockQuantity(ctx context.Context, productID string, quantity int, actor string) (Product, Result, error) {
	var updated Product
	var res Result
	err := s.instrument(ctx, "set_stock_quantity", EntityProduct, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var before int
			updatedProduct, txErr := tx.UpdateProduct(productID, func(p *Product) error {
				before = p.StockQuantity
				p.StockQuantity = quantity
				return nil
			})
			if txErr != nil {
				return txErr
			}
			updated = updatedProduct
			_, txErr = tx.CreateStockMovement(StockMovement{
				ProductID: productID,
				Type:      MovementAdjusted,
				Quantity:  quantity - before,
				Before:    before,
				After:     quantity,
				Actor:     actor,
			})
			return txErr
		})
		return productID, err
	})
	return updated, res, err
}

// CreateOrder persists a new order.
func (s *Service) CreateOrder(ctx context.Context, order Order) (Order, Result, error) {
	var created Order
	var res Result
	err := s.instrument(ctx, "create_order", EntityOrder, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreateOrder(order)
			return txErr
		})
		return created.ID, err
	})
	return created, res, err
}

// UpdateOrder applies the mutator to an existing order.
func (s *Service) UpdateOrder(ctx context.Context, id string, mutator func(*Order) error) (Order, Result, error) {
	var updated Order
	var res Result
	err := s.instrument(ctx, "update_order", EntityOrder, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateOrder(id, mutator)
			return txErr
		})
		return id, err
	})
	return updated, res, err
}

// GetOrder fetches an order by id.
func (s *Service) GetOrder(_ context.Context, id string) (Order, bool) {
	return s.store.GetOrder(id)
}

// ListOrders returns all orders sorted by creation time.
func (s *Service) ListOrders(_ context.Context) []Order {
	return s.store.ListOrders()
}

// AdvanceOrder moves an order to the requested fulfilment status. The
// transition tables gate the commit, so out-of-sequence moves fail with a
// rule violation.
func (s *Service) AdvanceOrder(ctx context.Context, id string, to OrderStatus, payload TransitionPayload) (Order, Result, error) {
	var updated Order
	var res Result
	err := s.instrument(ctx, "advance_order", EntityOrder, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateOrder(id, func(o *Order) error {
				o.Status = to
				applyOrderPayload(o, payload)
				return nil
			})
			return txErr
		})
		return id, err
	})
	return updated, res, err
}

// CancelOrder moves an order to CANCELLED with the supplied reason.
func (s *Service) CancelOrder(ctx context.Context, id, reason string) (Order, Result, error) {
	return s.AdvanceOrder(ctx, id, OrderCancelled, TransitionPayload{CancelReason: reason})
}

// CreateCustomer persists a new customer.
func (s *Service) CreateCustomer(ctx context.Context, customer Customer) (Customer, Result, error) {
	var created Customer
	var res Result
	err := s.instrument(ctx, "create_customer", EntityCustomer, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreateCustomer(customer)
			return txErr
		})
		return created.ID, err
	})
	return created, res, err
}

// UpdateCustomer applies the mutator to an existing customer.
func (s *Service) UpdateCustomer(ctx context.Context, id string, mutator func(*Customer) error) (Customer, Result, error) {
	var updated Customer
	var res Result
	err := s.instrument(ctx, "update_customer", EntityCustomer, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateCustomer(id, mutator)
			return txErr
		})
		return id, err
	})
	return updated, res, err
}

// GetCustomer fetches a customer by id.
func (s *Service) GetCustomer(_ context.Context, id string) (Customer, bool) {
	return s.store.GetCustomer(id)
}

// ListCustomers returns all customers sorted by creation time.
func (s *Service) ListCustomers(_ context.Context) []Customer {
	return s.store.ListCustomers()
}

// CreatePrescription persists a new prescription in PENDING_VERIFICATION.
func (s *Service) CreatePrescription(ctx context.Context, prescription Prescription) (Prescription, Result, error) {
	var created Prescription
	var res Result
	err := s.instrument(ctx, "create_prescription", EntityPrescription, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreatePrescription(prescription)
			return txErr
		})
		return created.ID, err
	})
	return created, res, err
}

// UpdatePrescription applies the mutator to an existing prescription.
func (s *Service) UpdatePrescription(ctx context.Context, id string, mutator func(*Prescription) error) (Prescription, Result, error) {
	var updated Prescription
	var res Result
	err := s.instrument(ctx, "update_prescription", EntityPrescription, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdatePrescription(id, mutator)
			return txErr
		})
		return id, err
	})
	return updated, res, err
}

// GetPrescription fetches a prescription by id.
func (s *Service) GetPrescription(_ context.Context, id string) (Prescription, bool) {
	return s.store.GetPrescription(id)
}

// ListPrescriptions returns all prescriptions sorted by creation time.
func (s *Service) ListPrescriptions(_ context.Context) []Prescription {
	return s.store.ListPrescriptions()
}

// ReviewPrescription moves a prescription to the requested review status,
// stamping the reviewer and review time. The transition tables gate the
// commit.
func (s *Service) ReviewPrescription(ctx context.Context, id string, to PrescriptionStatus, payload TransitionPayload, reviewer string) (Prescription, Result, error) {
	var updated Prescription
	var res Result
	err := s.instrument(ctx, "review_prescription", EntityPrescription, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdatePrescription(id, func(p *Prescription) error {
				p.Status = to
				applyPrescriptionPayload(p, payload)
				if rev := strings.TrimSpace(reviewer); rev != "" {
					p.ReviewedBy = &rev
				}
				at := s.now()
				p.ReviewedAt = &at
				return nil
			})
			return txErr
		})
		return id, err
	})
	return updated, res, err
}

// ListStockMovements returns the append-only movement log, oldest first.
func (s *Service) ListStockMovements(_ context.Context) []StockMovement {
	return s.store.ListStockMovements()
}

// DashboardSummary aggregates the headline counts for the admin landing page.
type DashboardSummary struct {
	TotalProducts        int            `json:"total_products"`
	LowStockProducts     int            `json:"low_stock_products"`
	OutOfStockProducts   int            `json:"out_of_stock_products"`
	TotalOrders          int            `json:"total_orders"`
	ActiveOrders         int            `json:"active_orders"`
	OrdersByStatus       map[string]int `json:"orders_by_status"`
	PendingPrescriptions int            `json:"pending_prescriptions"`
	TotalCustomers       int            `json:"total_customers"`
}

// Dashboard computes the summary from a consistent view of the store.
func (s *Service) Dashboard(ctx context.Context) (DashboardSummary, error) {
	var summary DashboardSummary
	err := s.store.View(ctx, func(view RuleView) error {
		products := view.ListProducts()
		summary.TotalProducts = len(products)
		for _, p := range products {
			switch p.StockStatus {
			case StockLowStock:
				summary.LowStockProducts++
			case StockOutOfStock:
				summary.OutOfStockProducts++
			}
		}
		orders := view.ListOrders()
		summary.TotalOrders = len(orders)
		summary.OrdersByStatus = make(map[string]int, 6)
		for _, o := range orders {
			summary.OrdersByStatus[string(o.Status)]++
			if !o.Status.Terminal() {
				summary.ActiveOrders++
			}
		}
		for _, p := range view.ListPrescriptions() {
			if p.Status == PrescriptionPending || p.Status == PrescriptionClarification {
				summary.PendingPrescriptions++
			}
		}
		summary.TotalCustomers = len(view.ListCustomers())
		return nil
	})
	return summary, err
}

func applyOrderPayload(o *Order, payload TransitionPayload) {
	if reason := strings.TrimSpace(payload.CancelReason); reason != "" {
		o.CancelReason = &reason
	}
	if notes := strings.TrimSpace(payload.Notes); notes != "" {
		o.Notes = &notes
	}
}

func applyPrescriptionPayload(p *Prescription, payload TransitionPayload) {
	if reason := strings.TrimSpace(payload.RejectionReason); reason != "" {
		p.RejectionReason = &reason
	}
	if req := strings.TrimSpace(payload.ClarificationRequest); req != "" {
		p.ClarificationRequest = &req
	}
	if notes := strings.TrimSpace(payload.Notes); notes != "" {
		p.Notes = &notes
	}
}
