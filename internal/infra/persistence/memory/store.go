// Package memory provides the in-memory transactional store that backs every
// pharmacore persistence driver. Durable drivers embed it and snapshot its
// state after each successful commit.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"pharmacore/pkg/domain"
)

type state struct {
	products      map[string]domain.Product
	orders        map[string]domain.Order
	customers     map[string]domain.Customer
	prescriptions map[string]domain.Prescription
	movements     map[string]domain.StockMovement
}

func newState() state {
	return state{
		products:      make(map[string]domain.Product),
		orders:        make(map[string]domain.Order),
		customers:     make(map[string]domain.Customer),
		prescriptions: make(map[string]domain.Prescription),
		movements:     make(map[string]domain.StockMovement),
	}
}

func (s state) clone() state {
	cloned := newState()
	for k, v := range s.products {
		cloned.products[k] = cloneProduct(v)
	}
	for k, v := range s.orders {
		cloned.orders[k] = cloneOrder(v)
	}
	for k, v := range s.customers {
		cloned.customers[k] = cloneCustomer(v)
	}
	for k, v := range s.prescriptions {
		cloned.prescriptions[k] = clonePrescription(v)
	}
	for k, v := range s.movements {
		cloned.movements[k] = cloneMovement(v)
	}
	return cloned
}

func cloneProduct(p domain.Product) domain.Product { return p }

func cloneOrder(o domain.Order) domain.Order {
	cp := o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return cp
}

func cloneCustomer(c domain.Customer) domain.Customer             { return c }
func clonePrescription(p domain.Prescription) domain.Prescription { return p }
func cloneMovement(m domain.StockMovement) domain.StockMovement   { return m }

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  state
	engine *domain.RulesEngine
	nowFn  func() time.Time
}

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the transaction clock; used by deterministic tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.nowFn = fn
	s.mu.Unlock()
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// Tx represents a mutation set applied to the store state.
type Tx struct {
	store   *Store
	state   state
	changes []domain.Change
	now     time.Time
}

var _ domain.Transaction = (*Tx)(nil)

// view exposes a read-only snapshot of transactional state to rules.
type view struct {
	state *state
}

var _ domain.RuleView = view{}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy is committed only when fn and all registered rules succeed; any
// failure discards the copy, leaving the committed state untouched.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, view{state: &tx.state}, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(domain.RuleView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(view{state: &snapshot})
}

// Snapshot returns a read-only view of the transactional state for fn.
func (tx *Tx) Snapshot() domain.RuleView {
	return view{state: &tx.state}
}

func (tx *Tx) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// CreateProduct stores a new product within the transaction.
func (tx *Tx) CreateProduct(p domain.Product) (domain.Product, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.products[p.ID]; exists {
		return domain.Product{}, fmt.Errorf("product %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	p.StockStatus = domain.DeriveStockStatus(p.StockQuantity, p.LowStockThreshold)
	tx.state.products[p.ID] = cloneProduct(p)
	tx.recordChange(domain.Change{Entity: domain.EntityProduct, Action: domain.ActionCreate, After: cloneProduct(p)})
	return cloneProduct(p), nil
}

// UpdateProduct mutates a product using the provided mutator function. The
// derived stock status is recomputed after every mutation.
func (tx *Tx) UpdateProduct(id string, mutator func(*domain.Product) error) (domain.Product, error) {
	current, ok := tx.state.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound{Entity: domain.EntityProduct, ID: id}
	}
	before := cloneProduct(current)
	if err := mutator(&current); err != nil {
		return domain.Product{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	current.StockStatus = domain.DeriveStockStatus(current.StockQuantity, current.LowStockThreshold)
	tx.state.products[id] = cloneProduct(current)
	tx.recordChange(domain.Change{Entity: domain.EntityProduct, Action: domain.ActionUpdate, Before: before, After: cloneProduct(current)})
	return cloneProduct(current), nil
}

// DeleteProduct removes a product from the transaction state.
func (tx *Tx) DeleteProduct(id string) error {
	current, ok := tx.state.products[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityProduct, ID: id}
	}
	delete(tx.state.products, id)
	tx.recordChange(domain.Change{Entity: domain.EntityProduct, Action: domain.ActionDelete, Before: cloneProduct(current)})
	return nil
}

// CreateOrder stores a new order within the transaction.
func (tx *Tx) CreateOrder(o domain.Order) (domain.Order, error) {
	if o.ID == "" {
		o.ID = tx.store.newID()
	}
	if _, exists := tx.state.orders[o.ID]; exists {
		return domain.Order{}, fmt.Errorf("order %q already exists", o.ID)
	}
	if o.Status == "" {
		o.Status = domain.OrderReceived
	}
	o.CreatedAt = tx.now
	o.UpdatedAt = tx.now
	if o.PlacedAt.IsZero() {
		o.PlacedAt = tx.now
	}
	tx.state.orders[o.ID] = cloneOrder(o)
	tx.recordChange(domain.Change{Entity: domain.EntityOrder, Action: domain.ActionCreate, After: cloneOrder(o)})
	return cloneOrder(o), nil
}

// UpdateOrder mutates an order using the provided mutator function.
func (tx *Tx) UpdateOrder(id string, mutator func(*domain.Order) error) (domain.Order, error) {
	current, ok := tx.state.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound{Entity: domain.EntityOrder, ID: id}
	}
	before := cloneOrder(current)
	if err := mutator(&current); err != nil {
		return domain.Order{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.orders[id] = cloneOrder(current)
	tx.recordChange(domain.Change{Entity: domain.EntityOrder, Action: domain.ActionUpdate, Before: before, After: cloneOrder(current)})
	return cloneOrder(current), nil
}

// DeleteOrder removes an order from the transaction state.
func (tx *Tx) DeleteOrder(id string) error {
	current, ok := tx.state.orders[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityOrder, ID: id}
	}
	delete(tx.state.orders, id)
	tx.recordChange(domain.Change{Entity: domain.EntityOrder, Action: domain.ActionDelete, Before: cloneOrder(current)})
	return nil
}

// CreateCustomer stores a new customer within the transaction.
func (tx *Tx) CreateCustomer(c domain.Customer) (domain.Customer, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.customers[c.ID]; exists {
		return domain.Customer{}, fmt.Errorf("customer %q already exists", c.ID)
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.customers[c.ID] = cloneCustomer(c)
	tx.recordChange(domain.Change{Entity: domain.EntityCustomer, Action: domain.ActionCreate, After: cloneCustomer(c)})
	return cloneCustomer(c), nil
}

// UpdateCustomer mutates a customer record.
func (tx *Tx) UpdateCustomer(id string, mutator func(*domain.Customer) error) (domain.Customer, error) {
	current, ok := tx.state.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrNotFound{Entity: domain.EntityCustomer, ID: id}
	}
	before := cloneCustomer(current)
	if err := mutator(&current); err != nil {
		return domain.Customer{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.customers[id] = cloneCustomer(current)
	tx.recordChange(domain.Change{Entity: domain.EntityCustomer, Action: domain.ActionUpdate, Before: before, After: cloneCustomer(current)})
	return cloneCustomer(current), nil
}

// DeleteCustomer removes a customer from the transaction state.
func (tx *Tx) DeleteCustomer(id string) error {
	current, ok := tx.state.customers[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityCustomer, ID: id}
	}
	delete(tx.state.customers, id)
	tx.recordChange(domain.Change{Entity: domain.EntityCustomer, Action: domain.ActionDelete, Before: cloneCustomer(current)})
	return nil
}

// CreatePrescription stores a new prescription within the transaction.
func (tx *Tx) CreatePrescription(p domain.Prescription) (domain.Prescription, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.prescriptions[p.ID]; exists {
		return domain.Prescription{}, fmt.Errorf("prescription %q already exists", p.ID)
	}
	if p.Status == "" {
		p.Status = domain.PrescriptionPending
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.prescriptions[p.ID] = clonePrescription(p)
	tx.recordChange(domain.Change{Entity: domain.EntityPrescription, Action: domain.ActionCreate, After: clonePrescription(p)})
	return clonePrescription(p), nil
}

// UpdatePrescription mutates a prescription record.
func (tx *Tx) UpdatePrescription(id string, mutator func(*domain.Prescription) error) (domain.Prescription, error) {
	current, ok := tx.state.prescriptions[id]
	if !ok {
		return domain.Prescription{}, domain.ErrNotFound{Entity: domain.EntityPrescription, ID: id}
	}
	before := clonePrescription(current)
	if err := mutator(&current); err != nil {
		return domain.Prescription{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.prescriptions[id] = clonePrescription(current)
	tx.recordChange(domain.Change{Entity: domain.EntityPrescription, Action: domain.ActionUpdate, Before: before, After: clonePrescription(current)})
	return clonePrescription(current), nil
}

// DeletePrescription removes a prescription from the transaction state.
func (tx *Tx) DeletePrescription(id string) error {
	current, ok := tx.state.prescriptions[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityPrescription, ID: id}
	}
	delete(tx.state.prescriptions, id)
	tx.recordChange(domain.Change{Entity: domain.EntityPrescription, Action: domain.ActionDelete, Before: clonePrescription(current)})
	return nil
}

// CreateStockMovement appends an audit record for a stock change. Movements
// are append-only; there is no update or delete.
func (tx *Tx) CreateStockMovement(m domain.StockMovement) (domain.StockMovement, error) {
	if m.ID == "" {
		m.ID = tx.store.newID()
	}
	if _, exists := tx.state.movements[m.ID]; exists {
		return domain.StockMovement{}, fmt.Errorf("stock movement %q already exists", m.ID)
	}
	m.CreatedAt = tx.now
	m.UpdatedAt = tx.now
	tx.state.movements[m.ID] = cloneMovement(m)
	tx.recordChange(domain.Change{Entity: domain.EntityStockMovement, Action: domain.ActionCreate, After: cloneMovement(m)})
	return cloneMovement(m), nil
}

// Rule view ------------------------------------------------------------------

// ListProducts returns all products within the snapshot, oldest first.
func (v view) ListProducts() []domain.Product {
	out := make([]domain.Product, 0, len(v.state.products))
	for _, p := range v.state.products {
		out = append(out, cloneProduct(p))
	}
	sortRecords(out, func(p domain.Product) (time.Time, string) { return p.CreatedAt, p.ID })
	return out
}

// ListOrders returns all orders within the snapshot, oldest first.
func (v view) ListOrders() []domain.Order {
	out := make([]domain.Order, 0, len(v.state.orders))
	for _, o := range v.state.orders {
		out = append(out, cloneOrder(o))
	}
	sortRecords(out, func(o domain.Order) (time.Time, string) { return o.CreatedAt, o.ID })
	return out
}

// ListCustomers returns all customers within the snapshot, oldest first.
func (v view) ListCustomers() []domain.Customer {
	out := make([]domain.Customer, 0, len(v.state.customers))
	for _, c := range v.state.customers {
		out = append(out, cloneCustomer(c))
	}
	sortRecords(out, func(c domain.Customer) (time.Time, string) { return c.CreatedAt, c.ID })
	return out
}

// ListPrescriptions returns all prescriptions within the snapshot, oldest first.
func (v view) ListPrescriptions() []domain.Prescription {
	out := make([]domain.Prescription, 0, len(v.state.prescriptions))
	for _, p := range v.state.prescriptions {
		out = append(out, clonePrescription(p))
	}
	sortRecords(out, func(p domain.Prescription) (time.Time, string) { return p.CreatedAt, p.ID })
	return out
}

// ListStockMovements returns all stock movements within the snapshot, oldest first.
func (v view) ListStockMovements() []domain.StockMovement {
	out := make([]domain.StockMovement, 0, len(v.state.movements))
	for _, m := range v.state.movements {
		out = append(out, cloneMovement(m))
	}
	sortRecords(out, func(m domain.StockMovement) (time.Time, string) { return m.CreatedAt, m.ID })
	return out
}

// FindProduct retrieves a product by ID from the snapshot.
func (v view) FindProduct(id string) (domain.Product, bool) {
	p, ok := v.state.products[id]
	if !ok {
		return domain.Product{}, false
	}
	return cloneProduct(p), true
}

// FindOrder retrieves an order by ID from the snapshot.
func (v view) FindOrder(id string) (domain.Order, bool) {
	o, ok := v.state.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return cloneOrder(o), true
}

// FindCustomer retrieves a customer by ID from the snapshot.
func (v view) FindCustomer(id string) (domain.Customer, bool) {
	c, ok := v.state.customers[id]
	if !ok {
		return domain.Customer{}, false
	}
	return cloneCustomer(c), true
}

// FindPrescription retrieves a prescription by ID from the snapshot.
func (v view) FindPrescription(id string) (domain.Prescription, bool) {
	p, ok := v.state.prescriptions[id]
	if !ok {
		return domain.Prescription{}, false
	}
	return clonePrescription(p), true
}

func sortRecords[T any](records []T, key func(T) (time.Time, string)) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, idi := key(records[i])
		tj, idj := key(records[j])
		if ti.Equal(tj) {
			return idi < idj
		}
		return ti.Before(tj)
	})
}

// Committed-state read helpers ----------------------------------------------

// GetProduct retrieves a product by ID from committed state.
func (s *Store) GetProduct(id string) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.products[id]
	if !ok {
		return domain.Product{}, false
	}
	return cloneProduct(p), true
}

// ListProducts returns all products from committed state, oldest first.
func (s *Store) ListProducts() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListProducts()
}

// GetOrder retrieves an order by ID from committed state.
func (s *Store) GetOrder(id string) (domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.state.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return cloneOrder(o), true
}

// ListOrders returns all orders from committed state, oldest first.
func (s *Store) ListOrders() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListOrders()
}

// GetCustomer retrieves a customer by ID from committed state.
func (s *Store) GetCustomer(id string) (domain.Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.customers[id]
	if !ok {
		return domain.Customer{}, false
	}
	return cloneCustomer(c), true
}

// ListCustomers returns all customers from committed state, oldest first.
func (s *Store) ListCustomers() []domain.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListCustomers()
}

// GetPrescription retrieves a prescription by ID from committed state.
func (s *Store) GetPrescription(id string) (domain.Prescription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.prescriptions[id]
	if !ok {
		return domain.Prescription{}, false
	}
	return clonePrescription(p), true
}

// ListPrescriptions returns all prescriptions from committed state, oldest first.
func (s *Store) ListPrescriptions() []domain.Prescription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListPrescriptions()
}

// ListStockMovements returns all stock movements from committed state, oldest first.
func (s *Store) ListStockMovements() []domain.StockMovement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListStockMovements()
}
