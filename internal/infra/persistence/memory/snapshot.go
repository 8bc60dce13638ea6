package memory

import "pharmacore/pkg/domain"

// Snapshot is the serialisable representation of the full store state used by
// durable drivers to persist and rehydrate records.
type Snapshot struct {
	Products      []domain.Product       `json:"products"`
	Orders        []domain.Order         `json:"orders"`
	Customers     []domain.Customer      `json:"customers"`
	Prescriptions []domain.Prescription  `json:"prescriptions"`
	Movements     []domain.StockMovement `json:"movements"`
}

// ExportState captures the committed state as a snapshot.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := view{state: &s.state}
	return Snapshot{
		Products:      v.ListProducts(),
		Orders:        v.ListOrders(),
		Customers:     v.ListCustomers(),
		Prescriptions: v.ListPrescriptions(),
		Movements:     v.ListStockMovements(),
	}
}

// ImportState replaces the committed state with the snapshot contents.
// Rules are not evaluated; the snapshot is trusted as previously committed.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := newState()
	for _, p := range snapshot.Products {
		next.products[p.ID] = cloneProduct(p)
	}
	for _, o := range snapshot.Orders {
		next.orders[o.ID] = cloneOrder(o)
	}
	for _, c := range snapshot.Customers {
		next.customers[c.ID] = cloneCustomer(c)
	}
	for _, p := range snapshot.Prescriptions {
		next.prescriptions[p.ID] = clonePrescription(p)
	}
	for _, m := range snapshot.Movements {
		next.movements[m.ID] = cloneMovement(m)
	}
	s.state = next
}
