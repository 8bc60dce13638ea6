package adminclient

import (
	"context"
	"fmt"
	"sync"

	"pharmacore/pkg/domain"
)

// MutationError names the failed operation and carries the underlying cause.
type MutationError struct {
	Operation string
	Err       error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// MutateOptions selects which cached pages receive the optimistic write and
// which key prefixes are invalidated once the mutation settles.
type MutateOptions struct {
	UpdateKeys     []ListQuery
	SettlePrefixes []string
}

// SendFunc performs the network mutation. When the server echoes the updated
// record it is returned with true; false keeps the optimistic projection.
type SendFunc[T any] func(ctx context.Context) (T, bool, error)

// Executor applies mutate-now-reconcile-later updates against a Cache with
// rollback safety. Mutations touching the same record id are serialized, so
// two concurrent stock edits cannot race each other's snapshots.
type Executor[T any] struct {
	cache *Cache[T]
	mu    sync.Mutex
	locks map[string]*recordLock
}

type recordLock struct {
	mu   sync.Mutex
	refs int
}

// NewExecutor constructs an executor over the cache.
func NewExecutor[T any](cache *Cache[T]) *Executor[T] {
	return &Executor[T]{cache: cache, locks: make(map[string]*recordLock)}
}

func (e *Executor[T]) acquire(recordID string) *recordLock {
	e.mu.Lock()
	l, ok := e.locks[recordID]
	if !ok {
		l = &recordLock{}
		e.locks[recordID] = l
	}
	l.refs++
	e.mu.Unlock()
	l.mu.Lock()
	return l
}

func (e *Executor[T]) release(recordID string, l *recordLock) {
	l.mu.Unlock()
	e.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(e.locks, recordID)
	}
	e.mu.Unlock()
}

type snapshot[T any] struct {
	query ListQuery
	prior T
}

// Mutate applies the patch optimistically across the update keys, sends the
// mutation, and reconciles: on success the optimistic value stays (or is
// replaced by the server's echo); on failure every snapshot is restored and
// a MutationError naming the operation is returned. The settle prefixes are
// invalidated either way so the next read reconciles with the server.
//
// Pages that do not hold the record id are left untouched.
func (e *Executor[T]) Mutate(ctx context.Context, operation, recordID string, patch func(T) T, send SendFunc[T], opts MutateOptions) error {
	lock := e.acquire(recordID)
	defer e.release(recordID, lock)
	defer func() {
		for _, prefix := range opts.SettlePrefixes {
			e.cache.Invalidate(prefix)
		}
	}()

	var snapshots []snapshot[T]
	var projected T
	haveProjection := false
	for _, q := range opts.UpdateKeys {
		prior, ok := e.cache.GetRecord(q, recordID)
		if !ok {
			continue
		}
		snapshots = append(snapshots, snapshot[T]{query: q, prior: prior})
		if !haveProjection {
			projected = patch(e.cache.clone(prior))
			haveProjection = true
		}
	}
	for _, snap := range snapshots {
		e.cache.SetRecord(snap.query, recordID, projected)
	}

	serverValue, echoed, err := send(ctx)
	if err != nil {
		for _, snap := range snapshots {
			e.cache.SetRecord(snap.query, recordID, snap.prior)
		}
		return &MutationError{Operation: operation, Err: err}
	}
	if echoed {
		for _, snap := range snapshots {
			e.cache.SetRecord(snap.query, recordID, serverValue)
		}
	}
	return nil
}

// StockPatch builds a product patch that sets an absolute quantity and
// recomputes the derived stock status with the server's threshold rule.
func StockPatch(quantity int) func(domain.Product) domain.Product {
	return func(p domain.Product) domain.Product {
		p.StockQuantity = quantity
		p.StockStatus = domain.DeriveStockStatus(quantity, p.LowStockThreshold)
		return p
	}
}
