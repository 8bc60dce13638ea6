package adminclient

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type row struct {
	ID   string
	Name string
	Qty  int
}

func rowID(r row) string { return r.ID }

func newRowCache(t *testing.T, fetch FetchFunc[row], opts ...CacheOption[row]) *Cache[row] {
	t.Helper()
	cache, err := NewCache[row](8, fetch, rowID, opts...)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	return cache
}

func staticFetch(data []row, meta Meta) FetchFunc[row] {
	return func(context.Context, ListQuery) ([]row, Meta, error) {
		return data, meta, nil
	}
}

func TestGetFetchesMissingEntry(t *testing.T) {
	rows := []row{{ID: "p1", Name: "Paracetamol", Qty: 12}}
	cache := newRowCache(t, staticFetch(rows, Meta{Total: 1, Page: 1, PageSize: 20}))
	q := BuildQuery("products", nil, 1, 20)

	first := cache.Get(q)
	if !first.Loading {
		t.Fatal("expected first read to be loading")
	}
	if len(first.Data) != 0 {
		t.Fatalf("expected no data before the fetch lands, got %+v", first.Data)
	}

	cache.Wait()
	second := cache.Get(q)
	if second.Loading {
		t.Fatal("expected settled read")
	}
	if len(second.Data) != 1 || second.Data[0].ID != "p1" {
		t.Fatalf("unexpected data: %+v", second.Data)
	}
	if second.Meta.Total != 1 {
		t.Fatalf("unexpected meta: %+v", second.Meta)
	}
}

func TestFreshEntryServedWithoutRefetch(t *testing.T) {
	var calls atomic.Int32
	fetch := func(context.Context, ListQuery) ([]row, Meta, error) {
		calls.Add(1)
		return []row{{ID: "p1"}}, Meta{Total: 1}, nil
	}
	cache := newRowCache(t, fetch)
	q := BuildQuery("products", nil, 1, 20)

	cache.Get(q)
	cache.Wait()
	cache.Get(q)
	cache.Get(q)
	cache.Wait()
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single fetch for a fresh entry, got %d", got)
	}
}

func TestStaleEntryServesOldDataWhileRevalidating(t *testing.T) {
	var calls atomic.Int32
	fetch := func(context.Context, ListQuery) ([]row, Meta, error) {
		n := calls.Add(1)
		if n == 1 {
			return []row{{ID: "p1", Qty: 10}}, Meta{Total: 1}, nil
		}
		return []row{{ID: "p1", Qty: 99}}, Meta{Total: 1}, nil
	}
	cache := newRowCache(t, fetch)
	q := BuildQuery("products", nil, 1, 20)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cache.nowFn = func() time.Time { return now }

	cache.Get(q)
	cache.Wait()

	// Move past the staleness window; the old page must stay visible while
	// the revalidation is in flight.
	now = now.Add(DefaultStaleness + time.Second)
	stale := cache.Get(q)
	if !stale.Loading {
		t.Fatal("expected stale read to trigger revalidation")
	}
	if len(stale.Data) != 1 || stale.Data[0].Qty != 10 {
		t.Fatalf("expected previous data during revalidation, got %+v", stale.Data)
	}

	cache.Wait()
	settled := cache.Get(q)
	if settled.Data[0].Qty != 99 {
		t.Fatalf("expected revalidated data, got %+v", settled.Data)
	}
}

func TestFailedRefetchKeepsDataAndSetsErr(t *testing.T) {
	boom := errors.New("server unavailable")
	var calls atomic.Int32
	fetch := func(context.Context, ListQuery) ([]row, Meta, error) {
		if calls.Add(1) == 1 {
			return []row{{ID: "p1", Qty: 10}}, Meta{Total: 1}, nil
		}
		return nil, Meta{}, boom
	}
	cache := newRowCache(t, fetch)
	q := BuildQuery("products", nil, 1, 20)

	cache.Get(q)
	cache.Wait()

	cache.Invalidate(q.Prefix())
	cache.Get(q)
	cache.Wait()

	res := cache.Get(q)
	cache.Wait()
	if len(res.Data) != 1 || res.Data[0].Qty != 10 {
		t.Fatalf("failed refetch must keep previous data, got %+v", res.Data)
	}
	if !errors.Is(res.Err, boom) {
		t.Fatalf("expected fetch error surfaced, got %v", res.Err)
	}
}

func TestInvalidateMarksMatchingPrefixOnly(t *testing.T) {
	cache := newRowCache(t, staticFetch([]row{{ID: "p1"}}, Meta{Total: 1}))
	products := BuildQuery("products", nil, 1, 20)
	orders := BuildQuery("orders", nil, 1, 20)
	cache.SetData(products, []row{{ID: "p1"}}, Meta{Total: 1})
	cache.SetData(orders, []row{{ID: "o1"}}, Meta{Total: 1})

	cache.Invalidate("products?")

	pe, _ := cache.entries.Peek(products.Key())
	oe, _ := cache.entries.Peek(orders.Key())
	if !pe.stale {
		t.Fatal("expected products page marked stale")
	}
	if oe.stale {
		t.Fatal("orders page must not be touched by a products invalidation")
	}
}

func TestSetRecordReturnsPriorAndSkipsForeignPages(t *testing.T) {
	cache := newRowCache(t, staticFetch(nil, Meta{}))
	pageWith := BuildQuery("products", nil, 1, 20)
	pageWithout := BuildQuery("products", nil, 2, 20)
	cache.SetData(pageWith, []row{{ID: "p1", Qty: 10}}, Meta{Total: 21})
	cache.SetData(pageWithout, []row{{ID: "p2", Qty: 5}}, Meta{Total: 21})

	prior, ok := cache.SetRecord(pageWith, "p1", row{ID: "p1", Qty: 77})
	if !ok || prior.Qty != 10 {
		t.Fatalf("expected prior value, got %+v ok=%v", prior, ok)
	}
	got, ok := cache.GetRecord(pageWith, "p1")
	if !ok || got.Qty != 77 {
		t.Fatalf("expected updated record, got %+v", got)
	}

	if _, ok := cache.SetRecord(pageWithout, "p1", row{ID: "p1", Qty: 1}); ok {
		t.Fatal("pages without the record must be left untouched")
	}
	other, _ := cache.GetRecord(pageWithout, "p2")
	if other.Qty != 5 {
		t.Fatalf("foreign page mutated: %+v", other)
	}
}

func TestSupersededFetchIsDiscarded(t *testing.T) {
	fetch := func(ctx context.Context, q ListQuery) ([]row, Meta, error) {
		if q.Page == 1 {
			// Returns only after being superseded; the result must not win.
			<-ctx.Done()
			return []row{{ID: "stale"}}, Meta{Total: 1}, nil
		}
		return []row{{ID: "fresh"}}, Meta{Total: 1}, nil
	}
	cache := newRowCache(t, fetch)
	pageOne := BuildQuery("products", nil, 1, 20)
	pageTwo := BuildQuery("products", nil, 2, 20)

	cache.Get(pageOne)
	cache.Get(pageTwo)
	cache.Wait()

	if _, ok := cache.GetRecord(pageOne, "stale"); ok {
		t.Fatal("superseded fetch result must be discarded")
	}
	if _, ok := cache.GetRecord(pageTwo, "fresh"); !ok {
		t.Fatal("expected the superseding fetch to land")
	}
}

func TestCloneIsolatesCachedRecords(t *testing.T) {
	type deep struct {
		ID   string
		Tags []string
	}
	cache, err := NewCache[deep](8,
		func(context.Context, ListQuery) ([]deep, Meta, error) { return nil, Meta{}, nil },
		func(d deep) string { return d.ID },
		WithClone[deep](func(d deep) deep {
			d.Tags = append([]string(nil), d.Tags...)
			return d
		}),
	)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	q := BuildQuery("products", nil, 1, 20)
	cache.SetData(q, []deep{{ID: "p1", Tags: []string{"rx"}}}, Meta{Total: 1})

	got, _ := cache.GetRecord(q, "p1")
	got.Tags[0] = "mutated"

	again, _ := cache.GetRecord(q, "p1")
	if again.Tags[0] != "rx" {
		t.Fatalf("mutating a returned record leaked into the cache: %+v", again)
	}
}
