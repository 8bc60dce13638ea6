package adminclient

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultStaleness is the window after which a cached page is eligible for
// background revalidation.
const DefaultStaleness = 30 * time.Second

const defaultCacheSize = 256

// Meta mirrors the pagination envelope returned beside every list payload.
type Meta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// FetchFunc loads one page from the server.
type FetchFunc[T any] func(ctx context.Context, q ListQuery) ([]T, Meta, error)

// Result is the cache's answer to Get: the last-known data plus loading and
// error state. A failed refetch keeps the previous data and sets Err.
type Result[T any] struct {
	Data      []T
	Meta      Meta
	Loading   bool
	Err       error
	FetchedAt time.Time
}

type entry[T any] struct {
	query     ListQuery
	data      []T
	meta      Meta
	fetchedAt time.Time
	err       error
	loading   bool
	stale     bool
}

type inflightFetch struct {
	key    string
	cancel context.CancelFunc
}

// Cache maps canonical query keys to their last-known result set with
// stale-while-revalidate semantics. Entries live in a bounded LRU; fetches
// for a logical resource cancel superseded in-flight fetches so a stale
// response can never overwrite newer data.
type Cache[T any] struct {
	mu        sync.Mutex
	entries   *lru.Cache[string, *entry[T]]
	fetch     FetchFunc[T]
	idOf      func(T) string
	clone     func(T) T
	staleness time.Duration
	inflight  map[string]*inflightFetch
	pending   sync.WaitGroup
	nowFn     func() time.Time
}

// CacheOption configures optional cache behavior.
type CacheOption[T any] func(*Cache[T])

// WithStaleness overrides the revalidation window.
func WithStaleness[T any](d time.Duration) CacheOption[T] {
	return func(c *Cache[T]) {
		if d > 0 {
			c.staleness = d
		}
	}
}

// WithClone sets a deep-copy function for cached records. Records containing
// slices or maps need one so snapshots are isolated from later mutation.
func WithClone[T any](clone func(T) T) CacheOption[T] {
	return func(c *Cache[T]) {
		if clone != nil {
			c.clone = clone
		}
	}
}

// NewCache constructs a cache holding up to size pages. idOf extracts the
// server-assigned record id used by SetRecord and the mutation executor.
func NewCache[T any](size int, fetch FetchFunc[T], idOf func(T) string, opts ...CacheOption[T]) (*Cache[T], error) {
	if size < 1 {
		size = defaultCacheSize
	}
	entries, err := lru.New[string, *entry[T]](size)
	if err != nil {
		return nil, err
	}
	c := &Cache[T]{
		entries:   entries,
		fetch:     fetch,
		idOf:      idOf,
		clone:     func(v T) T { return v },
		staleness: DefaultStaleness,
		inflight:  make(map[string]*inflightFetch),
		nowFn:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the cached state for the query. A missing, stale, or
// invalidated entry triggers a background refetch; in that case the previous
// data is returned with Loading set. Fetch errors are never returned
// synchronously, they surface in Result.Err.
func (c *Cache[T]) Get(q ListQuery) Result[T] {
	key := q.Key()
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries.Get(key)
	if !ok {
		ent = &entry[T]{query: q}
		c.entries.Add(key, ent)
	}
	fresh := ok && !ent.stale && !ent.fetchedAt.IsZero() && c.nowFn().Sub(ent.fetchedAt) < c.staleness
	if !fresh && !ent.loading {
		c.startFetch(q, ent)
	}
	return c.resultLocked(ent)
}

// resultLocked copies the entry state; callers hold c.mu.
func (c *Cache[T]) resultLocked(ent *entry[T]) Result[T] {
	data := make([]T, len(ent.data))
	for i, rec := range ent.data {
		data[i] = c.clone(rec)
	}
	return Result[T]{
		Data:      data,
		Meta:      ent.meta,
		Loading:   ent.loading,
		Err:       ent.err,
		FetchedAt: ent.fetchedAt,
	}
}

// startFetch launches a background revalidation; callers hold c.mu. A fetch
// for the same logical resource but a different page supersedes and cancels
// any fetch already in flight.
func (c *Cache[T]) startFetch(q ListQuery, ent *entry[T]) {
	key := q.Key()
	if prev, ok := c.inflight[q.Resource]; ok && prev.key != key {
		prev.cancel()
	}
	fctx, cancel := context.WithCancel(context.Background())
	c.inflight[q.Resource] = &inflightFetch{key: key, cancel: cancel}
	ent.loading = true

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		defer cancel()
		data, meta, err := c.fetch(fctx, q)

		c.mu.Lock()
		defer c.mu.Unlock()
		if cur, ok := c.inflight[q.Resource]; ok && cur.key == key {
			delete(c.inflight, q.Resource)
		}
		target, ok := c.entries.Get(key)
		if !ok {
			target = ent
			c.entries.Add(key, target)
		}
		target.loading = false
		if fctx.Err() != nil {
			// Superseded; newer data owns the entry now.
			return
		}
		if err != nil {
			target.err = err
			return
		}
		target.data = data
		target.meta = meta
		target.err = nil
		target.stale = false
		target.fetchedAt = c.nowFn()
	}()
}

// Invalidate marks every cached entry whose key matches the prefix as stale.
// Data is kept visible; the next Get refetches.
func (c *Cache[T]) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.entries.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if ent, ok := c.entries.Peek(key); ok {
			ent.stale = true
		}
	}
}

// SetData injects a result set directly, without a network round-trip.
func (c *Cache[T]) SetData(q ListQuery, data []T, meta Meta) {
	key := q.Key()
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries.Get(key)
	if !ok {
		ent = &entry[T]{query: q, fetchedAt: c.nowFn()}
		c.entries.Add(key, ent)
	}
	ent.data = data
	ent.meta = meta
	ent.err = nil
}

// GetRecord returns a copy of the record with the given id from the cached
// page, if the page holds it.
func (c *Cache[T]) GetRecord(q ListQuery, id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	ent, ok := c.entries.Peek(q.Key())
	if !ok {
		return zero, false
	}
	for _, rec := range ent.data {
		if c.idOf(rec) == id {
			return c.clone(rec), true
		}
	}
	return zero, false
}

// SetRecord replaces the record with the given id inside the cached page and
// returns the prior value. Pages that do not hold the id are left untouched.
func (c *Cache[T]) SetRecord(q ListQuery, id string, record T) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	ent, ok := c.entries.Peek(q.Key())
	if !ok {
		return zero, false
	}
	for i, rec := range ent.data {
		if c.idOf(rec) == id {
			prior := c.clone(rec)
			ent.data[i] = c.clone(record)
			return prior, true
		}
	}
	return zero, false
}

// Wait blocks until all in-flight background fetches settle.
func (c *Cache[T]) Wait() {
	c.pending.Wait()
}
