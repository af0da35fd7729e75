// Package querycache is a keyed, invalidatable store of fetched data.
//
// Entries are grouped into families (Key.Family). Reads return cached data
// while it is fresh; stale or missing entries are loaded through a Loader,
// with concurrent loads of one key collapsed into a single call and failed
// loads retried a bounded number of times. Every write bumps a per-key
// generation, and a load only stores its result if the generation it started
// from is still current, so a slow load never overwrites a newer write.
package querycache

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultStaleTime is how long an entry stays fresh without invalidation.
	DefaultStaleTime = 60 * time.Second

	// DefaultRetention is how long an unobserved entry is kept before GC.
	DefaultRetention = 5 * time.Minute

	// DefaultRetry is the number of retries after a failed load.
	DefaultRetry = 1

	// maxRetryDelay caps the exponential backoff.
	maxRetryDelay = 30 * time.Second
)

// Key identifies a cache entry. Keys sharing a Family are invalidated together.
type Key struct {
	Family string `json:"family"`
	Filter string `json:"filter,omitempty"`
}

// String returns a stable representation of the key.
func (k Key) String() string {
	if k.Filter == "" {
		return k.Family
	}
	return k.Family + "|" + k.Filter
}

// Entry is a cached value as seen by readers.
type Entry[T any] struct {
	Data      T
	FetchedAt time.Time
	Stale     bool
}

// Loader fetches the authoritative value for a key.
type Loader[T any] func(ctx context.Context) (T, error)

// Listener is notified after the entry for key changes.
// ok is false when the entry was removed.
type Listener[T any] func(key Key, entry Entry[T], ok bool)

// Options configures a Cache. Zero durations use the defaults.
type Options[T any] struct {
	// StaleTime is the freshness window of an entry.
	StaleTime time.Duration

	// Retention is how long an unobserved entry survives GC.
	Retention time.Duration

	// Retry is the number of retries after a failed load. Negative means none.
	Retry int

	// RetryDelay returns the backoff before retry attempt (0-based).
	RetryDelay func(attempt int) time.Duration

	// ShouldRetry reports whether a load error is worth retrying.
	ShouldRetry func(err error) bool

	// Clone copies a value so readers and snapshots never alias cached data.
	Clone func(T) T

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	// Logger receives debug output.
	Logger *slog.Logger
}

// DefaultRetryDelay doubles from one second, capped at 30 seconds.
func DefaultRetryDelay(attempt int) time.Duration {
	if attempt > 5 {
		return maxRetryDelay
	}
	d := time.Second << attempt
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

type entry[T any] struct {
	data        T
	fetchedAt   time.Time
	invalidated bool
}

type observer[T any] struct {
	loader   Loader[T]
	listener Listener[T]
}

type job struct {
	cancel context.CancelFunc
}

// Cache is a keyed store of query results. It is safe for concurrent use.
type Cache[T any] struct {
	mu        sync.Mutex
	entries   map[Key]*entry[T]
	gens      map[Key]uint64
	epoch     uint64
	observers map[Key]map[uint64]*observer[T]
	nextObsID uint64
	jobs      map[Key]*job

	group singleflight.Group
	wg    sync.WaitGroup

	opts   Options[T]
	logger *slog.Logger
}

// New creates an empty cache.
func New[T any](opts Options[T]) *Cache[T] {
	if opts.StaleTime <= 0 {
		opts.StaleTime = DefaultStaleTime
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Retry < 0 {
		opts.Retry = 0
	}
	if opts.RetryDelay == nil {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.ShouldRetry == nil {
		opts.ShouldRetry = func(error) bool { return true }
	}
	if opts.Clone == nil {
		opts.Clone = func(v T) T { return v }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Cache[T]{
		entries:   make(map[Key]*entry[T]),
		gens:      make(map[Key]uint64),
		observers: make(map[Key]map[uint64]*observer[T]),
		jobs:      make(map[Key]*job),
		opts:      opts,
		logger:    logger,
	}
}

// Read returns the cached entry for key without loading.
func (c *Cache[T]) Read(key Key) (Entry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry[T]{}, false
	}
	return c.viewLocked(e), true
}

// Fetch returns fresh cached data for key, or loads and stores it.
func (c *Cache[T]) Fetch(ctx context.Context, key Key, loader Loader[T]) (T, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && !c.staleLocked(e) {
		data := c.opts.Clone(e.data)
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	return c.load(ctx, key, loader)
}

// load runs loader through the single-flight group. If the shared flight was
// cancelled by someone else (a background refetch being suppressed) while
// the caller is still live, the load is attempted once more.
func (c *Cache[T]) load(ctx context.Context, key Key, loader Loader[T]) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		ch := c.group.DoChan(key.String(), func() (any, error) {
			return c.loadAndStore(ctx, key, loader)
		})

		select {
		case res := <-ch:
			if res.Err != nil {
				if errors.Is(res.Err, context.Canceled) && ctx.Err() == nil && attempt == 0 {
					continue
				}
				return zero, res.Err
			}
			return c.opts.Clone(res.Val.(T)), nil
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

func (c *Cache[T]) loadAndStore(ctx context.Context, key Key, loader Loader[T]) (any, error) {
	c.mu.Lock()
	gen, epoch := c.gens[key], c.epoch
	c.mu.Unlock()

	data, err := c.withRetry(ctx, key, loader)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	c.store(key, data, gen, epoch)
	return data, nil
}

func (c *Cache[T]) withRetry(ctx context.Context, key Key, loader Loader[T]) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		data, err := loader(ctx)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil || attempt >= c.opts.Retry || !c.opts.ShouldRetry(err) {
			return zero, err
		}

		delay := c.opts.RetryDelay(attempt)
		c.logger.Debug("load failed, retrying", "key", key.String(), "attempt", attempt+1, "delay", delay, "error", err)
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return zero, ctx.Err()
			case <-t.C:
			}
		}
	}
}

// store saves a loaded value unless the key was written or the cache was
// cleared since the load started.
func (c *Cache[T]) store(key Key, data T, gen, epoch uint64) {
	c.mu.Lock()
	if c.gens[key] != gen || c.epoch != epoch {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded load", "key", key.String())
		return
	}
	c.entries[key] = &entry[T]{data: c.opts.Clone(data), fetchedAt: c.opts.Now()}
	c.gens[key]++
	c.mu.Unlock()

	c.notify(key)
}

// Write overwrites the entry for key with data and marks it fresh.
func (c *Cache[T]) Write(key Key, data T) {
	c.mu.Lock()
	c.entries[key] = &entry[T]{data: c.opts.Clone(data), fetchedAt: c.opts.Now()}
	c.gens[key]++
	c.mu.Unlock()

	c.notify(key)
}

// Invalidate marks every entry of family stale and starts a background
// refetch for each observed key of the family.
func (c *Cache[T]) Invalidate(family string) {
	c.mu.Lock()
	var changed []Key
	for key, e := range c.entries {
		if key.Family == family {
			e.invalidated = true
			changed = append(changed, key)
		}
	}
	for key, obs := range c.observers {
		if key.Family != family {
			continue
		}
		if loader := firstLoader(obs); loader != nil {
			c.refetchLocked(key, loader)
		}
	}
	c.mu.Unlock()

	c.logger.Debug("invalidated family", "family", family, "entries", len(changed))
	for _, key := range changed {
		c.notify(key)
	}
}

// Cancel aborts in-flight background refetches of family.
// Their results are discarded.
func (c *Cache[T]) Cancel(family string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, j := range c.jobs {
		if key.Family != family {
			continue
		}
		j.cancel()
		delete(c.jobs, key)
		c.group.Forget(key.String())
		c.logger.Debug("cancelled refetch", "key", key.String())
	}
}

// refetchLocked starts a background load of key, replacing any running one.
// c.mu must be held.
func (c *Cache[T]) refetchLocked(key Key, loader Loader[T]) {
	if j, ok := c.jobs[key]; ok {
		j.cancel()
		c.group.Forget(key.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{cancel: cancel}
	c.jobs[key] = j

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		_, err := c.load(ctx, key, loader)

		c.mu.Lock()
		if c.jobs[key] == j {
			delete(c.jobs, key)
		}
		c.mu.Unlock()

		if err != nil && ctx.Err() == nil {
			c.logger.Warn("background refetch failed", "key", key.String(), "error", err)
		}
	}()
}

// Observe registers an active reader of key. listener is called after every
// change to the entry. If loader is non-nil the key is refetched in the
// background on invalidation, and immediately when missing or stale.
// The returned function stops observing.
func (c *Cache[T]) Observe(key Key, loader Loader[T], listener Listener[T]) func() {
	c.mu.Lock()
	c.nextObsID++
	id := c.nextObsID
	if c.observers[key] == nil {
		c.observers[key] = make(map[uint64]*observer[T])
	}
	c.observers[key][id] = &observer[T]{loader: loader, listener: listener}

	if loader != nil {
		if e, ok := c.entries[key]; !ok || c.staleLocked(e) {
			c.refetchLocked(key, loader)
		}
	}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.observers[key], id)
			if len(c.observers[key]) == 0 {
				delete(c.observers, key)
			}
		})
	}
}

// Clear removes every entry of every family and cancels background work.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	for key, j := range c.jobs {
		j.cancel()
		c.group.Forget(key.String())
	}
	c.jobs = make(map[Key]*job)

	removed := make([]Key, 0, len(c.entries))
	for key := range c.entries {
		removed = append(removed, key)
		c.gens[key]++
	}
	c.entries = make(map[Key]*entry[T])
	c.epoch++
	c.mu.Unlock()

	c.logger.Debug("cleared cache", "entries", len(removed))
	for _, key := range removed {
		c.notify(key)
	}
}

// GC drops unobserved entries last written more than Retention ago.
// Returns the number of entries removed.
func (c *Cache[T]) GC() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.Now()
	removed := 0
	for key, e := range c.entries {
		if len(c.observers[key]) > 0 {
			continue
		}
		if now.Sub(e.fetchedAt) >= c.opts.Retention {
			delete(c.entries, key)
			c.gens[key]++
			removed++
		}
	}
	return removed
}

// Wait blocks until all background refetches have finished.
func (c *Cache[T]) Wait() {
	c.wg.Wait()
}

// Len returns the number of entries.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the keys of all entries in a stable order.
func (c *Cache[T]) Keys() []Key {
	c.mu.Lock()
	keys := make([]Key, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	c.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// notify calls the listeners of key with its current state.
// Listeners run synchronously on the caller's goroutine, outside the lock.
func (c *Cache[T]) notify(key Key) {
	c.mu.Lock()
	obs := c.observers[key]
	if len(obs) == 0 {
		c.mu.Unlock()
		return
	}
	listeners := make([]Listener[T], 0, len(obs))
	for _, o := range obs {
		if o.listener != nil {
			listeners = append(listeners, o.listener)
		}
	}
	e, ok := c.entries[key]
	var view Entry[T]
	if ok {
		view = c.viewLocked(e)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(key, view, ok)
	}
}

func (c *Cache[T]) staleLocked(e *entry[T]) bool {
	return e.invalidated || c.opts.Now().Sub(e.fetchedAt) >= c.opts.StaleTime
}

func (c *Cache[T]) viewLocked(e *entry[T]) Entry[T] {
	return Entry[T]{
		Data:      c.opts.Clone(e.data),
		FetchedAt: e.fetchedAt,
		Stale:     c.staleLocked(e),
	}
}

func firstLoader[T any](obs map[uint64]*observer[T]) Loader[T] {
	for _, o := range obs {
		if o.loader != nil {
			return o.loader
		}
	}
	return nil
}
