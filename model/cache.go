package model

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"whispr/log"
)

const (
	DefaultIdleTimeout     = 5 * time.Minute
	DefaultReclaimInterval = 30 * time.Second
)

var (
	ErrModelNotFound    = errors.New("model not found")
	ErrModelLoadFailure = errors.New("model load failed")
	ErrInUse            = errors.New("model in use")
	ErrCacheClosed      = errors.New("model cache closed")
)

// Handle is a loaded model instance. Close frees its memory.
type Handle interface {
	Close() error
}

type Key struct {
	ID    string
	Accel bool
}

func (k Key) String() string {
	if k.Accel {
		return k.ID + "+accel"
	}
	return k.ID
}

// LoadFunc builds a handle from a model file. It may take seconds and is
// never called with the cache lock held.
type LoadFunc[H Handle] func(path string, accel bool) (H, error)

// ResolveFunc maps a model id to a file on disk.
type ResolveFunc func(id string) (string, error)

type Options struct {
	IdleTimeout time.Duration
	// Now overrides the clock; tests use it to age entries.
	Now func() time.Time
}

type entry[H Handle] struct {
	key      Key
	handle   H
	ready    chan struct{}
	loading  bool
	err      error
	borrows  int
	lastUsed time.Time
}

// Cache shares loaded models between callers. Each (id, accel) pair is
// loaded at most once; concurrent callers for the same key wait for the
// first load to finish. Entries with outstanding leases are never unloaded.
type Cache[H Handle] struct {
	resolve ResolveFunc
	load    LoadFunc[H]
	idle    time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[Key]*entry[H]
	closed  bool
}

func NewCache[H Handle](resolve ResolveFunc, load LoadFunc[H], opts Options) *Cache[H] {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache[H]{
		resolve: resolve,
		load:    load,
		idle:    opts.IdleTimeout,
		now:     opts.Now,
		entries: make(map[Key]*entry[H]),
	}
}

// Lease is a borrowed handle. Release must be called exactly once per
// successful Acquire; extra calls are ignored.
type Lease[H Handle] struct {
	cache *Cache[H]
	entry *entry[H]
	once  sync.Once
}

func (l *Lease[H]) Handle() H { return l.entry.handle }
func (l *Lease[H]) Key() Key  { return l.entry.key }

func (l *Lease[H]) Release() {
	l.once.Do(func() { l.cache.giveBack(l.entry) })
}

// Acquire returns a lease on the model for key, loading it if needed.
func (c *Cache[H]) Acquire(ctx context.Context, key Key) (*Lease[H], error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCacheClosed
	}
	if e, ok := c.entries[key]; ok {
		// a waiter counts as a borrower so the entry cannot be evicted
		// between the load finishing and the waiter waking up
		e.borrows++
		e.lastUsed = c.now()
		loading := e.loading
		c.mu.Unlock()

		if loading {
			select {
			case <-e.ready:
			case <-ctx.Done():
				c.giveBack(e)
				return nil, ctx.Err()
			}
			if e.err != nil {
				return nil, e.err
			}
		}
		return &Lease[H]{cache: c, entry: e}, nil
	}

	e := &entry[H]{
		key:      key,
		ready:    make(chan struct{}),
		loading:  true,
		borrows:  1,
		lastUsed: c.now(),
	}
	c.entries[key] = e
	c.mu.Unlock()

	start := time.Now()
	h, err := c.loadEntry(key)

	c.mu.Lock()
	e.loading = false
	if err != nil {
		e.err = err
		if c.entries[key] == e {
			delete(c.entries, key)
		}
		close(e.ready)
		c.mu.Unlock()
		log.Errorf("model load %s: %v", key, err)
		return nil, err
	}
	e.handle = h
	e.lastUsed = c.now()
	close(e.ready)
	c.mu.Unlock()

	log.ModelLoaded(key.ID, key.Accel, time.Since(start))
	return &Lease[H]{cache: c, entry: e}, nil
}

func (c *Cache[H]) loadEntry(key Key) (H, error) {
	var zero H
	path, err := c.resolve(key.ID)
	if err != nil {
		return zero, err
	}
	h, err := c.load(path, key.Accel)
	if err != nil {
		if errors.Is(err, ErrModelLoadFailure) {
			return zero, err
		}
		return zero, fmt.Errorf("%w: %s: %w", ErrModelLoadFailure, key, err)
	}
	return h, nil
}

// Release returns a lease to the cache. Equivalent to lease.Release().
func (c *Cache[H]) Release(l *Lease[H]) {
	if l != nil {
		l.Release()
	}
}

// giveBack drops one borrow. After Close the last borrower unloads the entry.
func (c *Cache[H]) giveBack(e *entry[H]) {
	c.mu.Lock()
	if e.borrows > 0 {
		e.borrows--
	}
	now := c.now()
	e.lastUsed = now
	var victims []*entry[H]
	if c.closed && e.borrows == 0 && !e.loading && c.entries[e.key] == e {
		delete(c.entries, e.key)
		victims = append(victims, e)
	}
	c.mu.Unlock()

	if err := c.unload(victims, "shutdown", now); err != nil {
		log.Warnf("closing model: %v", err)
	}
}

// Evict unloads every variant of id. It fails with ErrInUse, leaving all
// entries in place, if any of them is borrowed or still loading.
func (c *Cache[H]) Evict(id string) error {
	c.mu.Lock()
	var victims []*entry[H]
	for k, e := range c.entries {
		if k.ID != id {
			continue
		}
		if e.loading || e.borrows > 0 {
			c.mu.Unlock()
			return fmt.Errorf("%w: %s has %d borrower(s)", ErrInUse, k, e.borrows)
		}
		victims = append(victims, e)
	}
	for _, e := range victims {
		delete(c.entries, e.key)
	}
	now := c.now()
	c.mu.Unlock()

	return c.unload(victims, "manual", now)
}

// Reclaim unloads unborrowed entries idle for at least the idle timeout and
// returns how many were unloaded.
func (c *Cache[H]) Reclaim(now time.Time) int {
	c.mu.Lock()
	var victims []*entry[H]
	for k, e := range c.entries {
		if e.loading || e.borrows > 0 {
			continue
		}
		if now.Sub(e.lastUsed) >= c.idle {
			victims = append(victims, e)
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()

	if err := c.unload(victims, "idle", now); err != nil {
		log.Warnf("reclaim: %v", err)
	}
	return len(victims)
}

// RunReclaimer calls Reclaim every interval until ctx is done.
func (c *Cache[H]) RunReclaimer(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultReclaimInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Reclaim(c.now())
		}
	}
}

type EntryInfo struct {
	Key      Key
	Borrows  int
	LastUsed time.Time
	Loaded   bool
}

func (c *Cache[H]) Snapshot() []EntryInfo {
	c.mu.Lock()
	out := make([]EntryInfo, 0, len(c.entries))
	for k, e := range c.entries {
		out = append(out, EntryInfo{Key: k, Borrows: e.borrows, LastUsed: e.lastUsed, Loaded: !e.loading})
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

// Close refuses further acquires and unloads every entry nobody holds.
// Borrowed or loading entries are unloaded when their last lease is released.
func (c *Cache[H]) Close() error {
	c.mu.Lock()
	c.closed = true
	var victims []*entry[H]
	for k, e := range c.entries {
		if e.loading || e.borrows > 0 {
			continue
		}
		victims = append(victims, e)
		delete(c.entries, k)
	}
	now := c.now()
	c.mu.Unlock()

	return c.unload(victims, "shutdown", now)
}

func (c *Cache[H]) unload(victims []*entry[H], reason string, now time.Time) error {
	var errs []error
	for _, e := range victims {
		if err := e.handle.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", e.key, err))
		}
		log.ModelEvicted(e.key.ID, e.key.Accel, reason, now.Sub(e.lastUsed))
	}
	return errors.Join(errs...)
}
