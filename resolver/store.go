package resolver

import (
	"context"
	"sync"
	"time"
)

// Loader fetches a fresh copy of a store's value.
type Loader[T any] func(ctx context.Context) (T, error)

// Store caches a single remotely loaded value with a TTL and notifies
// subscribers whenever a new value is loaded.
type Store[T any] struct {
	load Loader[T]
	ttl  time.Duration
	now  func() time.Time

	loadMu sync.Mutex // serializes loads

	mu        sync.RWMutex
	value     T
	loaded    bool
	expired   bool
	fetchedAt time.Time
	subs      map[int]func(T)
	nextID    int
}

// NewStore returns a store that reloads after ttl. A zero ttl never expires.
func NewStore[T any](load Loader[T], ttl time.Duration) *Store[T] {
	return &Store[T]{
		load: load,
		ttl:  ttl,
		now:  time.Now,
		subs: make(map[int]func(T)),
	}
}

// Static returns a store that always holds v.
func Static[T any](v T) *Store[T] {
	return NewStore[T](func(context.Context) (T, error) { return v, nil }, 0)
}

// Init loads the value unconditionally.
func (s *Store[T]) Init(ctx context.Context) error {
	_, err := s.Reload(ctx)
	return err
}

// Get returns the cached value, stale or not, and whether one was ever loaded.
func (s *Store[T]) Get() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.loaded
}

func (s *Store[T]) fresh() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loaded && !s.expired && (s.ttl == 0 || s.now().Sub(s.fetchedAt) < s.ttl) {
		return s.value, true
	}
	var zero T
	return zero, false
}

// GetOrLoad returns the cached value or loads it when missing or expired.
func (s *Store[T]) GetOrLoad(ctx context.Context) (T, error) {
	if v, ok := s.fresh(); ok {
		return v, nil
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	// Double-check after acquiring the load lock.
	if v, ok := s.fresh(); ok {
		return v, nil
	}
	return s.reloadLocked(ctx)
}

// Reload fetches a new value regardless of the TTL.
func (s *Store[T]) Reload(ctx context.Context) (T, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	return s.reloadLocked(ctx)
}

func (s *Store[T]) reloadLocked(ctx context.Context) (T, error) {
	val, err := s.load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	s.mu.Lock()
	s.value = val
	s.loaded = true
	s.expired = false
	s.fetchedAt = s.now()
	subs := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(val)
	}
	return val, nil
}

// Subscribe registers fn to be called with every newly loaded value. The
// returned func removes the subscription.
func (s *Store[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Invalidate expires the cached value; the next GetOrLoad reloads it. Get
// keeps returning the old value until then.
func (s *Store[T]) Invalidate() {
	s.mu.Lock()
	s.expired = true
	s.mu.Unlock()
}
