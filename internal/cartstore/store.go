// Package cartstore keeps the open point-of-sale carts in memory.
package cartstore

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/erp-pos/internal/domain/cart"
)

// ErrNotFound is returned for unknown or evicted cart ids.
var ErrNotFound = errors.New("cart not found")

// entry guards one cart. touched is read by the sweeper under Store.mu and
// written under entry.mu, so it is only updated while holding both.
type entry struct {
	mu      sync.Mutex
	cart    *cart.Cart
	touched time.Time
}

// Store is a registry of carts keyed by id. Each cart has its own lock;
// operations on different carts never contend.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	carts map[string]*entry
}

// New creates a Store. Carts untouched for longer than ttl are removed by
// Sweep; a zero ttl disables eviction.
func New(ttl time.Duration) *Store {
	return &Store{
		ttl:   ttl,
		now:   time.Now,
		carts: make(map[string]*entry),
	}
}

// Create registers an empty cart and returns its id.
func (s *Store) Create() string {
	id := uuid.New().String()
	e := &entry{cart: cart.New(), touched: s.now()}

	s.mu.Lock()
	s.carts[id] = e
	s.mu.Unlock()

	return id
}

// Delete removes the cart. Deleting an unknown id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.carts, id)
	s.mu.Unlock()
}

// Len reports the number of open carts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.carts)
}

// Update runs fn with exclusive access to the cart. The cart must not be
// retained after fn returns.
func (s *Store) Update(id string, fn func(c *cart.Cart) error) error {
	e, err := s.get(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s.touch(e)
	return fn(e.cart)
}

// Snapshot returns a copy of the cart's state.
func (s *Store) Snapshot(id string) (cart.Snapshot, error) {
	var snap cart.Snapshot
	err := s.Update(id, func(c *cart.Cart) error {
		snap = c.Snapshot()
		return nil
	})
	return snap, err
}

// Handle returns a checkout handle for the cart.
func (s *Store) Handle(id string) (*Handle, error) {
	e, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return &Handle{store: s, e: e}, nil
}

// Sweep removes carts idle for longer than the ttl and returns how many
// were removed.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.carts {
		if e.touched.Before(cutoff) {
			delete(s.carts, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled. onSweep, when not nil,
// receives the number of carts removed by each non-empty sweep.
func (s *Store) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}

func (s *Store) get(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.carts[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// touch must be called with e.mu held.
func (s *Store) touch(e *entry) {
	now := s.now()
	s.mu.Lock()
	e.touched = now
	s.mu.Unlock()
}

// Handle gives a checkout access to one cart. Each call takes the cart lock
// only for its own duration, so the cart stays editable while a sale is
// being persisted.
type Handle struct {
	store *Store
	e     *entry
}

// Snapshot returns a copy of the cart's state.
func (h *Handle) Snapshot() cart.Snapshot {
	h.e.mu.Lock()
	defer h.e.mu.Unlock()
	h.store.touch(h.e)
	return h.e.cart.Snapshot()
}

// Clear empties the cart and resets its adjustments.
func (h *Handle) Clear() {
	h.e.mu.Lock()
	defer h.e.mu.Unlock()
	h.store.touch(h.e)
	h.e.cart.Clear()
}
