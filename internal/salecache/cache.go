// Package salecache caches the recent sales listing shown on the point of
// sale screen.
package salecache

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/erp-pos/internal/domain/sale"
)

var _ sale.CacheInvalidator = (*Cache)(nil)

// Lister loads recent sales.
type Lister interface {
	ListRecent(ctx context.Context, limit int) ([]sale.Record, error)
}

type item struct {
	records    []sale.Record
	generation uint64
	loadedAt   time.Time
}

// Cache memoizes ListRecent per limit. Entries expire after the ttl or on
// Invalidate, whichever comes first. Concurrent misses for the same limit
// share one load.
type Cache struct {
	src Lister
	ttl time.Duration
	now func() time.Time

	group singleflight.Group

	mu         sync.Mutex
	generation uint64
	items      map[int]item
}

// New creates a Cache over src. A zero ttl keeps entries until invalidated.
func New(src Lister, ttl time.Duration) *Cache {
	return &Cache{
		src:   src,
		ttl:   ttl,
		now:   time.Now,
		items: make(map[int]item),
	}
}

// ListRecent returns the newest limit sales, from cache when fresh. The
// returned slice belongs to the caller.
func (c *Cache) ListRecent(ctx context.Context, limit int) ([]sale.Record, error) {
	if records, ok := c.lookup(limit); ok {
		return records, nil
	}

	v, err, _ := c.group.Do(strconv.Itoa(limit), func() (any, error) {
		c.mu.Lock()
		gen := c.generation
		c.mu.Unlock()

		records, err := c.src.ListRecent(ctx, limit)
		if err != nil {
			return nil, errors.Wrap(err, "list recent sales")
		}

		c.mu.Lock()
		// A sale created during the load makes this result stale already.
		if gen == c.generation {
			c.items[limit] = item{records: records, generation: gen, loadedAt: c.now()}
		}
		c.mu.Unlock()
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	// Waiters coalesced by the group share one result; each gets its own copy.
	return slices.Clone(v.([]sale.Record)), nil
}

// Invalidate drops every cached listing.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.generation++
	clear(c.items)
	c.mu.Unlock()
}

func (c *Cache) lookup(limit int) ([]sale.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[limit]
	if !ok || it.generation != c.generation {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(it.loadedAt) > c.ttl {
		delete(c.items, limit)
		return nil, false
	}
	return slices.Clone(it.records), true
}
