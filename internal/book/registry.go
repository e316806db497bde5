package book

import (
	"sync"

	"github.com/alanyoungcy/opiniontrade/internal/domain"
)

// Registry maps market ids to their order books behind one process-wide
// reader/writer lock. The exclusive accessors hold the lock across the
// caller's entire callback, including any persistence it performs, so two
// matching operations never interleave and a book mutation becomes visible
// only together with its durable effects.
type Registry struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{books: make(map[string]*OrderBook)}
}

// Insert creates an empty book for a market. Existing entries are left
// untouched so a duplicate create cannot wipe resting orders.
func (r *Registry) Insert(marketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[marketID]; !ok {
		r.books[marketID] = NewOrderBook()
	}
}

// Snapshot returns a deep copy of a market's book under a shared lock.
// The second result is false when the market has no registry entry, which
// means the market is unknown or already resolved.
func (r *Registry) Snapshot(marketID string) (*OrderBook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[marketID]
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

// Update runs fn with the market's current book under the exclusive lock.
// When fn returns a non-nil replacement book and no error, the replacement
// is installed; on error the registry keeps the original book. A missing
// entry yields domain.ErrMarketNotFound without invoking fn.
func (r *Registry) Update(marketID string, fn func(b *OrderBook) (*OrderBook, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.books[marketID]
	if !ok {
		return domain.ErrMarketNotFound
	}

	replacement, err := fn(b)
	if err != nil {
		return err
	}
	if replacement != nil {
		r.books[marketID] = replacement
	}
	return nil
}

// Remove runs fn with the market's book under the exclusive lock and deletes
// the entry when fn succeeds. Resolution uses this to release resting escrow
// and retire the book in one critical section; on error the entry survives
// for a retry. A missing entry yields domain.ErrMarketNotFound.
func (r *Registry) Remove(marketID string, fn func(b *OrderBook) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.books[marketID]
	if !ok {
		return domain.ErrMarketNotFound
	}
	if err := fn(b); err != nil {
		return err
	}
	delete(r.books, marketID)
	return nil
}

// Len returns the number of registered markets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.books)
}
