// Package book holds the in-memory order books and the process-wide registry
// that owns them. Each market has one OrderBook with two price-sorted resting
// sequences; all access goes through the Registry's locking accessors.
package book

import (
	"sort"
	"time"

	"github.com/alanyoungcy/opiniontrade/internal/domain"
)

// OrderBook is the resting state of one market. Both sequences are kept
// sorted ascending by price, so the best available price for a side is the
// last element. The matching engine relies on that ordering to terminate a
// scan at the first candidate below the match threshold.
type OrderBook struct {
	Favour  []domain.Order `json:"favour"`
	Against []domain.Order `json:"against"`
}

// NewOrderBook returns an empty book. An empty book is a meaningful state:
// it marks a market that exists but has no resting interest yet, distinct
// from a market absent from the registry entirely.
func NewOrderBook() *OrderBook {
	return &OrderBook{}
}

// Side returns a pointer to the resting sequence for s.
func (b *OrderBook) Side(s domain.Side) *[]domain.Order {
	if s == domain.SideFavour {
		return &b.Favour
	}
	return &b.Against
}

// Insert adds a resting order to its side and restores the ascending price
// order. Insertion is stable, so orders at the same price keep arrival order.
func (b *OrderBook) Insert(o domain.Order) {
	side := b.Side(o.Side)
	*side = append(*side, o)
	sort.SliceStable(*side, func(i, j int) bool {
		return (*side)[i].Price < (*side)[j].Price
	})
}

// Compact removes fully consumed orders from a side, preserving the order of
// the remaining entries.
func (b *OrderBook) Compact(s domain.Side) {
	side := b.Side(s)
	kept := (*side)[:0]
	for _, o := range *side {
		if o.Quantity > 0 {
			kept = append(kept, o)
		}
	}
	*side = kept
}

// BestPrice returns the highest resting price on a side, if any.
func (b *OrderBook) BestPrice(s domain.Side) (int64, bool) {
	side := *b.Side(s)
	if len(side) == 0 {
		return 0, false
	}
	return side[len(side)-1].Price, true
}

// Sorted reports whether both sides honor the ascending price invariant.
func (b *OrderBook) Sorted() bool {
	for _, side := range [][]domain.Order{b.Favour, b.Against} {
		for i := 1; i < len(side); i++ {
			if side[i-1].Price > side[i].Price {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy of the book. The matching engine works on a
// clone so a failed persistence step leaves the registry's book untouched.
func (b *OrderBook) Clone() *OrderBook {
	c := &OrderBook{}
	if len(b.Favour) > 0 {
		c.Favour = append(make([]domain.Order, 0, len(b.Favour)), b.Favour...)
	}
	if len(b.Against) > 0 {
		c.Against = append(make([]domain.Order, 0, len(b.Against)), b.Against...)
	}
	return c
}

// Depth aggregates the book per price level for public display. User ids are
// not exposed in the depth view.
func (b *OrderBook) Depth(marketID string) domain.BookDepth {
	return domain.BookDepth{
		MarketID:  marketID,
		Favour:    aggregate(b.Favour),
		Against:   aggregate(b.Against),
		Timestamp: time.Now().UTC(),
	}
}

func aggregate(side []domain.Order) []domain.PriceLevel {
	var levels []domain.PriceLevel
	for _, o := range side {
		if n := len(levels); n > 0 && levels[n-1].Price == o.Price {
			levels[n-1].Quantity += o.Quantity
			continue
		}
		levels = append(levels, domain.PriceLevel{Price: o.Price, Quantity: o.Quantity})
	}
	return levels
}
