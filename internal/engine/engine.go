// Package engine implements price-priority matching for binary markets.
//
// An incoming order at price P crosses any resting order on the opposite side
// whose price is at least 1000-P. Both sides run through the same match
// function: only the favour/against role assignment differs, so the two
// paths cannot drift apart.
package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/opiniontrade/internal/book"
	"github.com/alanyoungcy/opiniontrade/internal/domain"
)

// Result is the outcome of matching one incoming order.
type Result struct {
	// Trades are the fills produced, in match order.
	Trades []domain.Trade
	// Releases are the incoming user's price-improvement escrow corrections,
	// one per trade: the difference between the price the user was willing to
	// pay and the price the fill actually executed at.
	Releases []domain.EscrowRelease
	// Leftover is the unfilled quantity. When positive, Resting is the order
	// that was inserted into the book.
	Leftover int64
	Resting  *domain.Order
}

// Match runs the incoming order against b, mutating it in place: crossed
// resting orders are reduced or removed and any leftover quantity is inserted
// as a new resting order. Callers are expected to hold the registry's
// exclusive lock and to pass a clone when persistence may still fail.
//
// Fills execute at the resting order's posted price. The incoming user pays
// the complement of that price, which is never worse than the price they
// asked for (price improvement). Resting orders by the same user are skipped,
// not removed.
func Match(b *book.OrderBook, marketID string, incoming domain.Order) Result {
	res := Result{Leftover: incoming.Quantity}

	opposite := b.Side(incoming.Side.Opposite())
	threshold := domain.PriceScale - incoming.Price

	consumed := false
	// Scan from the tail: the sequence is ascending by price, so the tail is
	// the best candidate and the first price below the threshold ends the
	// scan for good.
	for i := len(*opposite) - 1; i >= 0 && res.Leftover > 0; i-- {
		candidate := &(*opposite)[i]
		if candidate.Price < threshold {
			break
		}
		if candidate.UserID == incoming.UserID {
			continue
		}

		fill := candidate.Quantity
		if res.Leftover < fill {
			fill = res.Leftover
		}

		trade := newTrade(marketID, incoming, *candidate, fill)
		res.Trades = append(res.Trades, trade)

		// The incoming side executed at the complement of the candidate's
		// posted price; refund the difference against the requested price.
		executed := domain.PriceScale - candidate.Price
		if over := (incoming.Price - executed) * fill; over > 0 {
			res.Releases = append(res.Releases, domain.EscrowRelease{
				UserID: incoming.UserID,
				Amount: over,
			})
		}

		candidate.Quantity -= fill
		res.Leftover -= fill
		if candidate.Quantity == 0 {
			consumed = true
		}
	}

	if consumed {
		b.Compact(incoming.Side.Opposite())
	}

	if res.Leftover > 0 {
		resting := domain.Order{
			UserID:   incoming.UserID,
			Side:     incoming.Side,
			Price:    incoming.Price,
			Quantity: res.Leftover,
		}
		b.Insert(resting)
		res.Resting = &resting
	}

	return res
}

// newTrade builds a fill between the incoming order and a resting candidate,
// priced at the candidate's posted price.
func newTrade(marketID string, incoming, candidate domain.Order, quantity int64) domain.Trade {
	t := domain.Trade{
		ID:        uuid.New().String(),
		MarketID:  marketID,
		Quantity:  quantity,
		CreatedAt: time.Now().UTC(),
	}
	if incoming.Side == domain.SideAgainst {
		t.FavourUserID = candidate.UserID
		t.FavourPrice = candidate.Price
		t.AgainstUserID = incoming.UserID
		t.AgainstPrice = domain.PriceScale - candidate.Price
	} else {
		t.FavourUserID = incoming.UserID
		t.FavourPrice = domain.PriceScale - candidate.Price
		t.AgainstUserID = candidate.UserID
		t.AgainstPrice = candidate.Price
	}
	return t
}
