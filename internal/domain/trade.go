package domain

import "time"

// Trade is an immutable fill between a Favour party and an Against party.
// FavourPrice + AgainstPrice == PriceScale for every trade; the Settled flag
// flips exactly once during market resolution.
type Trade struct {
	ID            string    `json:"id"`
	MarketID      string    `json:"market_id"`
	FavourUserID  string    `json:"favour_user_id"`
	AgainstUserID string    `json:"against_user_id"`
	FavourPrice   int64     `json:"favour_price"`
	AgainstPrice  int64     `json:"against_price"`
	Quantity      int64     `json:"quantity"`
	Settled       bool      `json:"settled"`
	CreatedAt     time.Time `json:"created_at"`
}

// Payout is the amount credited to the winning party at settlement:
// the full contract value for every unit of the trade.
func (t Trade) Payout() int64 {
	return (t.FavourPrice + t.AgainstPrice) * t.Quantity
}

// Winner returns the winning and losing party with their staked escrow for
// the given market outcome.
func (t Trade) Winner(outcome bool) (winnerID, loserID string, winnerStake, loserStake int64) {
	if outcome {
		return t.FavourUserID, t.AgainstUserID, t.FavourPrice * t.Quantity, t.AgainstPrice * t.Quantity
	}
	return t.AgainstUserID, t.FavourUserID, t.AgainstPrice * t.Quantity, t.FavourPrice * t.Quantity
}
