package domain

import "time"

// PriceScale is the fixed denominator of the venue's price domain. Prices are
// integers in thousandths: a Favour order at 600 pays 0.600 per contract and
// its Against counterpart pays the complementary 0.400.
const PriceScale int64 = 1000

// Market is a binary question users trade on. Result stays nil while the
// market is open and is set exactly once at resolution.
type Market struct {
	ID          string     `json:"id"`
	Question    string     `json:"question"`
	Description string     `json:"description,omitempty"`
	Result      *bool      `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Resolved reports whether the market has a declared outcome.
func (m Market) Resolved() bool {
	return m.Result != nil
}

// MarketSummary is a market decorated with the current best resting prices,
// used by the public market listing.
type MarketSummary struct {
	Market
	BestFavourPrice  int64 `json:"best_favour_price"`
	BestAgainstPrice int64 `json:"best_against_price"`
}
