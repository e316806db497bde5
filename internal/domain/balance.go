package domain

// Balance is a user's ledger position. Available funds can back new orders;
// Held funds are escrowed against resting orders and unsettled trades.
// Neither amount may go negative.
type Balance struct {
	UserID    string `json:"user_id"`
	Available int64  `json:"available"`
	Held      int64  `json:"held"`
}

// EscrowRelease moves Amount from a user's held funds back to available.
// Releases are produced by price-improvement corrections on fills and by
// market resolution freeing resting orders.
type EscrowRelease struct {
	UserID string
	Amount int64
}
