package domain

import "context"

// MarketStore persists market metadata and the resolution state.
type MarketStore interface {
	Create(ctx context.Context, m Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	ListOpen(ctx context.Context) ([]Market, error)
	// SetResult records the declared outcome. It fails with ErrMarketResolved
	// if a result is already recorded.
	SetResult(ctx context.Context, id string, outcome bool) error
}

// TradeStore persists trade fills and drives per-trade settlement.
type TradeStore interface {
	// RecordFills inserts the trades and applies the accompanying escrow
	// releases in one transaction. Either everything commits or nothing does.
	RecordFills(ctx context.Context, trades []Trade, releases []EscrowRelease) error
	ListByMarket(ctx context.Context, marketID string) ([]Trade, error)
	// ListByUser returns trades the user participated in. When active is
	// non-nil the result is filtered to open (true) or resolved (false)
	// markets.
	ListByUser(ctx context.Context, userID string, active *bool) ([]Trade, error)
	// Settle credits the payout to the winner and clears both parties' staked
	// escrow in one transaction that also marks the trade settled. It returns
	// false without touching balances when the trade was already settled, so
	// re-running a resolution never credits a trade twice.
	Settle(ctx context.Context, tradeID, winnerID, loserID string, winnerStake, loserStake, payout int64) (bool, error)
}

// LedgerStore is the escrow ledger: every method is one atomic statement
// against durable storage.
type LedgerStore interface {
	// Hold moves amount from available to held. Fails with
	// ErrInsufficientFunds when the user's available balance is short.
	Hold(ctx context.Context, userID string, amount int64) error
	// Release moves amount from held back to available.
	Release(ctx context.Context, userID string, amount int64) error
	// ReleaseAll applies every release in one transaction. Used by market
	// resolution to free all resting-order escrow atomically.
	ReleaseAll(ctx context.Context, releases []EscrowRelease) error
	// Credit adds amount to the user's available balance, creating the
	// ledger row if needed.
	Credit(ctx context.Context, userID string, amount int64) error
	Balance(ctx context.Context, userID string) (Balance, error)
}
