package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/opiniontrade/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, market_id, favour_user_id, against_user_id,
	favour_price, against_price, quantity, settled, created_at`

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(
			&t.ID, &t.MarketID, &t.FavourUserID, &t.AgainstUserID,
			&t.FavourPrice, &t.AgainstPrice, &t.Quantity, &t.Settled, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// RecordFills inserts the trades and applies the accompanying escrow
// releases in one transaction. The releases correct over-held escrow when a
// fill executed at a better price than the incoming order requested.
func (s *TradeStore) RecordFills(ctx context.Context, trades []domain.Trade, releases []domain.EscrowRelease) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin record fills: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertSQL = `
		INSERT INTO trades (
			id, market_id, favour_user_id, against_user_id,
			favour_price, against_price, quantity, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for i, t := range trades {
		if _, err := tx.Exec(ctx, insertSQL,
			t.ID, t.MarketID, t.FavourUserID, t.AgainstUserID,
			t.FavourPrice, t.AgainstPrice, t.Quantity, t.CreatedAt,
		); err != nil {
			return fmt.Errorf("postgres: insert trade %d: %w", i, err)
		}
	}

	for _, r := range releases {
		tag, err := tx.Exec(ctx, releaseSQL, r.UserID, r.Amount)
		if err != nil {
			return fmt.Errorf("postgres: fill release %d for %s: %w", r.Amount, r.UserID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: fill release %d for %s: %w", r.Amount, r.UserID, domain.ErrInconsistentBook)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit record fills: %w", err)
	}
	return nil
}

// ListByMarket returns all trades for a market in fill order.
func (s *TradeStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE market_id = $1 ORDER BY created_at`,
		marketID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for market %s: %w", marketID, err)
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

// ListByUser returns trades the user participated in, optionally filtered to
// open (active=true) or resolved (active=false) markets.
func (s *TradeStore) ListByUser(ctx context.Context, userID string, active *bool) ([]domain.Trade, error) {
	query := `SELECT t.id, t.market_id, t.favour_user_id, t.against_user_id,
		t.favour_price, t.against_price, t.quantity, t.settled, t.created_at
		FROM trades t JOIN markets m ON t.market_id = m.id
		WHERE (t.favour_user_id = $1 OR t.against_user_id = $1)`
	args := []any{userID}

	if active != nil {
		if *active {
			query += ` AND m.result IS NULL`
		} else {
			query += ` AND m.result IS NOT NULL`
		}
	}
	query += ` ORDER BY t.created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for user %s: %w", userID, err)
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

// Settle pays out one trade: it flips the settled flag, credits the payout to
// the winner, and clears both parties' staked escrow, all in one transaction.
// A trade that is already settled is skipped and reported as (false, nil),
// which makes re-running a resolution idempotent per trade.
func (s *TradeStore) Settle(ctx context.Context, tradeID, winnerID, loserID string, winnerStake, loserStake, payout int64) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("postgres: begin settle %s: %w", tradeID, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE trades SET settled = TRUE WHERE id = $1 AND NOT settled`, tradeID)
	if err != nil {
		return false, fmt.Errorf("postgres: mark trade %s settled: %w", tradeID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	// Both parties in one statement; sides differ so winner and loser are
	// always distinct users.
	tag, err = tx.Exec(ctx, `
		UPDATE balances SET
			available = available + CASE WHEN user_id = $1 THEN $5::bigint ELSE 0 END,
			held      = held - CASE WHEN user_id = $1 THEN $3::bigint ELSE $4::bigint END
		WHERE user_id IN ($1, $2)`,
		winnerID, loserID, winnerStake, loserStake, payout,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: settle balances for trade %s: %w", tradeID, err)
	}
	if tag.RowsAffected() != 2 {
		return false, fmt.Errorf("postgres: settle trade %s touched %d balances: %w",
			tradeID, tag.RowsAffected(), domain.ErrInconsistentBook)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("postgres: commit settle %s: %w", tradeID, err)
	}
	return true, nil
}

var _ domain.TradeStore = (*TradeStore)(nil)
