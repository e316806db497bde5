package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/opiniontrade/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL. Every balance
// movement is a single conditional UPDATE so the availability checks and the
// mutation are one atomic statement.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

const holdSQL = `
	UPDATE balances
	SET available = available - $2, held = held + $2
	WHERE user_id = $1 AND available >= $2`

const releaseSQL = `
	UPDATE balances
	SET held = held - $2, available = available + $2
	WHERE user_id = $1 AND held >= $2`

// Hold escrows amount from the user's available funds. The statement refuses
// to drive available negative; a zero-row result distinguishes a short
// balance from an unknown user.
func (s *LedgerStore) Hold(ctx context.Context, userID string, amount int64) error {
	tag, err := s.pool.Exec(ctx, holdSQL, userID, amount)
	if err != nil {
		return fmt.Errorf("postgres: hold %d for %s: %w", amount, userID, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Balance(ctx, userID); err != nil {
			return err
		}
		return domain.ErrInsufficientFunds
	}
	return nil
}

// Release moves amount from held back to available.
func (s *LedgerStore) Release(ctx context.Context, userID string, amount int64) error {
	tag, err := s.pool.Exec(ctx, releaseSQL, userID, amount)
	if err != nil {
		return fmt.Errorf("postgres: release %d for %s: %w", amount, userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: release %d for %s: %w", amount, userID, domain.ErrInconsistentBook)
	}
	return nil
}

// ReleaseAll applies every release in one transaction, so market resolution
// frees all resting escrow atomically or not at all.
func (s *LedgerStore) ReleaseAll(ctx context.Context, releases []domain.EscrowRelease) error {
	if len(releases) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin release batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range releases {
		tag, err := tx.Exec(ctx, releaseSQL, r.UserID, r.Amount)
		if err != nil {
			return fmt.Errorf("postgres: release %d for %s: %w", r.Amount, r.UserID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: release %d for %s: %w", r.Amount, r.UserID, domain.ErrInconsistentBook)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit release batch: %w", err)
	}
	return nil
}

// Credit adds amount to the user's available balance, creating the ledger
// row on first use.
func (s *LedgerStore) Credit(ctx context.Context, userID string, amount int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO balances (user_id, available) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET available = balances.available + $2`,
		userID, amount,
	)
	if err != nil {
		return fmt.Errorf("postgres: credit %d for %s: %w", amount, userID, err)
	}
	return nil
}

// Balance fetches a user's ledger position. Returns domain.ErrNotFound for
// unknown users.
func (s *LedgerStore) Balance(ctx context.Context, userID string) (domain.Balance, error) {
	var b domain.Balance
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, available, held FROM balances WHERE user_id = $1`, userID,
	).Scan(&b.UserID, &b.Available, &b.Held)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Balance{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Balance{}, fmt.Errorf("postgres: balance for %s: %w", userID, err)
	}
	return b, nil
}

var _ domain.LedgerStore = (*LedgerStore)(nil)
