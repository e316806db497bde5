package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/opiniontrade/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketSelectCols = `id, question, COALESCE(description, ''), result, created_at, resolved_at`

// Create inserts a new market row.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO markets (id, question, description, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4)`,
		m.ID, m.Question, m.Description, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create market: %w", err)
	}
	return nil
}

// GetByID fetches one market. Returns domain.ErrMarketNotFound when absent.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	var m domain.Market
	err := s.pool.QueryRow(ctx,
		`SELECT `+marketSelectCols+` FROM markets WHERE id = $1`, id,
	).Scan(&m.ID, &m.Question, &m.Description, &m.Result, &m.CreatedAt, &m.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Market{}, domain.ErrMarketNotFound
	}
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// ListOpen returns markets without a declared result, newest first.
func (s *MarketStore) ListOpen(ctx context.Context) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketSelectCols+` FROM markets WHERE result IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		var m domain.Market
		if err := rows.Scan(&m.ID, &m.Question, &m.Description, &m.Result, &m.CreatedAt, &m.ResolvedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// SetResult records the market outcome. The guard on result IS NULL makes
// the statement a no-op for already-resolved markets, which is surfaced as
// domain.ErrMarketResolved.
func (s *MarketStore) SetResult(ctx context.Context, id string, outcome bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE markets SET result = $2, resolved_at = NOW()
		WHERE id = $1 AND result IS NULL`,
		id, outcome,
	)
	if err != nil {
		return fmt.Errorf("postgres: set market result %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrMarketResolved
	}
	return nil
}

var _ domain.MarketStore = (*MarketStore)(nil)
