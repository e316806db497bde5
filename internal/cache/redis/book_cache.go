package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/opiniontrade/internal/domain"
)

const defaultBookTTL = time.Minute

// BookCache implements domain.BookCache with JSON depth snapshots under
// "book:{market_id}" keys. The registry stays the source of truth; the cache
// only serves the public depth feed.
type BookCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBookCache creates a BookCache backed by the given Client. A zero ttl
// falls back to the 1-minute default.
func NewBookCache(c *Client, ttl time.Duration) *BookCache {
	if ttl <= 0 {
		ttl = defaultBookTTL
	}
	return &BookCache{rdb: c.Underlying(), ttl: ttl}
}

func bookKey(marketID string) string { return "book:" + marketID }

// SetDepth stores the latest depth view for a market.
func (bc *BookCache) SetDepth(ctx context.Context, depth domain.BookDepth) error {
	data, err := json.Marshal(depth)
	if err != nil {
		return fmt.Errorf("redis: marshal depth %s: %w", depth.MarketID, err)
	}
	if err := bc.rdb.Set(ctx, bookKey(depth.MarketID), data, bc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set depth %s: %w", depth.MarketID, err)
	}
	return nil
}

// GetDepth retrieves the cached depth view. Returns domain.ErrNotFound on a
// cache miss.
func (bc *BookCache) GetDepth(ctx context.Context, marketID string) (domain.BookDepth, error) {
	data, err := bc.rdb.Get(ctx, bookKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.BookDepth{}, domain.ErrNotFound
		}
		return domain.BookDepth{}, fmt.Errorf("redis: get depth %s: %w", marketID, err)
	}

	var depth domain.BookDepth
	if err := json.Unmarshal(data, &depth); err != nil {
		return domain.BookDepth{}, fmt.Errorf("redis: unmarshal depth %s: %w", marketID, err)
	}
	return depth, nil
}

// Invalidate drops the cached depth for a market.
func (bc *BookCache) Invalidate(ctx context.Context, marketID string) error {
	if err := bc.rdb.Del(ctx, bookKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate depth %s: %w", marketID, err)
	}
	return nil
}

var _ domain.BookCache = (*BookCache)(nil)
