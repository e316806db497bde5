package domain

import (
	"context"
	"time"
)

// PriceLevel is an aggregated price+quantity entry in a depth view.
type PriceLevel struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
}

// BookDepth is the public, per-price aggregated view of a market's book.
type BookDepth struct {
	MarketID  string       `json:"market_id"`
	Favour    []PriceLevel `json:"favour"`
	Against   []PriceLevel `json:"against"`
	Timestamp time.Time    `json:"timestamp"`
}

// MarketCache provides fast market metadata lookups.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, id string) (Market, error)
	Invalidate(ctx context.Context, id string) error
}

// BookCache stores the latest published depth view per market.
type BookCache interface {
	SetDepth(ctx context.Context, depth BookDepth) error
	GetDepth(ctx context.Context, marketID string) (BookDepth, error)
	Invalidate(ctx context.Context, marketID string) error
}

// StreamMessage is a single entry read from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// RateLimiter answers whether a keyed action is still within its quota for
// the current window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides pub/sub fan-out and durable streams for venue events
// (executed trades, book updates, market resolutions).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
