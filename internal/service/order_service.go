// Package service orchestrates the venue's core operations: order placement
// with escrow, market lifecycle, and resolution settlement.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/opiniontrade/internal/book"
	"github.com/alanyoungcy/opiniontrade/internal/domain"
	"github.com/alanyoungcy/opiniontrade/internal/engine"
)

// Pub/sub channels and streams carrying venue events.
const (
	ChannelTrades  = "trades"
	ChannelBooks   = "books"
	ChannelMarkets = "markets"
	StreamTrades   = "stream:trades"
)

// PlaceOrderResult is the outcome of one order placement.
type PlaceOrderResult struct {
	Trades  []domain.Trade `json:"trades"`
	Resting *domain.Order  `json:"resting,omitempty"`
	// Leftover is the quantity that did not fill immediately. It equals the
	// resting order's quantity when a resting order was created.
	Leftover int64 `json:"leftover"`
}

// OrderService handles order placement end to end: validation, escrow hold,
// matching, fill persistence, and the compensating release when persistence
// fails.
type OrderService struct {
	markets  domain.MarketStore
	trades   domain.TradeStore
	ledger   domain.LedgerStore
	registry *book.Registry
	limits   domain.OrderLimits
	books    domain.BookCache
	bus      domain.SignalBus
	logger   *slog.Logger
}

// NewOrderService creates an OrderService with all required dependencies.
// The book cache and signal bus may be nil; publication is then skipped.
func NewOrderService(
	markets domain.MarketStore,
	trades domain.TradeStore,
	ledger domain.LedgerStore,
	registry *book.Registry,
	limits domain.OrderLimits,
	books domain.BookCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		markets:  markets,
		trades:   trades,
		ledger:   ledger,
		registry: registry,
		limits:   limits,
		books:    books,
		bus:      bus,
		logger:   logger.With(slog.String("component", "order_service")),
	}
}

// PlaceOrder places an order on a market.
//
// The escrow hold is taken before matching; the registry's exclusive lock is
// then held across matching AND fill persistence, so the in-memory book only
// ever reflects fills that are durable. On a failed persistence the book is
// left untouched and the full hold is released as compensation.
func (s *OrderService) PlaceOrder(ctx context.Context, marketID string, order domain.Order) (PlaceOrderResult, error) {
	if err := s.limits.Check(order); err != nil {
		return PlaceOrderResult{}, fmt.Errorf("order_service: validate: %w", err)
	}

	// Fail fast on unknown or resolved markets before touching balances.
	market, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return PlaceOrderResult{}, fmt.Errorf("order_service: load market: %w", err)
	}
	if market.Resolved() {
		return PlaceOrderResult{}, fmt.Errorf("order_service: market %s: %w", marketID, domain.ErrMarketResolved)
	}

	hold := order.Cost()
	if err := s.ledger.Hold(ctx, order.UserID, hold); err != nil {
		return PlaceOrderResult{}, fmt.Errorf("order_service: hold escrow: %w", err)
	}

	var (
		result PlaceOrderResult
		depth  domain.BookDepth
	)
	err = s.registry.Update(marketID, func(current *book.OrderBook) (*book.OrderBook, error) {
		// Match on a clone so a failed commit leaves the live book intact.
		working := current.Clone()
		matched := engine.Match(working, marketID, order)

		var filled int64
		for _, t := range matched.Trades {
			filled += t.Quantity
		}
		if filled+matched.Leftover != order.Quantity {
			return nil, fmt.Errorf("order_service: quantity conservation broken (filled %d, leftover %d, placed %d): %w",
				filled, matched.Leftover, order.Quantity, domain.ErrInconsistentBook)
		}

		if err := s.trades.RecordFills(ctx, matched.Trades, matched.Releases); err != nil {
			return nil, fmt.Errorf("order_service: persist fills: %w", err)
		}

		result = PlaceOrderResult{
			Trades:   matched.Trades,
			Resting:  matched.Resting,
			Leftover: matched.Leftover,
		}
		depth = working.Depth(marketID)
		return working, nil
	})
	if err != nil {
		// The hold is orphaned: nothing durable happened, so give it back.
		// A failed compensation must surface, not vanish.
		if relErr := s.ledger.Release(ctx, order.UserID, hold); relErr != nil {
			s.logger.ErrorContext(ctx, "compensating release failed",
				slog.String("market_id", marketID),
				slog.String("user_id", order.UserID),
				slog.Int64("amount", hold),
				slog.String("error", relErr.Error()),
			)
			return PlaceOrderResult{}, errors.Join(err, fmt.Errorf("order_service: compensating release: %w", relErr))
		}
		return PlaceOrderResult{}, err
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.String("market_id", marketID),
		slog.String("user_id", order.UserID),
		slog.String("side", string(order.Side)),
		slog.Int64("price", order.Price),
		slog.Int64("quantity", order.Quantity),
		slog.Int("trades", len(result.Trades)),
		slog.Int64("leftover", result.Leftover),
	)

	s.publish(ctx, result.Trades, depth)
	return result, nil
}

// OrderBook returns a read-only snapshot of a market's book. A market with
// no registry entry is unknown or already resolved.
func (s *OrderService) OrderBook(ctx context.Context, marketID string) (*book.OrderBook, error) {
	snapshot, ok := s.registry.Snapshot(marketID)
	if !ok {
		return nil, fmt.Errorf("order_service: book for %s: %w", marketID, domain.ErrMarketNotFound)
	}
	return snapshot, nil
}

// Depth returns the aggregated depth view, preferring the cache and falling
// back to the live registry.
func (s *OrderService) Depth(ctx context.Context, marketID string) (domain.BookDepth, error) {
	if s.books != nil {
		if depth, err := s.books.GetDepth(ctx, marketID); err == nil {
			return depth, nil
		}
	}
	snapshot, ok := s.registry.Snapshot(marketID)
	if !ok {
		return domain.BookDepth{}, fmt.Errorf("order_service: depth for %s: %w", marketID, domain.ErrMarketNotFound)
	}
	return snapshot.Depth(marketID), nil
}

// publish pushes trade events and the fresh depth view out to the bus and
// cache. Failures here never fail the placement; they are logged and the
// durable state stays authoritative.
func (s *OrderService) publish(ctx context.Context, trades []domain.Trade, depth domain.BookDepth) {
	if s.books != nil {
		if err := s.books.SetDepth(ctx, depth); err != nil {
			s.logger.WarnContext(ctx, "depth cache update failed", slog.String("error", err.Error()))
		}
	}
	if s.bus == nil {
		return
	}

	if payload, err := json.Marshal(depth); err == nil {
		if err := s.bus.Publish(ctx, ChannelBooks, payload); err != nil {
			s.logger.WarnContext(ctx, "book publish failed", slog.String("error", err.Error()))
		}
	}
	for _, t := range trades {
		payload, err := json.Marshal(t)
		if err != nil {
			continue
		}
		if err := s.bus.Publish(ctx, ChannelTrades, payload); err != nil {
			s.logger.WarnContext(ctx, "trade publish failed", slog.String("error", err.Error()))
		}
		if err := s.bus.StreamAppend(ctx, StreamTrades, payload); err != nil {
			s.logger.WarnContext(ctx, "trade stream append failed", slog.String("error", err.Error()))
		}
	}
}
