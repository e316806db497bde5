package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/opiniontrade/internal/book"
	"github.com/alanyoungcy/opiniontrade/internal/domain"
	"github.com/alanyoungcy/opiniontrade/internal/notify"
)

// MarketService manages market creation and lookup. Creating a market also
// registers its empty order book; an empty book marks a live market, a
// missing registry entry marks an unknown or resolved one.
type MarketService struct {
	markets  domain.MarketStore
	trades   domain.TradeStore
	ledger   domain.LedgerStore
	registry *book.Registry
	cache    domain.MarketCache
	bus      domain.SignalBus
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewMarketService creates a MarketService. Cache, bus and notifier may be
// nil; the corresponding side effects are then skipped.
func NewMarketService(
	markets domain.MarketStore,
	trades domain.TradeStore,
	ledger domain.LedgerStore,
	registry *book.Registry,
	cache domain.MarketCache,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets:  markets,
		trades:   trades,
		ledger:   ledger,
		registry: registry,
		cache:    cache,
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "market_service")),
	}
}

// Create opens a new market and registers its empty order book.
func (s *MarketService) Create(ctx context.Context, question, description string) (domain.Market, error) {
	if question == "" {
		return domain.Market{}, fmt.Errorf("market_service: empty question: %w", domain.ErrInvalidOrder)
	}

	market := domain.Market{
		ID:          uuid.New().String(),
		Question:    question,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.markets.Create(ctx, market); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create: %w", err)
	}
	s.registry.Insert(market.ID)

	if s.cache != nil {
		if err := s.cache.Set(ctx, market); err != nil {
			s.logger.WarnContext(ctx, "market cache set failed", slog.String("error", err.Error()))
		}
	}

	if s.bus != nil {
		if payload, err := json.Marshal(market); err == nil {
			if err := s.bus.Publish(ctx, ChannelMarkets, payload); err != nil {
				s.logger.WarnContext(ctx, "market publish failed", slog.String("error", err.Error()))
			}
		}
	}
	if s.notifier != nil {
		title := fmt.Sprintf("Market opened: %s", question)
		if err := s.notifier.Notify(ctx, notify.EventMarketCreated, title, market.ID); err != nil {
			s.logger.WarnContext(ctx, "market notify failed", slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "market created",
		slog.String("market_id", market.ID),
		slog.String("question", question),
	)
	return market, nil
}

// Get returns one market, preferring the cache.
func (s *MarketService) Get(ctx context.Context, id string) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, id); err == nil {
			return m, nil
		}
	}

	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %s: %w", id, err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, m); err != nil {
			s.logger.WarnContext(ctx, "market cache set failed", slog.String("error", err.Error()))
		}
	}
	return m, nil
}

// List returns all open markets decorated with the best resting price on
// each side of their books.
func (s *MarketService) List(ctx context.Context) ([]domain.MarketSummary, error) {
	markets, err := s.markets.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("market_service: list: %w", err)
	}

	summaries := make([]domain.MarketSummary, 0, len(markets))
	for _, m := range markets {
		summary := domain.MarketSummary{Market: m}
		if snapshot, ok := s.registry.Snapshot(m.ID); ok {
			if best, ok := snapshot.BestPrice(domain.SideFavour); ok {
				summary.BestFavourPrice = best
			}
			if best, ok := snapshot.BestPrice(domain.SideAgainst); ok {
				summary.BestAgainstPrice = best
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Trades returns trades for a user, optionally filtered to open (active) or
// resolved markets.
func (s *MarketService) Trades(ctx context.Context, userID string, active *bool) ([]domain.Trade, error) {
	list, err := s.trades.ListByUser(ctx, userID, active)
	if err != nil {
		return nil, fmt.Errorf("market_service: trades for %s: %w", userID, err)
	}
	return list, nil
}

// Balance returns a user's ledger position.
func (s *MarketService) Balance(ctx context.Context, userID string) (domain.Balance, error) {
	b, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("market_service: balance %s: %w", userID, err)
	}
	return b, nil
}

// Deposit credits a user's available balance.
func (s *MarketService) Deposit(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("market_service: deposit amount %d: %w", amount, domain.ErrInvalidOrder)
	}
	if err := s.ledger.Credit(ctx, userID, amount); err != nil {
		return fmt.Errorf("market_service: deposit: %w", err)
	}
	return nil
}
