package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/opiniontrade/internal/book"
	"github.com/alanyoungcy/opiniontrade/internal/domain"
	"github.com/alanyoungcy/opiniontrade/internal/notify"
)

// Resolution step names reported by StepError.
const (
	StepReleaseHolds  = "release_holds"
	StepLoadTrades    = "load_trades"
	StepSettleTrades  = "settle_trades"
	StepPersistResult = "persist_result"
)

// StepError reports which resolution step failed. Steps already completed
// are not rolled back; the caller must treat the resolution as partial and
// retry, which is safe because every step is idempotent.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("settlement: step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ResolutionSummary reports what a declareResult call accomplished.
type ResolutionSummary struct {
	MarketID      string `json:"market_id"`
	Outcome       bool   `json:"outcome"`
	ReleasedHolds int    `json:"released_holds"`
	SettledTrades int    `json:"settled_trades"`
}

// SettlementService resolves markets: it frees resting-order escrow, pays
// out every historical trade, and records the outcome.
type SettlementService struct {
	markets  domain.MarketStore
	trades   domain.TradeStore
	ledger   domain.LedgerStore
	registry *book.Registry
	cache    domain.MarketCache
	bus      domain.SignalBus
	archiver domain.Archiver
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewSettlementService creates a SettlementService. Cache, bus, archiver and
// notifier may be nil; the corresponding side effects are then skipped.
func NewSettlementService(
	markets domain.MarketStore,
	trades domain.TradeStore,
	ledger domain.LedgerStore,
	registry *book.Registry,
	cache domain.MarketCache,
	bus domain.SignalBus,
	archiver domain.Archiver,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		markets:  markets,
		trades:   trades,
		ledger:   ledger,
		registry: registry,
		cache:    cache,
		bus:      bus,
		archiver: archiver,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "settlement_service")),
	}
}

// DeclareResult resolves a market with the given outcome.
//
// The resolution is not atomic end to end. Each step commits on its own:
// a failure aborts the remaining steps and the returned StepError names the
// one that failed. Re-invoking after a partial failure is safe: the escrow
// release happens at most once (the registry entry is gone afterwards),
// settled trades are skipped, and a second resolution of an already-resolved
// market fails with ErrMarketResolved.
func (s *SettlementService) DeclareResult(ctx context.Context, marketID string, outcome bool) (ResolutionSummary, error) {
	summary := ResolutionSummary{MarketID: marketID, Outcome: outcome}

	market, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return summary, fmt.Errorf("settlement: load market: %w", err)
	}
	if market.Resolved() {
		return summary, fmt.Errorf("settlement: market %s: %w", marketID, domain.ErrMarketResolved)
	}

	// Step 1: free escrow still held by resting orders and retire the book,
	// all under the exclusive lock. A missing entry means a previous attempt
	// already got this far.
	err = s.registry.Remove(marketID, func(b *book.OrderBook) error {
		releases := restingReleases(b)
		if err := s.ledger.ReleaseAll(ctx, releases); err != nil {
			return err
		}
		summary.ReleasedHolds = len(releases)
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrMarketNotFound) {
		return summary, &StepError{Step: StepReleaseHolds, Err: err}
	}

	// Step 2: the full trade history.
	trades, err := s.trades.ListByMarket(ctx, marketID)
	if err != nil {
		return summary, &StepError{Step: StepLoadTrades, Err: err}
	}

	// Step 3: pay out trade by trade. Already-settled trades report false
	// and are skipped, so a retry never credits twice.
	for _, t := range trades {
		winnerID, loserID, winnerStake, loserStake := t.Winner(outcome)
		settled, err := s.trades.Settle(ctx, t.ID, winnerID, loserID, winnerStake, loserStake, t.Payout())
		if err != nil {
			s.notifyFailure(ctx, marketID, t.ID, err)
			return summary, &StepError{Step: StepSettleTrades, Err: err}
		}
		if settled {
			summary.SettledTrades++
		}
	}

	// Step 4: record the outcome.
	if err := s.markets.SetResult(ctx, marketID, outcome); err != nil {
		return summary, &StepError{Step: StepPersistResult, Err: err}
	}

	s.logger.InfoContext(ctx, "market resolved",
		slog.String("market_id", marketID),
		slog.Bool("outcome", outcome),
		slog.Int("released_holds", summary.ReleasedHolds),
		slog.Int("settled_trades", summary.SettledTrades),
	)

	s.afterResolution(ctx, market, outcome, trades)
	return summary, nil
}

// restingReleases collects the escrow still held by every resting order on
// both sides of the book.
func restingReleases(b *book.OrderBook) []domain.EscrowRelease {
	var releases []domain.EscrowRelease
	for _, side := range [][]domain.Order{b.Favour, b.Against} {
		for _, o := range side {
			releases = append(releases, domain.EscrowRelease{
				UserID: o.UserID,
				Amount: o.Cost(),
			})
		}
	}
	return releases
}

// afterResolution runs the best-effort side effects: cache invalidation,
// event publication, trade archival, and operator notification. None of
// them can fail the resolution itself.
func (s *SettlementService) afterResolution(ctx context.Context, market domain.Market, outcome bool, trades []domain.Trade) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, market.ID); err != nil {
			s.logger.WarnContext(ctx, "market cache invalidate failed", slog.String("error", err.Error()))
		}
	}

	if s.bus != nil {
		payload, err := json.Marshal(map[string]any{
			"market_id": market.ID,
			"outcome":   outcome,
		})
		if err == nil {
			if err := s.bus.Publish(ctx, ChannelMarkets, payload); err != nil {
				s.logger.WarnContext(ctx, "resolution publish failed", slog.String("error", err.Error()))
			}
		}
	}

	if s.archiver != nil {
		market.Result = &outcome
		path, err := s.archiver.ArchiveMarket(ctx, market, trades)
		if err != nil {
			s.logger.WarnContext(ctx, "trade archive failed",
				slog.String("market_id", market.ID),
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.InfoContext(ctx, "trade history archived",
				slog.String("market_id", market.ID),
				slog.String("path", path),
			)
		}
	}

	if s.notifier != nil {
		title := fmt.Sprintf("Market resolved: %s", market.Question)
		msg := fmt.Sprintf("Outcome: %t, trades settled: %d", outcome, len(trades))
		if err := s.notifier.Notify(ctx, notify.EventMarketResolved, title, msg); err != nil {
			s.logger.WarnContext(ctx, "resolution notify failed", slog.String("error", err.Error()))
		}
	}
}

// notifyFailure alerts operators that a market is stuck partially settled.
func (s *SettlementService) notifyFailure(ctx context.Context, marketID, tradeID string, err error) {
	if s.notifier == nil {
		return
	}
	title := "Settlement failed"
	msg := fmt.Sprintf("market %s stopped at trade %s: %v (re-run resolution after fixing the cause)", marketID, tradeID, err)
	if nerr := s.notifier.Notify(ctx, notify.EventSettlementFailed, title, msg); nerr != nil {
		s.logger.WarnContext(ctx, "failure notify failed", slog.String("error", nerr.Error()))
	}
}
