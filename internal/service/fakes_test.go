package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/alanyoungcy/opiniontrade/internal/domain"
)

// fakeMarketStore is an in-memory domain.MarketStore.
type fakeMarketStore struct {
	mu      sync.Mutex
	markets map[string]domain.Market
}

func newFakeMarketStore(markets ...domain.Market) *fakeMarketStore {
	s := &fakeMarketStore{markets: make(map[string]domain.Market)}
	for _, m := range markets {
		s.markets[m.ID] = m
	}
	return s
}

func (s *fakeMarketStore) Create(ctx context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[m.ID] = m
	return nil
}

func (s *fakeMarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrMarketNotFound
	}
	return m, nil
}

func (s *fakeMarketStore) ListOpen(ctx context.Context) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var open []domain.Market
	for _, m := range s.markets {
		if !m.Resolved() {
			open = append(open, m)
		}
	}
	return open, nil
}

func (s *fakeMarketStore) SetResult(ctx context.Context, id string, outcome bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.ErrMarketNotFound
	}
	if m.Resolved() {
		return domain.ErrMarketResolved
	}
	m.Result = &outcome
	s.markets[id] = m
	return nil
}

// fakeTradeStore is an in-memory domain.TradeStore. Failure injection via
// recordErr and settleErr mimics a lost database connection.
type fakeTradeStore struct {
	mu        sync.Mutex
	trades    []domain.Trade
	ledger    *fakeLedger
	recordErr error
	settleErr error
}

func newFakeTradeStore(ledger *fakeLedger) *fakeTradeStore {
	return &fakeTradeStore{ledger: ledger}
}

func (s *fakeTradeStore) RecordFills(ctx context.Context, trades []domain.Trade, releases []domain.EscrowRelease) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.trades = append(s.trades, trades...)
	for _, r := range releases {
		if err := s.ledger.Release(ctx, r.UserID, r.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeTradeStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Trade
	for _, t := range s.trades {
		if t.MarketID == marketID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeTradeStore) ListByUser(ctx context.Context, userID string, active *bool) ([]domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Trade
	for _, t := range s.trades {
		if t.FavourUserID == userID || t.AgainstUserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeTradeStore) Settle(ctx context.Context, tradeID, winnerID, loserID string, winnerStake, loserStake, payout int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settleErr != nil {
		return false, s.settleErr
	}
	for i := range s.trades {
		if s.trades[i].ID != tradeID {
			continue
		}
		if s.trades[i].Settled {
			return false, nil
		}
		s.trades[i].Settled = true
		s.ledger.settle(winnerID, loserID, winnerStake, loserStake, payout)
		return true, nil
	}
	return false, fmt.Errorf("fake: trade %s: %w", tradeID, domain.ErrNotFound)
}

// fakeLedger is an in-memory domain.LedgerStore enforcing the same
// non-negative balance guards as the SQL statements.
type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]domain.Balance
	holdErr  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[string]domain.Balance)}
}

func (l *fakeLedger) Hold(ctx context.Context, userID string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holdErr != nil {
		return l.holdErr
	}
	b := l.balances[userID]
	if b.Available < amount {
		return domain.ErrInsufficientFunds
	}
	b.UserID = userID
	b.Available -= amount
	b.Held += amount
	l.balances[userID] = b
	return nil
}

func (l *fakeLedger) Release(ctx context.Context, userID string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.balances[userID]
	if b.Held < amount {
		return fmt.Errorf("fake: release %d from %s: %w", amount, userID, domain.ErrInconsistentBook)
	}
	b.Held -= amount
	b.Available += amount
	l.balances[userID] = b
	return nil
}

func (l *fakeLedger) ReleaseAll(ctx context.Context, releases []domain.EscrowRelease) error {
	for _, r := range releases {
		if err := l.Release(ctx, r.UserID, r.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (l *fakeLedger) Credit(ctx context.Context, userID string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.balances[userID]
	b.UserID = userID
	b.Available += amount
	l.balances[userID] = b
	return nil
}

func (l *fakeLedger) Balance(ctx context.Context, userID string) (domain.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.balances[userID]
	if !ok {
		return domain.Balance{}, domain.ErrNotFound
	}
	return b, nil
}

func (l *fakeLedger) settle(winnerID, loserID string, winnerStake, loserStake, payout int64) {
	wb := l.balances[winnerID]
	wb.UserID = winnerID
	wb.Held -= winnerStake
	wb.Available += payout
	l.balances[winnerID] = wb

	lb := l.balances[loserID]
	lb.UserID = loserID
	lb.Held -= loserStake
	l.balances[loserID] = lb
}

var (
	_ domain.MarketStore = (*fakeMarketStore)(nil)
	_ domain.TradeStore  = (*fakeTradeStore)(nil)
	_ domain.LedgerStore = (*fakeLedger)(nil)
)
