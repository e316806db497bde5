package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alanyoungcy/opiniontrade/internal/book"
	"github.com/alanyoungcy/opiniontrade/internal/domain"
)

type settlementFixture struct {
	markets  *fakeMarketStore
	trades   *fakeTradeStore
	ledger   *fakeLedger
	registry *book.Registry
	orders   *OrderService
	svc      *SettlementService
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	t.Helper()
	ledger := newFakeLedger()
	f := &settlementFixture{
		markets:  newFakeMarketStore(domain.Market{ID: "m1", Question: "will it rain tomorrow"}),
		trades:   newFakeTradeStore(ledger),
		ledger:   ledger,
		registry: book.NewRegistry(),
	}
	f.registry.Insert("m1")
	f.orders = NewOrderService(f.markets, f.trades, ledger, f.registry, testLimits(), nil, nil, testLogger())
	f.svc = NewSettlementService(f.markets, f.trades, ledger, f.registry, nil, nil, nil, nil, testLogger())
	return f
}

func (f *settlementFixture) place(t *testing.T, user string, side domain.Side, price, qty int64) {
	t.Helper()
	if _, err := f.orders.PlaceOrder(context.Background(), "m1", domain.Order{
		UserID: user, Side: side, Price: price, Quantity: qty,
	}); err != nil {
		t.Fatalf("place %s %s %d/%d: %v", user, side, price, qty, err)
	}
}

func (f *settlementFixture) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	if err := f.ledger.Credit(context.Background(), userID, amount); err != nil {
		t.Fatalf("fund %s: %v", userID, err)
	}
}

func (f *settlementFixture) balance(t *testing.T, userID string) domain.Balance {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance %s: %v", userID, err)
	}
	return b
}

// One trade {favour 600, against 400, qty 1} between u1/u2 plus a resting
// favour order {u3, 550, 1}.
func (f *settlementFixture) seedMarket(t *testing.T) {
	t.Helper()
	f.fund(t, "u1", 1000)
	f.fund(t, "u2", 1000)
	f.fund(t, "u3", 1000)
	f.place(t, "u1", domain.SideFavour, 600, 1)
	f.place(t, "u2", domain.SideAgainst, 400, 1)
	f.place(t, "u3", domain.SideFavour, 550, 1)
}

func TestDeclareResultSettlesMarket(t *testing.T) {
	f := newSettlementFixture(t)
	f.seedMarket(t)

	sum, err := f.svc.DeclareResult(context.Background(), "m1", true)
	if err != nil {
		t.Fatalf("DeclareResult: %v", err)
	}
	if sum.ReleasedHolds != 1 || sum.SettledTrades != 1 {
		t.Fatalf("summary = %+v, want 1 release, 1 settled trade", sum)
	}

	// u3's resting 550 hold came back untouched.
	if b := f.balance(t, "u3"); b.Held != 0 || b.Available != 1000 {
		t.Errorf("u3 balance = %+v, want full refund of the resting hold", b)
	}
	// u1 staked 600 and won the full 1000 contract value.
	if b := f.balance(t, "u1"); b.Held != 0 || b.Available != 1400 {
		t.Errorf("u1 balance = %+v, want held 0, available 1400", b)
	}
	// u2 staked 400 and lost it.
	if b := f.balance(t, "u2"); b.Held != 0 || b.Available != 600 {
		t.Errorf("u2 balance = %+v, want held 0, available 600", b)
	}

	m, err := f.markets.GetByID(context.Background(), "m1")
	if err != nil || !m.Resolved() || *m.Result != true {
		t.Errorf("market = %+v err=%v, want Resolved(true)", m, err)
	}
	if _, ok := f.registry.Snapshot("m1"); ok {
		t.Error("book registry entry survived resolution")
	}

	// A resolved market accepts no further orders.
	_, err = f.orders.PlaceOrder(context.Background(), "m1", domain.Order{
		UserID: "u1", Side: domain.SideFavour, Price: 500, Quantity: 1,
	})
	if !errors.Is(err, domain.ErrMarketResolved) {
		t.Errorf("post-resolution order err = %v, want ErrMarketResolved", err)
	}
}

func TestDeclareResultAgainstOutcome(t *testing.T) {
	f := newSettlementFixture(t)
	f.seedMarket(t)

	if _, err := f.svc.DeclareResult(context.Background(), "m1", false); err != nil {
		t.Fatalf("DeclareResult: %v", err)
	}

	// Outcome false: u2's against position wins the 1000 payout.
	if b := f.balance(t, "u2"); b.Available != 1600 || b.Held != 0 {
		t.Errorf("u2 balance = %+v, want available 1600", b)
	}
	if b := f.balance(t, "u1"); b.Available != 400 || b.Held != 0 {
		t.Errorf("u1 balance = %+v, want available 400", b)
	}
}

func TestDeclareResultSecondCallFails(t *testing.T) {
	f := newSettlementFixture(t)
	f.seedMarket(t)

	if _, err := f.svc.DeclareResult(context.Background(), "m1", true); err != nil {
		t.Fatalf("first DeclareResult: %v", err)
	}

	_, err := f.svc.DeclareResult(context.Background(), "m1", false)
	if !errors.Is(err, domain.ErrMarketResolved) {
		t.Fatalf("second DeclareResult err = %v, want ErrMarketResolved", err)
	}

	// The rejected second call must not have moved funds.
	if b := f.balance(t, "u1"); b.Available != 1400 {
		t.Errorf("u1 balance changed on rejected resolution: %+v", b)
	}
}

func TestDeclareResultRetryAfterSettleFailure(t *testing.T) {
	f := newSettlementFixture(t)
	f.seedMarket(t)

	boom := errors.New("connection reset")
	f.trades.settleErr = boom

	_, err := f.svc.DeclareResult(context.Background(), "m1", true)
	var step *StepError
	if !errors.As(err, &step) || step.Step != StepSettleTrades {
		t.Fatalf("err = %v, want StepError at %s", err, StepSettleTrades)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("StepError does not wrap the cause: %v", err)
	}

	// The escrow release already happened; the retry must not repeat it.
	if b := f.balance(t, "u3"); b.Held != 0 || b.Available != 1000 {
		t.Fatalf("u3 balance = %+v after failed resolution", b)
	}

	f.trades.settleErr = nil
	sum, err := f.svc.DeclareResult(context.Background(), "m1", true)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if sum.ReleasedHolds != 0 || sum.SettledTrades != 1 {
		t.Errorf("retry summary = %+v, want 0 releases, 1 settled", sum)
	}

	// Exactly one payout despite two invocations.
	if b := f.balance(t, "u1"); b.Available != 1400 {
		t.Errorf("u1 balance = %+v, payout applied more than once", b)
	}
	if b := f.balance(t, "u3"); b.Available != 1000 {
		t.Errorf("u3 balance = %+v, resting release applied more than once", b)
	}
}

func TestDeclareResultUnknownMarket(t *testing.T) {
	f := newSettlementFixture(t)
	_, err := f.svc.DeclareResult(context.Background(), "nope", true)
	if !errors.Is(err, domain.ErrMarketNotFound) {
		t.Errorf("err = %v, want ErrMarketNotFound", err)
	}
}

func TestDeclareResultEmptyMarket(t *testing.T) {
	f := newSettlementFixture(t)

	sum, err := f.svc.DeclareResult(context.Background(), "m1", false)
	if err != nil {
		t.Fatalf("DeclareResult: %v", err)
	}
	if sum.ReleasedHolds != 0 || sum.SettledTrades != 0 {
		t.Errorf("summary = %+v, want nothing to release or settle", sum)
	}
}
