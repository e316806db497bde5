package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/opiniontrade/internal/book"
	"github.com/alanyoungcy/opiniontrade/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLimits() domain.OrderLimits {
	return domain.OrderLimits{MinPrice: 100, MaxPrice: 900, MinQuantity: 1, MaxQuantity: 5}
}

type orderFixture struct {
	markets  *fakeMarketStore
	trades   *fakeTradeStore
	ledger   *fakeLedger
	registry *book.Registry
	svc      *OrderService
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	ledger := newFakeLedger()
	f := &orderFixture{
		markets:  newFakeMarketStore(domain.Market{ID: "m1", Question: "will it rain tomorrow"}),
		trades:   newFakeTradeStore(ledger),
		ledger:   ledger,
		registry: book.NewRegistry(),
	}
	f.registry.Insert("m1")
	f.svc = NewOrderService(f.markets, f.trades, ledger, f.registry, testLimits(), nil, nil, testLogger())
	return f
}

func (f *orderFixture) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	if err := f.ledger.Credit(context.Background(), userID, amount); err != nil {
		t.Fatalf("fund %s: %v", userID, err)
	}
}

func (f *orderFixture) balance(t *testing.T, userID string) domain.Balance {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance %s: %v", userID, err)
	}
	return b
}

func TestPlaceOrderRestsAndHoldsEscrow(t *testing.T) {
	f := newOrderFixture(t)
	f.fund(t, "u1", 5000)

	res, err := f.svc.PlaceOrder(context.Background(), "m1", domain.Order{
		UserID: "u1", Side: domain.SideFavour, Price: 600, Quantity: 3,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if len(res.Trades) != 0 || res.Leftover != 3 || res.Resting == nil {
		t.Fatalf("result = %+v, want no trades, leftover 3, resting order", res)
	}

	b := f.balance(t, "u1")
	if b.Held != 1800 || b.Available != 3200 {
		t.Errorf("balance = %+v, want held 1800, available 3200", b)
	}

	snap, _ := f.registry.Snapshot("m1")
	if len(snap.Favour) != 1 || snap.Favour[0].Price != 600 || snap.Favour[0].Quantity != 3 {
		t.Errorf("book = %+v, want one favour order {600 3}", snap.Favour)
	}
}

func TestPlaceOrderCrossesWithPriceImprovement(t *testing.T) {
	f := newOrderFixture(t)
	f.fund(t, "u1", 5000)
	f.fund(t, "u2", 5000)

	if _, err := f.svc.PlaceOrder(context.Background(), "m1", domain.Order{
		UserID: "u1", Side: domain.SideFavour, Price: 600, Quantity: 3,
	}); err != nil {
		t.Fatalf("resting order: %v", err)
	}

	res, err := f.svc.PlaceOrder(context.Background(), "m1", domain.Order{
		UserID: "u2", Side: domain.SideAgainst, Price: 500, Quantity: 2,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if len(res.Trades) != 1 || res.Leftover != 0 {
		t.Fatalf("result = %+v, want one trade and no leftover", res)
	}
	tr := res.Trades[0]
	if tr.FavourPrice != 600 || tr.AgainstPrice != 400 || tr.Quantity != 2 {
		t.Errorf("trade = %+v, want {600 400 2}", tr)
	}

	// u2 held 1000 up front, executed at 400*2, so 200 came back.
	b2 := f.balance(t, "u2")
	if b2.Held != 800 || b2.Available != 4200 {
		t.Errorf("u2 balance = %+v, want held 800, available 4200", b2)
	}
	// u1's full hold stays until resolution.
	if b1 := f.balance(t, "u1"); b1.Held != 1800 {
		t.Errorf("u1 held = %d, want 1800", b1.Held)
	}

	snap, _ := f.registry.Snapshot("m1")
	if len(snap.Favour) != 1 || snap.Favour[0].Quantity != 1 {
		t.Errorf("book = %+v, want resting favour reduced to qty 1", snap.Favour)
	}
}

func TestPlaceOrderRejectsOutOfBounds(t *testing.T) {
	f := newOrderFixture(t)
	f.fund(t, "u1", 5000)

	cases := []struct {
		name  string
		order domain.Order
	}{
		{"price too low", domain.Order{UserID: "u1", Side: domain.SideFavour, Price: 50, Quantity: 1}},
		{"price too high", domain.Order{UserID: "u1", Side: domain.SideFavour, Price: 950, Quantity: 1}},
		{"quantity zero", domain.Order{UserID: "u1", Side: domain.SideFavour, Price: 500, Quantity: 0}},
		{"quantity too high", domain.Order{UserID: "u1", Side: domain.SideFavour, Price: 500, Quantity: 6}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.PlaceOrder(context.Background(), "m1", tc.order)
			if !errors.Is(err, domain.ErrInvalidOrder) {
				t.Errorf("err = %v, want ErrInvalidOrder", err)
			}
		})
	}

	if b := f.balance(t, "u1"); b.Held != 0 {
		t.Errorf("rejected orders held escrow: %+v", b)
	}
}

func TestPlaceOrderInsufficientFunds(t *testing.T) {
	f := newOrderFixture(t)
	f.fund(t, "u1", 1000)

	_, err := f.svc.PlaceOrder(context.Background(), "m1", domain.Order{
		UserID: "u1", Side: domain.SideFavour, Price: 600, Quantity: 3,
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	snap, _ := f.registry.Snapshot("m1")
	if len(snap.Favour) != 0 {
		t.Errorf("unfunded order reached the book: %+v", snap.Favour)
	}
}

func TestPlaceOrderResolvedMarket(t *testing.T) {
	f := newOrderFixture(t)
	f.fund(t, "u1", 5000)
	outcome := true
	f.markets.markets["m1"] = domain.Market{ID: "m1", Result: &outcome}

	_, err := f.svc.PlaceOrder(context.Background(), "m1", domain.Order{
		UserID: "u1", Side: domain.SideFavour, Price: 600, Quantity: 1,
	})
	if !errors.Is(err, domain.ErrMarketResolved) {
		t.Errorf("err = %v, want ErrMarketResolved", err)
	}
}

func TestPlaceOrderUnknownMarket(t *testing.T) {
	f := newOrderFixture(t)
	f.fund(t, "u1", 5000)

	_, err := f.svc.PlaceOrder(context.Background(), "nope", domain.Order{
		UserID: "u1", Side: domain.SideFavour, Price: 600, Quantity: 1,
	})
	if !errors.Is(err, domain.ErrMarketNotFound) {
		t.Errorf("err = %v, want ErrMarketNotFound", err)
	}
	if b := f.balance(t, "u1"); b.Held != 0 {
		t.Errorf("hold leaked for unknown market: %+v", b)
	}
}

func TestPlaceOrderPersistFailureCompensates(t *testing.T) {
	f := newOrderFixture(t)
	f.fund(t, "u1", 5000)
	f.fund(t, "u2", 5000)

	if _, err := f.svc.PlaceOrder(context.Background(), "m1", domain.Order{
		UserID: "u1", Side: domain.SideFavour, Price: 600, Quantity: 3,
	}); err != nil {
		t.Fatalf("resting order: %v", err)
	}

	boom := errors.New("connection reset")
	f.trades.recordErr = boom

	_, err := f.svc.PlaceOrder(context.Background(), "m1", domain.Order{
		UserID: "u2", Side: domain.SideAgainst, Price: 500, Quantity: 2,
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}

	// The full hold came back and the live book kept its pre-match state.
	b2 := f.balance(t, "u2")
	if b2.Held != 0 || b2.Available != 5000 {
		t.Errorf("u2 balance = %+v, want untouched after compensation", b2)
	}
	snap, _ := f.registry.Snapshot("m1")
	if len(snap.Favour) != 1 || snap.Favour[0].Quantity != 3 {
		t.Errorf("book = %+v, failed persistence must not mutate the book", snap.Favour)
	}

	// Clearing the fault lets the same order go through.
	f.trades.recordErr = nil
	res, err := f.svc.PlaceOrder(context.Background(), "m1", domain.Order{
		UserID: "u2", Side: domain.SideAgainst, Price: 500, Quantity: 2,
	})
	if err != nil || len(res.Trades) != 1 {
		t.Fatalf("retry after fault: res=%+v err=%v", res, err)
	}
}

func TestDepthFallsBackToRegistry(t *testing.T) {
	f := newOrderFixture(t)
	f.fund(t, "u1", 5000)

	if _, err := f.svc.PlaceOrder(context.Background(), "m1", domain.Order{
		UserID: "u1", Side: domain.SideFavour, Price: 600, Quantity: 3,
	}); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	depth, err := f.svc.Depth(context.Background(), "m1")
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if len(depth.Favour) != 1 || depth.Favour[0].Quantity != 3 {
		t.Errorf("depth = %+v, want one favour level qty 3", depth.Favour)
	}

	if _, err := f.svc.Depth(context.Background(), "nope"); !errors.Is(err, domain.ErrMarketNotFound) {
		t.Errorf("unknown market err = %v, want ErrMarketNotFound", err)
	}
}
