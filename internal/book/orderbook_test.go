package book

import (
	"errors"
	"testing"

	"github.com/alanyoungcy/opiniontrade/internal/domain"
)

func order(user string, side domain.Side, price, qty int64) domain.Order {
	return domain.Order{UserID: user, Side: side, Price: price, Quantity: qty}
}

func TestInsertKeepsAscendingOrder(t *testing.T) {
	b := NewOrderBook()
	for _, p := range []int64{600, 300, 900, 450} {
		b.Insert(order("u1", domain.SideFavour, p, 1))
	}

	if !b.Sorted() {
		t.Fatalf("book not sorted after inserts: %+v", b.Favour)
	}

	want := []int64{300, 450, 600, 900}
	for i, o := range b.Favour {
		if o.Price != want[i] {
			t.Errorf("favour[%d].Price = %d, want %d", i, o.Price, want[i])
		}
	}
}

func TestInsertStableAtSamePrice(t *testing.T) {
	b := NewOrderBook()
	b.Insert(order("first", domain.SideAgainst, 500, 1))
	b.Insert(order("second", domain.SideAgainst, 500, 2))

	if got := b.Against[0].UserID; got != "first" {
		t.Errorf("against[0].UserID = %q, want %q (arrival order at equal price)", got, "first")
	}
}

func TestBestPrice(t *testing.T) {
	b := NewOrderBook()
	if _, ok := b.BestPrice(domain.SideFavour); ok {
		t.Error("BestPrice on empty side reported ok")
	}

	b.Insert(order("u1", domain.SideFavour, 300, 1))
	b.Insert(order("u2", domain.SideFavour, 700, 1))

	got, ok := b.BestPrice(domain.SideFavour)
	if !ok || got != 700 {
		t.Errorf("BestPrice = %d, %t, want 700, true", got, ok)
	}
}

func TestCompactPreservesOrder(t *testing.T) {
	b := NewOrderBook()
	b.Favour = []domain.Order{
		order("u1", domain.SideFavour, 300, 2),
		order("u2", domain.SideFavour, 500, 0),
		order("u3", domain.SideFavour, 700, 1),
	}

	b.Compact(domain.SideFavour)

	if len(b.Favour) != 2 {
		t.Fatalf("len(Favour) = %d, want 2", len(b.Favour))
	}
	if b.Favour[0].UserID != "u1" || b.Favour[1].UserID != "u3" {
		t.Errorf("compact reordered survivors: %+v", b.Favour)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	b := NewOrderBook()
	b.Insert(order("u1", domain.SideFavour, 600, 3))

	c := b.Clone()
	c.Favour[0].Quantity = 1
	c.Insert(order("u2", domain.SideAgainst, 400, 1))

	if b.Favour[0].Quantity != 3 {
		t.Errorf("mutating clone changed original quantity: %d", b.Favour[0].Quantity)
	}
	if len(b.Against) != 0 {
		t.Errorf("insert on clone leaked into original: %+v", b.Against)
	}
}

func TestDepthAggregatesPriceLevels(t *testing.T) {
	b := NewOrderBook()
	b.Insert(order("u1", domain.SideFavour, 600, 2))
	b.Insert(order("u2", domain.SideFavour, 600, 3))
	b.Insert(order("u3", domain.SideFavour, 500, 1))

	depth := b.Depth("m1")

	if depth.MarketID != "m1" {
		t.Errorf("MarketID = %q", depth.MarketID)
	}
	if len(depth.Favour) != 2 {
		t.Fatalf("len(Favour levels) = %d, want 2", len(depth.Favour))
	}
	if depth.Favour[1].Price != 600 || depth.Favour[1].Quantity != 5 {
		t.Errorf("level = %+v, want {600 5}", depth.Favour[1])
	}
}

func TestRegistryInsertDoesNotOverwrite(t *testing.T) {
	r := NewRegistry()
	r.Insert("m1")

	err := r.Update("m1", func(b *OrderBook) (*OrderBook, error) {
		b.Insert(order("u1", domain.SideFavour, 600, 3))
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	// A duplicate insert must not wipe the resting order.
	r.Insert("m1")

	snap, ok := r.Snapshot("m1")
	if !ok || len(snap.Favour) != 1 {
		t.Fatalf("resting order lost after duplicate Insert: %+v", snap)
	}
}

func TestRegistryUpdateInstallsReplacement(t *testing.T) {
	r := NewRegistry()
	r.Insert("m1")

	err := r.Update("m1", func(b *OrderBook) (*OrderBook, error) {
		clone := b.Clone()
		clone.Insert(order("u1", domain.SideAgainst, 400, 2))
		return clone, nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	snap, _ := r.Snapshot("m1")
	if len(snap.Against) != 1 {
		t.Errorf("replacement not installed: %+v", snap)
	}
}

func TestRegistryUpdateErrorKeepsOriginal(t *testing.T) {
	r := NewRegistry()
	r.Insert("m1")

	boom := errors.New("boom")
	err := r.Update("m1", func(b *OrderBook) (*OrderBook, error) {
		clone := b.Clone()
		clone.Insert(order("u1", domain.SideFavour, 600, 3))
		return clone, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update error = %v, want boom", err)
	}

	snap, _ := r.Snapshot("m1")
	if len(snap.Favour) != 0 {
		t.Errorf("failed update mutated registry book: %+v", snap)
	}
}

func TestRegistryUpdateUnknownMarket(t *testing.T) {
	r := NewRegistry()
	err := r.Update("missing", func(b *OrderBook) (*OrderBook, error) { return nil, nil })
	if !errors.Is(err, domain.ErrMarketNotFound) {
		t.Errorf("err = %v, want ErrMarketNotFound", err)
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	r.Insert("m1")

	boom := errors.New("boom")
	if err := r.Remove("m1", func(b *OrderBook) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Remove error = %v, want boom", err)
	}
	if _, ok := r.Snapshot("m1"); !ok {
		t.Fatal("failed Remove deleted the entry")
	}

	if err := r.Remove("m1", func(b *OrderBook) error { return nil }); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := r.Snapshot("m1"); ok {
		t.Error("entry survived successful Remove")
	}
	if err := r.Remove("m1", func(b *OrderBook) error { return nil }); !errors.Is(err, domain.ErrMarketNotFound) {
		t.Errorf("second Remove err = %v, want ErrMarketNotFound", err)
	}
}
