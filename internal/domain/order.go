package domain

// Side is the position an order backs: Favour is "yes", Against is "no".
type Side string

const (
	SideFavour  Side = "favour"
	SideAgainst Side = "against"
)

// Valid reports whether s is one of the two defined sides.
func (s Side) Valid() bool {
	return s == SideFavour || s == SideAgainst
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideFavour {
		return SideAgainst
	}
	return SideFavour
}

// Order is a resting or incoming order. Price is in thousandths
// (see PriceScale); Quantity is a whole number of contracts. Resting orders
// are mutated only by the matching engine, which reduces Quantity as fills
// consume them.
type Order struct {
	UserID   string `json:"user_id"`
	Side     Side   `json:"side"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

// Cost is the escrow amount the order requires: price * quantity.
func (o Order) Cost() int64 {
	return o.Price * o.Quantity
}

// OrderLimits are the configured validation bounds for incoming orders.
// They are deployment configuration, not constants of the venue.
type OrderLimits struct {
	MinPrice    int64
	MaxPrice    int64
	MinQuantity int64
	MaxQuantity int64
}

// Check validates an incoming order against the limits. It reports the first
// violated bound, if any.
func (l OrderLimits) Check(o Order) error {
	if !o.Side.Valid() {
		return ErrInvalidOrder
	}
	if o.Price < l.MinPrice || o.Price > l.MaxPrice {
		return ErrInvalidOrder
	}
	if o.Quantity < l.MinQuantity || o.Quantity > l.MaxQuantity {
		return ErrInvalidOrder
	}
	return nil
}
