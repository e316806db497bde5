package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrMarketNotFound    = errors.New("market not found")
	ErrMarketResolved    = errors.New("market already resolved")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidOrder      = errors.New("invalid order parameters")
	ErrInconsistentBook  = errors.New("order book invariant violated")
)
