// Package checker implements the stock and expiration change detectors.
//
// Both checkers follow the same shape: load the previous run's state
// map, walk the current product list, collect alerts into per-category
// batches, hand the batches to the notifier, and write the whole state
// map back. Checkers never fail a cycle; problems are logged and the
// cycle moves on.
package checker

import (
	"context"
	"time"

	"warehouse_bot/internal/model"
)

// Notifier delivers one category's alerts under a common header. The
// return value only reports whether delivery happened.
type Notifier interface {
	Send(ctx context.Context, header string, alerts []string) bool
}

// Checker inspects the product list and reports changes since the
// previous run.
type Checker interface {
	Name() string
	Process(ctx context.Context, products []model.Product)
}

// StockStore is the slice of storage a StockChecker needs.
type StockStore interface {
	LoadStockStates(ctx context.Context) (map[string]model.StockState, error)
	SaveStockStates(ctx context.Context, states map[string]model.StockState) error
	ResetStaleStockStates(ctx context.Context, maxAge time.Duration) (bool, error)
}

// ExpirationStore is the slice of storage an ExpirationChecker needs.
type ExpirationStore interface {
	LoadExpirationStates(ctx context.Context) (map[string]model.ExpirationState, error)
	SaveExpirationStates(ctx context.Context, states map[string]model.ExpirationState) error
	ResetStaleExpirationStates(ctx context.Context, maxAge time.Duration) (bool, error)
}
