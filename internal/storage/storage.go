// Package storage defines the persistence interfaces and their implementations.
package storage

import (
	"context"
	"time"

	"warehouse_bot/internal/model"
)

// CheckStates persists the per-product memory of the check cycles. Each
// store is loaded and saved as a whole map. A store that has not been
// written for longer than maxAge can be reset wholesale, which makes the
// next cycle start from a clean slate.
type CheckStates interface {
	LoadStockStates(ctx context.Context) (map[string]model.StockState, error)
	SaveStockStates(ctx context.Context, states map[string]model.StockState) error
	ResetStaleStockStates(ctx context.Context, maxAge time.Duration) (bool, error)
	ClearStockStates(ctx context.Context) error

	LoadExpirationStates(ctx context.Context) (map[string]model.ExpirationState, error)
	SaveExpirationStates(ctx context.Context, states map[string]model.ExpirationState) error
	ResetStaleExpirationStates(ctx context.Context, maxAge time.Duration) (bool, error)
	ClearExpirationStates(ctx context.Context) error
}

// Registry is the local counterparty cache keyed by normalized phone.
// Values carry the counterparty kind as reported by the upstream API.
type Registry interface {
	HasCounterparty(ctx context.Context, phone string) (bool, error)
	AddCounterparty(ctx context.Context, phone, kind string) error
	CountCounterparties(ctx context.Context) (int, error)
	ReplaceCounterparties(ctx context.Context, entries map[string]string) error
	ClearCounterparties(ctx context.Context) error
}

// Storage combines every persistence concern served by the default
// SQLite backend.
type Storage interface {
	CheckStates
	Registry

	Close() error
}
