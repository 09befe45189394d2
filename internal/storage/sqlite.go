package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"warehouse_bot/internal/model"
	"warehouse_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// Store names recorded in the store_meta table.
const (
	storeStock      = "stock"
	storeExpiration = "expiration"
)

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Apply(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// LoadStockStates returns the stock store as a map keyed by product ID.
// An empty store loads as an empty map.
func (s *SQLite) LoadStockStates(ctx context.Context) (map[string]model.StockState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, last_stock, below_min_reported, zero_reported, last_check FROM stock_state`,
	)
	if err != nil {
		return nil, fmt.Errorf("query stock states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	states := make(map[string]model.StockState)
	for rows.Next() {
		var (
			id          string
			st          model.StockState
			below, zero int
			lastCheck   string
		)
		if err := rows.Scan(&id, &st.LastStock, &below, &zero, &lastCheck); err != nil {
			return nil, fmt.Errorf("scan stock state: %w", err)
		}
		st.BelowMinReported = below == 1
		st.ZeroReported = zero == 1
		st.LastCheck, _ = time.Parse(timeLayout, lastCheck)
		states[id] = st
	}
	return states, rows.Err()
}

// SaveStockStates replaces the whole stock store in one transaction and
// stamps its freshness.
func (s *SQLite) SaveStockStates(ctx context.Context, states map[string]model.StockState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM stock_state`); err != nil {
		return fmt.Errorf("clear stock states: %w", err)
	}
	for id, st := range states {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO stock_state (product_id, last_stock, below_min_reported, zero_reported, last_check)
			 VALUES (?, ?, ?, ?, ?)`,
			id, st.LastStock, boolToInt(st.BelowMinReported), boolToInt(st.ZeroReported),
			st.LastCheck.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("insert stock state: %w", err)
		}
	}
	if err := touchStore(ctx, tx, storeStock); err != nil {
		return err
	}
	return tx.Commit()
}

// ResetStaleStockStates drops the stock store if its last save is older
// than maxAge. Reports whether a reset happened.
func (s *SQLite) ResetStaleStockStates(ctx context.Context, maxAge time.Duration) (bool, error) {
	return s.resetStale(ctx, storeStock, "stock_state", maxAge)
}

// ClearStockStates drops the stock store unconditionally.
func (s *SQLite) ClearStockStates(ctx context.Context) error {
	return s.clearStore(ctx, storeStock, "stock_state")
}

// LoadExpirationStates returns the expiration store as a map keyed by
// product ID. An empty store loads as an empty map.
func (s *SQLite) LoadExpirationStates(ctx context.Context) (map[string]model.ExpirationState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, expiration_date, was_expired, near_notified, urgent_notified FROM expiration_state`,
	)
	if err != nil {
		return nil, fmt.Errorf("query expiration states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	states := make(map[string]model.ExpirationState)
	for rows.Next() {
		var (
			id                    string
			st                    model.ExpirationState
			expired, near, urgent int
		)
		if err := rows.Scan(&id, &st.ExpirationDate, &expired, &near, &urgent); err != nil {
			return nil, fmt.Errorf("scan expiration state: %w", err)
		}
		st.WasExpired = expired == 1
		st.NearNotified = near == 1
		st.UrgentNotified = urgent == 1
		states[id] = st
	}
	return states, rows.Err()
}

// SaveExpirationStates replaces the whole expiration store in one
// transaction and stamps its freshness.
func (s *SQLite) SaveExpirationStates(ctx context.Context, states map[string]model.ExpirationState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM expiration_state`); err != nil {
		return fmt.Errorf("clear expiration states: %w", err)
	}
	for id, st := range states {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expiration_state (product_id, expiration_date, was_expired, near_notified, urgent_notified)
			 VALUES (?, ?, ?, ?, ?)`,
			id, st.ExpirationDate, boolToInt(st.WasExpired), boolToInt(st.NearNotified), boolToInt(st.UrgentNotified),
		)
		if err != nil {
			return fmt.Errorf("insert expiration state: %w", err)
		}
	}
	if err := touchStore(ctx, tx, storeExpiration); err != nil {
		return err
	}
	return tx.Commit()
}

// ResetStaleExpirationStates drops the expiration store if its last save
// is older than maxAge. Reports whether a reset happened.
func (s *SQLite) ResetStaleExpirationStates(ctx context.Context, maxAge time.Duration) (bool, error) {
	return s.resetStale(ctx, storeExpiration, "expiration_state", maxAge)
}

// ClearExpirationStates drops the expiration store unconditionally.
func (s *SQLite) ClearExpirationStates(ctx context.Context) error {
	return s.clearStore(ctx, storeExpiration, "expiration_state")
}

// HasCounterparty checks whether a normalized phone is already registered.
func (s *SQLite) HasCounterparty(ctx context.Context, phone string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM counterparties WHERE phone = ?`, phone,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check counterparty: %w", err)
	}
	return count > 0, nil
}

// AddCounterparty records a normalized phone in the registry.
func (s *SQLite) AddCounterparty(ctx context.Context, phone, kind string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO counterparties (phone, kind, added_at) VALUES (?, ?, ?)`,
		phone, kind, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("add counterparty: %w", err)
	}
	return nil
}

// CountCounterparties returns the registry size.
func (s *SQLite) CountCounterparties(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM counterparties`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count counterparties: %w", err)
	}
	return count, nil
}

// ReplaceCounterparties swaps the whole registry for the given
// phone→kind entries in one transaction.
func (s *SQLite) ReplaceCounterparties(ctx context.Context, entries map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM counterparties`); err != nil {
		return fmt.Errorf("clear counterparties: %w", err)
	}
	now := time.Now().UTC().Format(timeLayout)
	for phone, kind := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO counterparties (phone, kind, added_at) VALUES (?, ?, ?)`,
			phone, kind, now,
		)
		if err != nil {
			return fmt.Errorf("insert counterparty: %w", err)
		}
	}
	return tx.Commit()
}

// ClearCounterparties empties the registry.
func (s *SQLite) ClearCounterparties(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM counterparties`); err != nil {
		return fmt.Errorf("clear counterparties: %w", err)
	}
	return nil
}

func (s *SQLite) resetStale(ctx context.Context, store, table string, maxAge time.Duration) (bool, error) {
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT updated_at FROM store_meta WHERE store = ?`, store,
	).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query store age: %w", err)
	}

	// An unreadable timestamp counts as stale: better a clean slate than
	// a store of unknown age.
	savedAt, parseErr := time.Parse(timeLayout, updated)
	if parseErr == nil && time.Since(savedAt) <= maxAge {
		return false, nil
	}

	if err := s.clearStore(ctx, store, table); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLite) clearStore(ctx context.Context, store, table string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// table is one of the fixed store table names, never user input.
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM store_meta WHERE store = ?`, store); err != nil {
		return fmt.Errorf("clear store meta: %w", err)
	}
	return tx.Commit()
}

func touchStore(ctx context.Context, tx *sql.Tx, store string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO store_meta (store, updated_at) VALUES (?, ?)
		 ON CONFLICT(store) DO UPDATE SET updated_at = excluded.updated_at`,
		store, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("touch store meta: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
