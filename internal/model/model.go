// Package model defines the domain types used across the application.
package model

import "time"

// Product represents a single inventory item reported by the warehouse API.
type Product struct {
	ID             string
	Name           string
	Stock          float64
	MinBalance     *float64
	GroupPath      string
	ExpirationDate *time.Time
}

// NeedsStockCheck reports whether the product participates in stock
// monitoring. Products without a positive minimum balance are skipped.
func (p Product) NeedsStockCheck() bool {
	return p.MinBalance != nil && *p.MinBalance > 0
}

// NeedsExpirationCheck reports whether the product carries an expiration
// date to monitor.
func (p Product) NeedsExpirationCheck() bool {
	return p.ExpirationDate != nil
}

// Counterparty is one customer record as reported by the warehouse API.
// Kind mirrors the API's companyType field.
type Counterparty struct {
	Name string
	Kind string
}

// StockState remembers what the stock checker last saw for a product.
// The zero value means the product has never been observed.
type StockState struct {
	LastStock        float64
	BelowMinReported bool
	ZeroReported     bool
	LastCheck        time.Time
}

// ExpirationState tracks which expiration alerts have already been sent
// for a product. ExpirationDate keys the current epoch: when the stored
// date differs from the one reported by the API, all flags start over.
type ExpirationState struct {
	ExpirationDate string
	WasExpired     bool
	NearNotified   bool
	UrgentNotified bool
}
