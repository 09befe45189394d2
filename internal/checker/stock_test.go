package checker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"warehouse_bot/internal/model"
)

func TestStockCheckerScenario(t *testing.T) {
	store := &fakeStockStore{}
	notifier := &fakeNotifier{}
	m := newTestMetrics()
	c := NewStockChecker(store, notifier, 30*24*time.Hour, m, discardLogger())
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	steps := []struct {
		stock float64
		want  []sentBatch
	}{
		{
			stock: 0,
			want: []sentBatch{{
				Header: "📊 Stock alerts: Dairy",
				Alerts: []string{"🛑 Milk is out of stock\nStock: 0 (minimum: 5)\n10.03.2026 12:00"},
			}},
		},
		{stock: 3, want: nil},
		{stock: 7, want: nil},
		{
			stock: 2,
			want: []sentBatch{{
				Header: "📊 Stock alerts: Dairy",
				Alerts: []string{"⚠️ Milk reached its minimum balance\nStock: 2 (minimum: 5)\n10.03.2026 12:00"},
			}},
		},
	}
	for i, step := range steps {
		notifier.sent = nil
		products := []model.Product{{ID: "p1", Name: "Milk", Stock: step.stock, MinBalance: fptr(5), GroupPath: "Dairy"}}
		c.Process(context.Background(), products)
		if diff := cmp.Diff(step.want, notifier.sent); diff != "" {
			t.Fatalf("step %d (stock %v): alerts mismatch (-want +got):\n%s", i, step.stock, diff)
		}
	}

	if got := testutil.ToFloat64(m.AlertsSent.WithLabelValues("stock", "zero")); got != 1 {
		t.Errorf("zero alerts counted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AlertsSent.WithLabelValues("stock", "below_min")); got != 1 {
		t.Errorf("below_min alerts counted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ProductsChecked.WithLabelValues("stock")); got != 4 {
		t.Errorf("products checked = %v, want 4", got)
	}
}

func TestEvaluateStock(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	product := func(stock, min float64) model.Product {
		return model.Product{ID: "p1", Name: "Milk", Stock: stock, MinBalance: &min}
	}

	tests := []struct {
		name     string
		product  model.Product
		prev     model.StockState
		wantKind string
		wantNext model.StockState
	}{
		{
			name:     "first sighting at zero",
			product:  product(0, 5),
			wantKind: alertZero,
			wantNext: model.StockState{LastStock: 0, BelowMinReported: true, ZeroReported: true, LastCheck: now},
		},
		{
			name:     "zero already reported stays silent",
			product:  product(0, 5),
			prev:     model.StockState{LastStock: 0, BelowMinReported: true, ZeroReported: true},
			wantNext: model.StockState{LastStock: 0, BelowMinReported: true, ZeroReported: true, LastCheck: now},
		},
		{
			name:     "first sighting below minimum",
			product:  product(3, 5),
			wantKind: alertBelowMin,
			wantNext: model.StockState{LastStock: 3, BelowMinReported: true, LastCheck: now},
		},
		{
			name:     "below minimum already reported stays silent",
			product:  product(3, 5),
			prev:     model.StockState{LastStock: 3, BelowMinReported: true},
			wantNext: model.StockState{LastStock: 3, BelowMinReported: true, LastCheck: now},
		},
		{
			name:     "exactly at minimum counts as below",
			product:  product(5, 5),
			wantKind: alertBelowMin,
			wantNext: model.StockState{LastStock: 5, BelowMinReported: true, LastCheck: now},
		},
		{
			name:     "healthy stock stays silent",
			product:  product(9, 5),
			wantNext: model.StockState{LastStock: 9, LastCheck: now},
		},
		{
			name:     "re-alert after recovery",
			product:  product(2, 5),
			prev:     model.StockState{LastStock: 9},
			wantKind: alertBelowMin,
			wantNext: model.StockState{LastStock: 2, BelowMinReported: true, LastCheck: now},
		},
		{
			name:     "re-alert when last stock was above the current minimum",
			product:  product(2, 5),
			prev:     model.StockState{LastStock: 9, BelowMinReported: true},
			wantKind: alertBelowMin,
			wantNext: model.StockState{LastStock: 2, BelowMinReported: true, LastCheck: now},
		},
		{
			name:     "restock clears both flags",
			product:  product(6, 5),
			prev:     model.StockState{LastStock: 0, BelowMinReported: true, ZeroReported: true},
			wantNext: model.StockState{LastStock: 6, LastCheck: now},
		},
		{
			name:     "negative stock counts as zero",
			product:  product(-2, 5),
			wantKind: alertZero,
			wantNext: model.StockState{LastStock: -2, BelowMinReported: true, ZeroReported: true, LastCheck: now},
		},
		{
			name:     "drop to zero alerts even when below was reported",
			product:  product(0, 5),
			prev:     model.StockState{LastStock: 2, BelowMinReported: true},
			wantKind: alertZero,
			wantNext: model.StockState{LastStock: 0, BelowMinReported: true, ZeroReported: true, LastCheck: now},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert, kind, next := evaluateStock(tt.product, tt.prev, now)
			if kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", kind, tt.wantKind)
			}
			if (alert != "") != (tt.wantKind != "") {
				t.Errorf("alert = %q, want emitted: %v", alert, tt.wantKind != "")
			}
			if diff := cmp.Diff(tt.wantNext, next); diff != "" {
				t.Errorf("next state mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStockCheckerGroupsByCategory(t *testing.T) {
	store := &fakeStockStore{}
	notifier := &fakeNotifier{}
	c := NewStockChecker(store, notifier, 30*24*time.Hour, newTestMetrics(), discardLogger())
	c.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	products := []model.Product{
		{ID: "p1", Name: "Milk", Stock: 0, MinBalance: fptr(5), GroupPath: "Food > Dairy"},
		{ID: "p2", Name: "Cheese", Stock: 1, MinBalance: fptr(4), GroupPath: "Food > Dairy"},
		{ID: "p3", Name: "Rope", Stock: 0, MinBalance: fptr(1), GroupPath: "Hardware"},
	}
	c.Process(context.Background(), products)

	want := []sentBatch{
		{
			Header: "📊 Stock alerts: Food > Dairy",
			Alerts: []string{
				"🛑 Milk is out of stock\nStock: 0 (minimum: 5)\n10.03.2026 12:00",
				"⚠️ Cheese reached its minimum balance\nStock: 1 (minimum: 4)\n10.03.2026 12:00",
			},
		},
		{
			Header: "📊 Stock alerts: Hardware",
			Alerts: []string{"🛑 Rope is out of stock\nStock: 0 (minimum: 1)\n10.03.2026 12:00"},
		},
	}
	if diff := cmp.Diff(want, notifier.sent); diff != "" {
		t.Errorf("batches mismatch (-want +got):\n%s", diff)
	}
}

func TestStockCheckerPrunesExemptProducts(t *testing.T) {
	store := &fakeStockStore{states: map[string]model.StockState{
		"p1": {LastStock: 4, BelowMinReported: true},
		"p2": {LastStock: 9},
	}}
	notifier := &fakeNotifier{}
	c := NewStockChecker(store, notifier, 30*24*time.Hour, newTestMetrics(), discardLogger())
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	products := []model.Product{
		{ID: "p1", Name: "Milk", Stock: 4, GroupPath: "Dairy"},
		{ID: "p2", Name: "Rope", Stock: 9, MinBalance: fptr(5), GroupPath: "Hardware"},
		{ID: "p3", Name: "Tape", Stock: 2, MinBalance: fptr(0), GroupPath: "Hardware"},
	}
	c.Process(context.Background(), products)

	if len(notifier.sent) != 0 {
		t.Errorf("unexpected alerts: %v", notifier.sent)
	}
	want := map[string]model.StockState{"p2": {LastStock: 9, LastCheck: now}}
	if diff := cmp.Diff(want, store.saved); diff != "" {
		t.Errorf("saved states mismatch (-want +got):\n%s", diff)
	}
}

func TestStockCheckerLoadErrorStartsEmpty(t *testing.T) {
	store := &fakeStockStore{
		loadErr: errors.New("disk gone"),
		states:  map[string]model.StockState{"p1": {LastStock: 0, BelowMinReported: true, ZeroReported: true}},
	}
	notifier := &fakeNotifier{}
	c := NewStockChecker(store, notifier, 30*24*time.Hour, newTestMetrics(), discardLogger())
	c.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	products := []model.Product{{ID: "p1", Name: "Milk", Stock: 0, MinBalance: fptr(5), GroupPath: "Dairy"}}
	c.Process(context.Background(), products)

	if len(notifier.sent) != 1 {
		t.Fatalf("got %d batches, want 1", len(notifier.sent))
	}
	if !store.saved["p1"].ZeroReported {
		t.Errorf("saved state = %+v, want zero reported", store.saved["p1"])
	}
}

func TestStockCheckerStaleResetClearsState(t *testing.T) {
	store := &fakeStockStore{
		stale:  true,
		states: map[string]model.StockState{"p1": {LastStock: 0, BelowMinReported: true, ZeroReported: true}},
	}
	notifier := &fakeNotifier{}
	c := NewStockChecker(store, notifier, 30*24*time.Hour, newTestMetrics(), discardLogger())
	c.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	products := []model.Product{{ID: "p1", Name: "Milk", Stock: 0, MinBalance: fptr(5), GroupPath: "Dairy"}}
	c.Process(context.Background(), products)

	if len(notifier.sent) != 1 {
		t.Fatalf("got %d batches, want 1 after reset", len(notifier.sent))
	}
}

func TestStockCheckerStaleCheckErrorContinues(t *testing.T) {
	store := &fakeStockStore{resetErr: errors.New("meta table locked")}
	notifier := &fakeNotifier{}
	c := NewStockChecker(store, notifier, 30*24*time.Hour, newTestMetrics(), discardLogger())
	c.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	products := []model.Product{{ID: "p1", Name: "Milk", Stock: 9, MinBalance: fptr(5), GroupPath: "Dairy"}}
	c.Process(context.Background(), products)

	if store.saveCalls != 1 {
		t.Errorf("save calls = %d, want 1", store.saveCalls)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("unexpected alerts: %v", notifier.sent)
	}
}

func TestStockCheckerCancelledContextStillSaves(t *testing.T) {
	store := &fakeStockStore{}
	notifier := &fakeNotifier{}
	c := NewStockChecker(store, notifier, 30*24*time.Hour, newTestMetrics(), discardLogger())
	c.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	products := []model.Product{{ID: "p1", Name: "Milk", Stock: 0, MinBalance: fptr(5), GroupPath: "Dairy"}}
	c.Process(ctx, products)

	if len(notifier.sent) != 0 {
		t.Errorf("alerts sent on cancelled context: %v", notifier.sent)
	}
	if store.saveCalls != 1 {
		t.Fatalf("save calls = %d, want 1", store.saveCalls)
	}
	if !store.saved["p1"].ZeroReported {
		t.Errorf("saved state = %+v, want zero reported", store.saved["p1"])
	}
}

func TestStockCheckerNotifierFailureKeepsState(t *testing.T) {
	store := &fakeStockStore{}
	notifier := &fakeNotifier{fail: true}
	c := NewStockChecker(store, notifier, 30*24*time.Hour, newTestMetrics(), discardLogger())
	c.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	products := []model.Product{{ID: "p1", Name: "Milk", Stock: 0, MinBalance: fptr(5), GroupPath: "Dairy"}}
	c.Process(context.Background(), products)

	if len(notifier.sent) != 1 {
		t.Fatalf("got %d batches, want 1 attempted", len(notifier.sent))
	}
	if !store.saved["p1"].ZeroReported {
		t.Errorf("saved state = %+v, want zero reported even when delivery failed", store.saved["p1"])
	}
}
