package checker

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"warehouse_bot/internal/model"
)

func TestEvaluateExpiration(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name      string
		date      time.Time
		nearDays  int
		prev      model.ExpirationState
		wantKind  string
		wantAlert string
		wantNext  model.ExpirationState
	}{
		{
			name:      "a week out informs",
			date:      day(17),
			wantKind:  alertNear,
			wantAlert: "🟡 Milk expires in 7 days\nExpiration date: 17.03.2026",
			wantNext:  model.ExpirationState{ExpirationDate: "2026-03-17", NearNotified: true},
		},
		{
			name:     "informational fires once per date",
			date:     day(17),
			prev:     model.ExpirationState{ExpirationDate: "2026-03-17", NearNotified: true},
			wantNext: model.ExpirationState{ExpirationDate: "2026-03-17", NearNotified: true},
		},
		{
			name:      "three days out urges",
			date:      day(13),
			wantKind:  alertUrgent,
			wantAlert: "🔴 Milk expires in 3 days\nExpiration date: 13.03.2026",
			wantNext:  model.ExpirationState{ExpirationDate: "2026-03-13", UrgentNotified: true},
		},
		{
			name:     "urgent fires once per date",
			date:     day(13),
			prev:     model.ExpirationState{ExpirationDate: "2026-03-13", UrgentNotified: true},
			wantNext: model.ExpirationState{ExpirationDate: "2026-03-13", UrgentNotified: true},
		},
		{
			name:     "between the tiers stays quiet",
			date:     day(15),
			wantNext: model.ExpirationState{ExpirationDate: "2026-03-15"},
		},
		{
			name:      "expires today",
			date:      day(10),
			wantKind:  alertUrgent,
			wantAlert: "🔴 Milk expires today\nExpiration date: 10.03.2026",
			wantNext:  model.ExpirationState{ExpirationDate: "2026-03-10", UrgentNotified: true},
		},
		{
			name:      "expires tomorrow",
			date:      day(11),
			wantKind:  alertUrgent,
			wantAlert: "🔴 Milk expires tomorrow\nExpiration date: 11.03.2026",
			wantNext:  model.ExpirationState{ExpirationDate: "2026-03-11", UrgentNotified: true},
		},
		{
			name:      "expired yesterday",
			date:      day(9),
			wantKind:  alertExpired,
			wantAlert: "🚨 Milk has expired\nExpiration date: 09.03.2026",
			wantNext:  model.ExpirationState{ExpirationDate: "2026-03-09", WasExpired: true},
		},
		{
			name:     "expired fires once per date",
			date:     day(9),
			prev:     model.ExpirationState{ExpirationDate: "2026-03-09", WasExpired: true},
			wantNext: model.ExpirationState{ExpirationDate: "2026-03-09", WasExpired: true},
		},
		{
			name:     "beyond the watch window",
			date:     day(20),
			wantNext: model.ExpirationState{ExpirationDate: "2026-03-20"},
		},
		{
			name:      "wider window keeps the informational tier",
			date:      day(19),
			nearDays:  10,
			wantKind:  alertNear,
			wantAlert: "🟡 Milk expires in 9 days\nExpiration date: 19.03.2026",
			wantNext:  model.ExpirationState{ExpirationDate: "2026-03-19", NearNotified: true},
		},
		{
			name:      "date change starts a fresh epoch",
			date:      day(13),
			prev:      model.ExpirationState{ExpirationDate: "2026-03-12", WasExpired: true, UrgentNotified: true},
			wantKind:  alertUrgent,
			wantAlert: "🔴 Milk expires in 3 days\nExpiration date: 13.03.2026",
			wantNext:  model.ExpirationState{ExpirationDate: "2026-03-13", UrgentNotified: true},
		},
		{
			name:      "time of day does not push the date out",
			date:      time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC),
			wantKind:  alertUrgent,
			wantAlert: "🔴 Milk expires today\nExpiration date: 10.03.2026",
			wantNext:  model.ExpirationState{ExpirationDate: "2026-03-10", UrgentNotified: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nearDays := tt.nearDays
			if nearDays == 0 {
				nearDays = 7
			}
			p := model.Product{ID: "p1", Name: "Milk", ExpirationDate: &tt.date}

			alert, kind, next := evaluateExpiration(p, tt.prev, nearDays, now)
			if kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", kind, tt.wantKind)
			}
			if alert != tt.wantAlert {
				t.Errorf("alert = %q, want %q", alert, tt.wantAlert)
			}
			if diff := cmp.Diff(tt.wantNext, next); diff != "" {
				t.Errorf("next state mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		date time.Time
		want int
	}{
		{"same moment", now, 0},
		{"later today", now.Add(6 * time.Hour), 0},
		{"a full day ahead", now.Add(24 * time.Hour), 1},
		{"just short of a day", now.Add(24*time.Hour - time.Minute), 0},
		{"an hour behind", now.Add(-time.Hour), -1},
		{"two days behind", now.Add(-48 * time.Hour), -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := daysUntil(tt.date, now); got != tt.want {
				t.Errorf("daysUntil = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExpirationCheckerEpochReset(t *testing.T) {
	store := &fakeExpirationStore{}
	notifier := &fakeNotifier{}
	m := newTestMetrics()
	c := NewExpirationChecker(store, notifier, 30*24*time.Hour, 7, m, discardLogger())
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	products := func(date time.Time) []model.Product {
		return []model.Product{{ID: "p1", Name: "Milk", ExpirationDate: &date, GroupPath: "Dairy"}}
	}
	first := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	moved := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	// Three days out, the urgent tier fires.
	c.Process(context.Background(), products(first))
	want := []sentBatch{{
		Header: "⏳ Expiration alerts: Dairy",
		Alerts: []string{"🔴 Milk expires in 3 days\nExpiration date: 13.03.2026"},
	}}
	if diff := cmp.Diff(want, notifier.sent); diff != "" {
		t.Fatalf("first run mismatch (-want +got):\n%s", diff)
	}

	// Unchanged date stays silent.
	notifier.sent = nil
	c.Process(context.Background(), products(first))
	if len(notifier.sent) != 0 {
		t.Fatalf("second run sent %v, want nothing", notifier.sent)
	}

	// The date moved past the window: fresh epoch, nothing yet.
	c.Process(context.Background(), products(moved))
	if len(notifier.sent) != 0 {
		t.Fatalf("run after date change sent %v, want nothing", notifier.sent)
	}

	// A week before the new date the informational tier fires again.
	now = time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	c.Process(context.Background(), products(moved))
	want = []sentBatch{{
		Header: "⏳ Expiration alerts: Dairy",
		Alerts: []string{"🟡 Milk expires in 7 days\nExpiration date: 20.03.2026"},
	}}
	if diff := cmp.Diff(want, notifier.sent); diff != "" {
		t.Fatalf("final run mismatch (-want +got):\n%s", diff)
	}

	wantState := map[string]model.ExpirationState{"p1": {ExpirationDate: "2026-03-20", NearNotified: true}}
	if diff := cmp.Diff(wantState, store.saved); diff != "" {
		t.Errorf("saved states mismatch (-want +got):\n%s", diff)
	}
	if got := testutil.ToFloat64(m.AlertsSent.WithLabelValues("expiration", "urgent")); got != 1 {
		t.Errorf("urgent alerts counted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AlertsSent.WithLabelValues("expiration", "near")); got != 1 {
		t.Errorf("near alerts counted = %v, want 1", got)
	}
}

func TestExpirationCheckerPrunesDatelessProducts(t *testing.T) {
	store := &fakeExpirationStore{states: map[string]model.ExpirationState{
		"p1": {ExpirationDate: "2026-03-12", UrgentNotified: true},
		"p2": {ExpirationDate: "2026-03-15"},
	}}
	notifier := &fakeNotifier{}
	c := NewExpirationChecker(store, notifier, 30*24*time.Hour, 7, newTestMetrics(), discardLogger())
	c.now = func() time.Time { return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) }

	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	products := []model.Product{
		{ID: "p1", Name: "Milk", GroupPath: "Dairy"},
		{ID: "p2", Name: "Cheese", ExpirationDate: &date, GroupPath: "Dairy"},
	}
	c.Process(context.Background(), products)

	if len(notifier.sent) != 0 {
		t.Errorf("unexpected alerts: %v", notifier.sent)
	}
	want := map[string]model.ExpirationState{"p2": {ExpirationDate: "2026-03-15"}}
	if diff := cmp.Diff(want, store.saved); diff != "" {
		t.Errorf("saved states mismatch (-want +got):\n%s", diff)
	}
}
