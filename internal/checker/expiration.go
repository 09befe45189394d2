package checker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"warehouse_bot/internal/metrics"
	"warehouse_bot/internal/model"
	"warehouse_bot/internal/notify"
)

// Alert kinds reported by the expiration checker.
const (
	alertExpired = "expired"
	alertNear    = "near"
	alertUrgent  = "urgent"
)

// Near-expiry tiers within the watch window: an informational alert at
// nearTierDays or more, an urgent one at urgentTierDays or less.
const (
	nearTierDays   = 7
	urgentTierDays = 3
)

// dateKeyLayout keys an expiration epoch. A product whose date moves to
// a different day starts a fresh epoch with all flags cleared.
const dateKeyLayout = "2006-01-02"

// ExpirationChecker flags products whose expiration date is close or
// already behind.
type ExpirationChecker struct {
	store    ExpirationStore
	notifier Notifier
	maxAge   time.Duration
	nearDays int
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

// NewExpirationChecker creates an ExpirationChecker. nearDays is the
// upper bound of the watch window in days before the date.
func NewExpirationChecker(store ExpirationStore, notifier Notifier, maxAge time.Duration, nearDays int, m *metrics.Metrics, log *slog.Logger) *ExpirationChecker {
	if nearDays <= 0 {
		nearDays = nearTierDays
	}
	return &ExpirationChecker{
		store:    store,
		notifier: notifier,
		maxAge:   maxAge,
		nearDays: nearDays,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Name implements Checker.
func (c *ExpirationChecker) Name() string { return "expiration" }

// Process implements Checker.
func (c *ExpirationChecker) Process(ctx context.Context, products []model.Product) {
	if reset, err := c.store.ResetStaleExpirationStates(ctx, c.maxAge); err != nil {
		c.log.Warn("expiration staleness check failed", "error", err)
	} else if reset {
		c.log.Info("expiration state store was stale, starting fresh")
	}

	states, err := c.store.LoadExpirationStates(ctx)
	if err != nil {
		c.log.Error("load expiration states, treating store as empty", "error", err)
		states = make(map[string]model.ExpirationState)
	}

	batch := notify.NewBatch()
	var checked, expired, near int
	for _, p := range products {
		if !p.NeedsExpirationCheck() {
			delete(states, p.ID)
			continue
		}
		checked++

		alert, kind, next := evaluateExpiration(p, states[p.ID], c.nearDays, c.now())
		states[p.ID] = next
		if alert != "" {
			batch.Add(p.GroupPath, alert)
			c.metrics.AlertsSent.WithLabelValues(c.Name(), kind).Inc()
			if kind == alertExpired {
				expired++
			} else {
				near++
			}
		}
	}

	for _, g := range batch.Groups() {
		if ctx.Err() != nil {
			c.log.Warn("expiration check interrupted, dropping remaining alerts", "category", g.Category)
			break
		}
		if !c.notifier.Send(ctx, "⏳ Expiration alerts: "+g.Category, g.Alerts) {
			c.log.Warn("expiration alert batch not delivered", "category", g.Category, "alerts", len(g.Alerts))
		}
	}

	if err := c.store.SaveExpirationStates(context.WithoutCancel(ctx), states); err != nil {
		c.log.Error("save expiration states", "error", err)
	}

	c.metrics.ProductsChecked.WithLabelValues(c.Name()).Add(float64(checked))
	c.log.Info("expiration check finished",
		"products", checked,
		"alerts", batch.Total(),
		"expired", expired,
		"near_expiry", near)
}

// evaluateExpiration compares a product's expiration date against its
// stored epoch record and returns the alert to emit (empty for none),
// the alert kind, and the record to store.
//
// Every alert fires at most once per epoch. The watch window spans
// [0, nearDays] days before the date; inside it, the informational tier
// fires at nearTierDays or above and the urgent tier at urgentTierDays
// or below. Days in between stay quiet, matching the default tiers
// where day 7 informs and days 0 to 3 urge.
func evaluateExpiration(p model.Product, prev model.ExpirationState, nearDays int, now time.Time) (string, string, model.ExpirationState) {
	dateKey := p.ExpirationDate.Format(dateKeyLayout)
	next := prev
	if prev.ExpirationDate != dateKey {
		next = model.ExpirationState{ExpirationDate: dateKey}
	}

	daysLeft := daysUntil(*p.ExpirationDate, now)
	switch {
	case daysLeft < 0:
		if !next.WasExpired {
			next.WasExpired = true
			return expiredAlert(p), alertExpired, next
		}
	case daysLeft <= nearDays:
		if daysLeft >= nearTierDays && !next.NearNotified {
			next.NearNotified = true
			return nearAlert(p, daysLeft, false), alertNear, next
		}
		if daysLeft <= urgentTierDays && !next.UrgentNotified {
			next.UrgentNotified = true
			return nearAlert(p, daysLeft, true), alertUrgent, next
		}
	}
	return "", "", next
}

// daysUntil counts whole days from now to the date, negative once the
// date is behind. Flooring keeps "expires in 0 days" meaning today and
// makes any moment past the date count as expired.
func daysUntil(date, now time.Time) int {
	return int(math.Floor(date.Sub(now).Hours() / 24))
}

func expiredAlert(p model.Product) string {
	return fmt.Sprintf("🚨 %s has expired\nExpiration date: %s",
		p.Name, p.ExpirationDate.Format("02.01.2006"))
}

func nearAlert(p model.Product, daysLeft int, urgent bool) string {
	icon := "🟡"
	if urgent {
		icon = "🔴"
	}
	return fmt.Sprintf("%s %s expires %s\nExpiration date: %s",
		icon, p.Name, daysLeftLabel(daysLeft), p.ExpirationDate.Format("02.01.2006"))
}

func daysLeftLabel(d int) string {
	switch d {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	}
	return fmt.Sprintf("in %d days", d)
}
