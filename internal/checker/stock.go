package checker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"warehouse_bot/internal/metrics"
	"warehouse_bot/internal/model"
	"warehouse_bot/internal/notify"
)

// Alert kinds reported by the stock checker.
const (
	alertZero     = "zero"
	alertBelowMin = "below_min"
)

// StockChecker flags products that ran out or fell below their minimum
// balance since the previous run.
type StockChecker struct {
	store    StockStore
	notifier Notifier
	maxAge   time.Duration
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

// NewStockChecker creates a StockChecker. maxAge bounds how old the
// state store may grow before it is discarded wholesale.
func NewStockChecker(store StockStore, notifier Notifier, maxAge time.Duration, m *metrics.Metrics, log *slog.Logger) *StockChecker {
	return &StockChecker{
		store:    store,
		notifier: notifier,
		maxAge:   maxAge,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Name implements Checker.
func (c *StockChecker) Name() string { return "stock" }

// Process implements Checker. Products that lost their minimum balance
// are pruned from the state map; products gone from the list entirely
// keep their records until the age-based store reset clears them.
func (c *StockChecker) Process(ctx context.Context, products []model.Product) {
	if reset, err := c.store.ResetStaleStockStates(ctx, c.maxAge); err != nil {
		c.log.Warn("stock staleness check failed", "error", err)
	} else if reset {
		c.log.Info("stock state store was stale, starting fresh")
	}

	states, err := c.store.LoadStockStates(ctx)
	if err != nil {
		c.log.Error("load stock states, treating store as empty", "error", err)
		states = make(map[string]model.StockState)
	}

	batch := notify.NewBatch()
	var checked, zeroStock, belowMin int
	for _, p := range products {
		if !p.NeedsStockCheck() {
			delete(states, p.ID)
			continue
		}
		checked++

		alert, kind, next := evaluateStock(p, states[p.ID], c.now())
		states[p.ID] = next
		if next.ZeroReported {
			zeroStock++
		} else if next.BelowMinReported {
			belowMin++
		}
		if alert != "" {
			batch.Add(p.GroupPath, alert)
			c.metrics.AlertsSent.WithLabelValues(c.Name(), kind).Inc()
		}
	}

	for _, g := range batch.Groups() {
		if ctx.Err() != nil {
			c.log.Warn("stock check interrupted, dropping remaining alerts", "category", g.Category)
			break
		}
		if !c.notifier.Send(ctx, "📊 Stock alerts: "+g.Category, g.Alerts) {
			c.log.Warn("stock alert batch not delivered", "category", g.Category, "alerts", len(g.Alerts))
		}
	}

	// Persist even when the cycle got cancelled mid-way, so the next run
	// continues from what this one saw.
	if err := c.store.SaveStockStates(context.WithoutCancel(ctx), states); err != nil {
		c.log.Error("save stock states", "error", err)
	}

	c.metrics.ProductsChecked.WithLabelValues(c.Name()).Add(float64(checked))
	c.log.Info("stock check finished",
		"products", checked,
		"alerts", batch.Total(),
		"zero_stock", zeroStock,
		"below_min", belowMin)
}

// evaluateStock compares a product against its previous record and
// returns the alert to emit (empty for none), the alert kind, and the
// record to store. The zero value of prev stands for a never-seen
// product.
//
// Zero stock alerts once and stays silent until the product restocks
// above zero. Below-minimum alerts once, and again only after the stock
// recovered above the minimum and fell back.
func evaluateStock(p model.Product, prev model.StockState, now time.Time) (string, string, model.StockState) {
	minBalance := *p.MinBalance
	isZero := p.Stock <= 0
	isBelow := p.Stock <= minBalance

	next := model.StockState{
		LastStock:        p.Stock,
		BelowMinReported: isBelow,
		ZeroReported:     isZero,
		LastCheck:        now,
	}

	switch {
	case isZero && !prev.ZeroReported:
		return zeroAlert(p, minBalance, now), alertZero, next
	case !isZero && isBelow && (!prev.BelowMinReported || prev.LastStock > minBalance):
		return belowMinAlert(p, minBalance, now), alertBelowMin, next
	}
	return "", "", next
}

func zeroAlert(p model.Product, minBalance float64, now time.Time) string {
	return fmt.Sprintf("🛑 %s is out of stock\nStock: %s (minimum: %s)\n%s",
		p.Name, formatQty(p.Stock), formatQty(minBalance), now.Format("02.01.2006 15:04"))
}

func belowMinAlert(p model.Product, minBalance float64, now time.Time) string {
	return fmt.Sprintf("⚠️ %s reached its minimum balance\nStock: %s (minimum: %s)\n%s",
		p.Name, formatQty(p.Stock), formatQty(minBalance), now.Format("02.01.2006 15:04"))
}

func formatQty(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
