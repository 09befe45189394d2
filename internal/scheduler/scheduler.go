package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"warehouse_bot/internal/metrics"
	"warehouse_bot/internal/model"
)

// ProductSource loads the full product list for one check cycle.
type ProductSource interface {
	FetchAllProducts(ctx context.Context) ([]model.Product, error)
}

// Checker inspects the product list and reports changes since the
// previous run.
type Checker interface {
	Name() string
	Process(ctx context.Context, products []model.Product)
}

// Scheduler periodically fetches the product list and runs every
// checker over it.
type Scheduler struct {
	source       ProductSource
	checkers     []Checker
	interval     time.Duration
	cycleTimeout time.Duration
	metrics      *metrics.Metrics
	log          *slog.Logger

	mu      sync.Mutex
	nextRun time.Time
}

// New creates a Scheduler. interval is the pause between cycles,
// cycleTimeout bounds how long a single cycle may take.
func New(source ProductSource, checkers []Checker, interval, cycleTimeout time.Duration, m *metrics.Metrics, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 12 * time.Hour
	}
	if cycleTimeout <= 0 {
		cycleTimeout = 5 * time.Minute
	}
	return &Scheduler{
		source:       source,
		checkers:     checkers,
		interval:     interval,
		cycleTimeout: cycleTimeout,
		metrics:      m,
		log:          log,
	}
}

// NextRun reports when the next cycle is due. The zero time means the
// scheduler has not started yet.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun
}

func (s *Scheduler) storeNextRun(t time.Time) {
	s.mu.Lock()
	s.nextRun = t
	s.mu.Unlock()
}

// Run starts the cycle loop, blocking until ctx is cancelled. The first
// cycle runs immediately.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.storeNextRun(time.Now().Add(s.interval))
	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.storeNextRun(now.Add(s.interval))
			s.runCycle(ctx)
		}
	}
}

// runCycle fetches the product list once and hands it to every checker
// in order. A panic in a checker abandons the cycle but never the loop.
func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	log := s.log.With("cycle_id", uuid.NewString())
	defer func() {
		if r := recover(); r != nil {
			log.Error("check cycle panicked", "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	defer cancel()

	log.Info("check cycle started")
	s.metrics.CyclesTotal.Inc()
	start := time.Now()

	products, err := s.source.FetchAllProducts(ctx)
	if err != nil {
		log.Error("fetch products, cycle abandoned", "error", err)
		return
	}
	if len(products) == 0 {
		log.Warn("product list came back empty, keeping previous state")
		return
	}

	for _, c := range s.checkers {
		if ctx.Err() != nil {
			log.Warn("cycle deadline hit, skipping remaining checkers", "checker", c.Name())
			break
		}
		c.Process(ctx, products)
	}

	elapsed := time.Since(start)
	s.metrics.CycleDuration.Observe(elapsed.Seconds())
	log.Info("check cycle finished", "products", len(products), "elapsed", elapsed)
}
