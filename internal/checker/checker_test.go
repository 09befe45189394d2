package checker

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"warehouse_bot/internal/metrics"
	"warehouse_bot/internal/model"
)

// sentBatch records one Send call observed by fakeNotifier.
type sentBatch struct {
	Header string
	Alerts []string
}

type fakeNotifier struct {
	sent []sentBatch
	fail bool
}

func (n *fakeNotifier) Send(ctx context.Context, header string, alerts []string) bool {
	n.sent = append(n.sent, sentBatch{Header: header, Alerts: alerts})
	return !n.fail
}

type fakeStockStore struct {
	states    map[string]model.StockState
	stale     bool
	resetErr  error
	loadErr   error
	saved     map[string]model.StockState
	saveCalls int
}

func (s *fakeStockStore) LoadStockStates(ctx context.Context) (map[string]model.StockState, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make(map[string]model.StockState, len(s.states))
	for k, v := range s.states {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStockStore) SaveStockStates(ctx context.Context, states map[string]model.StockState) error {
	s.saveCalls++
	s.saved = states
	s.states = states
	return nil
}

func (s *fakeStockStore) ResetStaleStockStates(ctx context.Context, maxAge time.Duration) (bool, error) {
	if s.resetErr != nil {
		return false, s.resetErr
	}
	if s.stale {
		s.stale = false
		s.states = nil
		return true, nil
	}
	return false, nil
}

type fakeExpirationStore struct {
	states map[string]model.ExpirationState
	saved  map[string]model.ExpirationState
}

func (s *fakeExpirationStore) LoadExpirationStates(ctx context.Context) (map[string]model.ExpirationState, error) {
	out := make(map[string]model.ExpirationState, len(s.states))
	for k, v := range s.states {
		out[k] = v
	}
	return out, nil
}

func (s *fakeExpirationStore) SaveExpirationStates(ctx context.Context, states map[string]model.ExpirationState) error {
	s.saved = states
	s.states = states
	return nil
}

func (s *fakeExpirationStore) ResetStaleExpirationStates(ctx context.Context, maxAge time.Duration) (bool, error) {
	return false, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func fptr(f float64) *float64 { return &f }
