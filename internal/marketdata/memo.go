package marketdata

import (
	"context"
	"sync"

	"github.com/dansontsui/aistock-analysis/internal/models"
)

// Memo wraps a Service with a per-run cache so the same code is never fetched
// twice within one rebalance run. A series is immutable once fetched for a
// given run, so memoizing the first answer is correct, not just cheaper.
type Memo struct {
	svc Service

	mu       sync.Mutex
	series   map[string]*models.PriceSeries
	seriesNo map[string]error
	prices   map[string]float64
}

// NewMemo creates a fresh memo for one run.
func NewMemo(svc Service) *Memo {
	return &Memo{
		svc:      svc,
		series:   make(map[string]*models.PriceSeries),
		seriesNo: make(map[string]error),
		prices:   make(map[string]float64),
	}
}

func (m *Memo) History(ctx context.Context, code string) (*models.PriceSeries, error) {
	key := models.CanonicalCode(code)

	m.mu.Lock()
	if s, ok := m.series[key]; ok {
		m.mu.Unlock()
		return s, nil
	}
	if err, ok := m.seriesNo[key]; ok {
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	s, err := m.svc.History(ctx, code)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.seriesNo[key] = err
		return nil, err
	}
	m.series[key] = s
	return s, nil
}

func (m *Memo) Price(ctx context.Context, code string) float64 {
	key := models.CanonicalCode(code)

	m.mu.Lock()
	if p, ok := m.prices[key]; ok {
		m.mu.Unlock()
		return p
	}
	m.mu.Unlock()

	p := m.svc.Price(ctx, code)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[key] = p
	return p
}
