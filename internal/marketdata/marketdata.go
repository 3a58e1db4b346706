// Package marketdata implements the price and history boundary of the
// rebalancing engine. Prices resolve to 0 when unavailable, never an error,
// so callers can apply fallback logic uniformly; histories return an error
// which callers treat as "no opinion" data degradation.
package marketdata

import (
	"context"
	"time"

	"github.com/dansontsui/aistock-analysis/internal/models"
)

// Service is the engine-facing market data contract.
type Service interface {
	// History returns at least ~200 calendar days of daily bars, ascending
	// by date. An error means the symbol's history is unavailable.
	History(ctx context.Context, code string) (*models.PriceSeries, error)
	// Price returns the latest tradable price, or 0 when unavailable.
	Price(ctx context.Context, code string) float64
}

// PriceCache is an optional write-through cache for spot prices.
type PriceCache interface {
	GetPrice(ctx context.Context, code string) (float64, error)
	SetPrice(ctx context.Context, code string, price float64, ttl time.Duration) error
}
