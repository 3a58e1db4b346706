// Package screener applies the liquidity and trend filters that turn a raw
// list of ticker proposals into a robust candidate list.
package screener

import (
	"context"
	"fmt"
	"log"

	"github.com/dansontsui/aistock-analysis/internal/analysis"
	"github.com/dansontsui/aistock-analysis/internal/marketdata"
	"github.com/dansontsui/aistock-analysis/internal/models"
)

const (
	sharesPerLot = 1000
	minBars      = 20
	maPeriod     = 20
	rsiPeriod    = 14
)

// Screener filters candidates on per-code market state. The result does not
// depend on input order, only on each code's own history at fetch time.
type Screener struct {
	market        marketdata.Service
	minVolumeLots int64
}

// New creates a Screener with the given volume floor in board lots.
func New(market marketdata.Service, minVolumeLots int64) *Screener {
	return &Screener{market: market, minVolumeLots: minVolumeLots}
}

// Screen deduplicates the raw candidates (first metadata wins) and keeps only
// codes whose latest bar clears the volume floor and whose close holds the
// 20-bar average. Codes with unavailable or short history are dropped, never
// erred: one bad ticker must not abort the batch.
func (s *Screener) Screen(ctx context.Context, raw []models.Candidate) []models.ScreenedCandidate {
	seen := make(map[string]bool)
	unique := make([]models.Candidate, 0, len(raw))
	for _, c := range raw {
		code := models.CanonicalCode(c.Code)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		c.Code = code
		unique = append(unique, c)
	}

	log.Printf("[Screener] checking %d unique candidates", len(unique))
	passed := make([]models.ScreenedCandidate, 0, len(unique))

	for _, c := range unique {
		series, err := s.market.History(ctx, c.Code)
		if err != nil {
			log.Printf("[Screener] %s dropped: %v", c.Code, err)
			continue
		}
		if len(series.Bars) < minBars {
			log.Printf("[Screener] %s dropped: only %d bars", c.Code, len(series.Bars))
			continue
		}

		last := series.Last()
		volumeLots := int64(last.Volume) / sharesPerLot
		if volumeLots < s.minVolumeLots {
			log.Printf("[Screener] %s dropped: volume %d lots below floor", c.Code, volumeLots)
			continue
		}

		closes := series.Closes()
		ma20, err := analysis.SMA(closes, maPeriod)
		if err != nil {
			continue
		}
		if last.Close < ma20 {
			log.Printf("[Screener] %s dropped: close %.2f below MA20 %.2f", c.Code, last.Close, ma20)
			continue
		}

		rsi, _ := analysis.RSI(closes, rsiPeriod)
		passed = append(passed, models.ScreenedCandidate{
			Code:       c.Code,
			Name:       c.Name,
			Industry:   c.Industry,
			Reason:     c.Reason,
			Price:      last.Close,
			VolumeLots: volumeLots,
			TechNote:   fmt.Sprintf("Price(%.2f) > MA20(%.2f) | RSI=%.1f", last.Close, ma20, rsi),
		})
	}

	log.Printf("[Screener] %d of %d candidates passed", len(passed), len(unique))
	return passed
}
