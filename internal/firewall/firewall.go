// Package firewall partitions the open book into positions that must survive
// a rebalance and positions eligible for forced exit, from technical state
// alone. The partition is computed before any external proposal is requested
// and is never overridden by proposal content.
package firewall

import (
	"context"
	"log"

	"github.com/dansontsui/aistock-analysis/internal/analysis"
	"github.com/dansontsui/aistock-analysis/internal/marketdata"
	"github.com/dansontsui/aistock-analysis/internal/models"
)

// Partition is the firewall verdict for the current open book.
type Partition struct {
	Keepers []models.Position
	Leavers []models.Position
	// Signals maps canonical code to the computed signal, for prompt
	// context and for sold-reason attribution downstream.
	Signals map[string]models.TechnicalSignal
}

// LeaverReasons returns the technical sell reason per leaver code.
func (p *Partition) LeaverReasons() map[string]string {
	reasons := make(map[string]string, len(p.Leavers))
	for _, pos := range p.Leavers {
		if sig, ok := p.Signals[models.CanonicalCode(pos.Code)]; ok {
			reasons[models.CanonicalCode(pos.Code)] = "technical sell signal: " + sig.Reason
		}
	}
	return reasons
}

// Firewall classifies held positions with the signal analyzer.
type Firewall struct {
	market   marketdata.Service
	analyzer *analysis.Analyzer
}

// New creates a Firewall.
func New(market marketdata.Service, analyzer *analysis.Analyzer) *Firewall {
	return &Firewall{market: market, analyzer: analyzer}
}

// Split computes each open position's signal and partitions the book: a
// position is a leaver iff its action is SELL; everything else - including
// positions with unavailable data (NEUTRAL) - is a keeper. Fetch failures
// degrade to "no opinion", they never abort the partition.
func (f *Firewall) Split(ctx context.Context, open []models.Position) Partition {
	part := Partition{
		Keepers: []models.Position{},
		Leavers: []models.Position{},
		Signals: make(map[string]models.TechnicalSignal, len(open)),
	}

	for _, pos := range open {
		code := models.CanonicalCode(pos.Code)
		sig := models.TechnicalSignal{Code: code, Action: models.ActionNeutral, Reason: "insufficient data", RSI: 50}

		series, err := f.market.History(ctx, code)
		if err != nil {
			log.Printf("[Firewall] %s history unavailable, keeping: %v", code, err)
		} else {
			sig = f.analyzer.Analyze(series)
		}
		part.Signals[code] = sig

		if sig.Action == models.ActionSell {
			log.Printf("[Firewall] %s flagged as leaver: %s", code, sig.Reason)
			part.Leavers = append(part.Leavers, pos)
		} else {
			part.Keepers = append(part.Keepers, pos)
		}
	}

	return part
}
