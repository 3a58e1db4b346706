package analysis

import (
	"fmt"

	"github.com/dansontsui/aistock-analysis/internal/models"
)

const (
	maShortPeriod = 5
	maMidPeriod   = 20
	maLongPeriod  = 60
	rsiPeriod     = 14
)

// Config holds the classifier thresholds. The RSI bands are exclusive on both
// sides: an RSI exactly on a band stays in the neutral branch.
type Config struct {
	RSIBuyAbove  float64
	RSISellBelow float64
	MinBars      int
}

// DefaultConfig returns the product's fixed thresholds.
func DefaultConfig() Config {
	return Config{RSIBuyAbove: 55, RSISellBelow: 45, MinBars: 60}
}

// Analyzer turns a price history into a buy/hold/sell signal. It is a pure
// classifier: no I/O, no retained state.
type Analyzer struct {
	cfg Config
}

// New creates an Analyzer with the given thresholds.
func New(cfg Config) *Analyzer {
	if cfg.MinBars <= 0 {
		cfg.MinBars = maLongPeriod
	}
	return &Analyzer{cfg: cfg}
}

// Analyze classifies a single symbol from its price series. A series shorter
// than MinBars yields a NEUTRAL signal with reason "insufficient data";
// callers must treat that as "no opinion", never as an error.
func (a *Analyzer) Analyze(series *models.PriceSeries) models.TechnicalSignal {
	sig := models.TechnicalSignal{
		Action:  models.ActionNeutral,
		Signals: []models.SignalTag{},
	}
	if series != nil {
		sig.Code = models.CanonicalCode(series.Code)
	}
	if series == nil || len(series.Bars) < a.cfg.MinBars {
		sig.Reason = "insufficient data"
		sig.RSI = 50
		return sig
	}

	closes := series.Closes()
	last := closes[len(closes)-1]
	prev := closes[len(closes)-2]
	sig.Price = last
	sig.Change = last - prev

	sig.MA5, _ = SMA(closes, maShortPeriod)
	sig.MA20, _ = SMA(closes, maMidPeriod)
	sig.MA60, _ = SMA(closes, maLongPeriod)
	sig.RSI, _ = RSI(closes, rsiPeriod)

	a.classify(&sig)
	return sig
}

// classify applies the rule ladder: the RSI band decides the hard component
// first, then the MA20 check promotes NEUTRAL to HOLD or demotes HOLD to SELL.
func (a *Analyzer) classify(sig *models.TechnicalSignal) {
	switch {
	case sig.RSI > a.cfg.RSIBuyAbove:
		sig.Signals = append(sig.Signals, models.TagRSIBullish)
		sig.Action = models.ActionBuy
		sig.Reason = fmt.Sprintf("RSI strong (%.1f > %.0f); ", sig.RSI, a.cfg.RSIBuyAbove)
	case sig.RSI < a.cfg.RSISellBelow:
		sig.Signals = append(sig.Signals, models.TagRSIBearish)
		sig.Action = models.ActionSell
		sig.Reason = fmt.Sprintf("RSI weak (%.1f < %.0f); ", sig.RSI, a.cfg.RSISellBelow)
	default:
		sig.Action = models.ActionNeutral
		sig.Reason = fmt.Sprintf("RSI neutral (%.1f); ", sig.RSI)
	}

	if sig.Price > sig.MA20 {
		sig.Signals = append(sig.Signals, models.TagMA20Bullish)
		sig.Reason += fmt.Sprintf("price (%.2f) above MA20 (%.2f)", sig.Price, sig.MA20)
		if sig.Action == models.ActionNeutral {
			sig.Action = models.ActionHold
		}
	} else {
		sig.Signals = append(sig.Signals, models.TagMA20Bearish)
		sig.Reason += fmt.Sprintf("price (%.2f) at or below MA20 (%.2f)", sig.Price, sig.MA20)
		if sig.Action == models.ActionHold {
			sig.Action = models.ActionSell
		}
	}
}
