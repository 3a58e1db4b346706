package models

import "github.com/shopspring/decimal"

// WindowStats aggregates realized or unrealized performance over one window.
// All values are zero when Count is zero.
type WindowStats struct {
	Count    int             `json:"count"`
	Wins     int             `json:"wins"`
	WinRate  decimal.Decimal `json:"winRate"`
	AvgROI   decimal.Decimal `json:"avgRoi"`
	TotalROI decimal.Decimal `json:"totalRoi"`
}

// PerformanceSummary is the full output of the performance aggregator:
// realized trade stats per rolling window plus the unrealized stats of the
// latest open book.
type PerformanceSummary struct {
	Windows         map[string]WindowStats `json:"windows"`
	CurrentHoldings WindowStats            `json:"currentHoldings"`
}
