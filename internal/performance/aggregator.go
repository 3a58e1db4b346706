// Package performance computes realized and unrealized portfolio statistics
// from the append-only snapshot history.
package performance

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dansontsui/aistock-analysis/internal/models"
)

// DefaultWindows is the set of look-back windows reported by the API, in
// days. Zero means unbounded.
var DefaultWindows = []int{30, 90, 180, 365, 0}

type trade struct {
	roi decimal.Decimal
	at  time.Time
}

// Aggregate flattens every sold entry across the report history into one
// trade log and computes per-window realized stats, plus the unrealized
// stats of the latest report's open book under the "currentHoldings" key.
// Reports are expected newest-first, as returned by the store.
func Aggregate(reports []models.Report, windowsDays []int, now time.Time) models.PerformanceSummary {
	var trades []trade
	for _, rep := range reports {
		snapAt := time.UnixMilli(rep.Timestamp)
		for _, s := range rep.Data.Sold {
			at := snapAt
			if s.SoldDate != "" {
				if d, err := time.Parse("2006-01-02", s.SoldDate); err == nil {
					at = d
				}
			}
			trades = append(trades, trade{roi: s.ROI, at: at})
		}
	}

	summary := models.PerformanceSummary{
		Windows: make(map[string]models.WindowStats, len(windowsDays)),
	}
	for _, days := range windowsDays {
		cutoff := time.Time{}
		if days > 0 {
			cutoff = now.AddDate(0, 0, -days)
		}
		var rois []decimal.Decimal
		for _, t := range trades {
			if days == 0 || !t.at.Before(cutoff) {
				rois = append(rois, t.roi)
			}
		}
		summary.Windows[windowKey(days)] = stats(rois)
	}

	if len(reports) > 0 {
		var open []decimal.Decimal
		for _, pos := range reports[0].Data.Finalists {
			open = append(open, pos.ROI)
		}
		summary.CurrentHoldings = stats(open)
	}
	return summary
}

func windowKey(days int) string {
	if days == 0 {
		return "all"
	}
	return strconv.Itoa(days) + "d"
}

// stats computes {count, wins, winRate, avgRoi, totalRoi} over a set of ROI
// values. Everything is zero for an empty set.
func stats(rois []decimal.Decimal) models.WindowStats {
	ws := models.WindowStats{Count: len(rois)}
	if ws.Count == 0 {
		return ws
	}
	for _, r := range rois {
		ws.TotalROI = ws.TotalROI.Add(r)
		if r.IsPositive() {
			ws.Wins++
		}
	}
	n := decimal.NewFromInt(int64(ws.Count))
	ws.WinRate = decimal.NewFromInt(int64(ws.Wins)).Div(n).Mul(decimal.NewFromInt(100))
	ws.AvgROI = ws.TotalROI.Div(n)
	return ws
}
