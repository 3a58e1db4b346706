package models

import "github.com/shopspring/decimal"

// PositionStatus marks whether a holding entered the book this run or carried over.
type PositionStatus string

const (
	StatusNew  PositionStatus = "NEW"
	StatusHold PositionStatus = "HOLD"
)

// Position is an open holding in the current book.
//
// EntryPrice is set exactly once, the first time a code enters the open book,
// and never changes while the position stays open. The only writers allowed to
// touch it afterwards are the reconciler's first-sight reset (entry price
// missing or zero) and the manual entry-price correction endpoint.
type Position struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Industry     string          `json:"industry,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	EntryPrice   decimal.Decimal `json:"entryPrice"`
	EntryDate    string          `json:"entryDate"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	ROI          decimal.Decimal `json:"roi"`
	Status       PositionStatus  `json:"status"`
}

// SoldPosition records a holding that left the book. Created exactly once,
// immutable afterward.
type SoldPosition struct {
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
	ExitPrice  decimal.Decimal `json:"exitPrice"`
	ROI        decimal.Decimal `json:"roi"`
	Reason     string          `json:"reason"`
	SoldDate   string          `json:"soldDate"`
}

var oneHundred = decimal.NewFromInt(100)

// ComputeROI returns (current - entry) / entry * 100, or zero when the entry
// price is zero so a missing entry never produces a divide-by-zero or a
// nonsense percentage.
func ComputeROI(entry, current decimal.Decimal) decimal.Decimal {
	if entry.IsZero() {
		return decimal.Zero
	}
	return current.Sub(entry).Div(entry).Mul(oneHundred)
}

// ProposedEntry is one entry of the untrusted external proposal. Fields are
// whatever the upstream model claims; the reconciler is the sole authority
// that enforces validity.
type ProposedEntry struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Industry     string  `json:"industry,omitempty"`
	Reason       string  `json:"reason,omitempty"`
	EntryPrice   float64 `json:"entryPrice,omitempty"`
	CurrentPrice float64 `json:"currentPrice,omitempty"`
	Status       string  `json:"status,omitempty"`
}
