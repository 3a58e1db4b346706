package models

import "time"

// Bar represents a single daily OHLCV candlestick.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries holds the daily history for one symbol, ascending by date.
// A series is immutable once fetched for a given run.
type PriceSeries struct {
	Code      string
	Bars      []Bar
	FetchedAt time.Time
}

// Closes extracts the closing prices in bar order.
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Last returns the most recent bar, or a zero Bar when the series is empty.
func (s *PriceSeries) Last() Bar {
	if len(s.Bars) == 0 {
		return Bar{}
	}
	return s.Bars[len(s.Bars)-1]
}

// Candidate is a raw ticker proposal before any technical screening.
type Candidate struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Price    float64 `json:"price,omitempty"`
	Reason   string  `json:"reason,omitempty"`
	Industry string  `json:"industry,omitempty"`
}

// ScreenedCandidate is a candidate that survived the liquidity and trend filters.
type ScreenedCandidate struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Industry   string  `json:"industry,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Price      float64 `json:"price"`
	VolumeLots int64   `json:"volume"`
	TechNote   string  `json:"tech_note"`
}
