package models

import "encoding/json"

// ReportData is the structured payload of one rebalance outcome.
type ReportData struct {
	Candidates []ScreenedCandidate `json:"candidates"`
	Finalists  []Position          `json:"finalists"`
	Sold       []SoldPosition      `json:"sold"`
	Themes     []string            `json:"themes,omitempty"`
}

// Report is one persisted, timestamped outcome of a rebalance run. Reports
// form an append-only history; the most recent report by Timestamp is the
// authoritative current portfolio. The only in-place mutations allowed are
// the price refresh and the manual entry-price correction.
type Report struct {
	ID          int64      `json:"id"`
	Date        string     `json:"date"`
	Timestamp   int64      `json:"timestamp"` // epoch milliseconds
	NewsSummary string     `json:"newsSummary"`
	Data        ReportData `json:"data"`
}

// Clone returns a deep copy of the report. Callers mutate positions in
// place (price refresh, entry-price correction), so a report handed out of
// a cache must not share backing arrays with the cached one.
func (r *Report) Clone() *Report {
	c := *r
	c.Data.Candidates = append([]ScreenedCandidate(nil), r.Data.Candidates...)
	c.Data.Finalists = append([]Position(nil), r.Data.Finalists...)
	c.Data.Sold = append([]SoldPosition(nil), r.Data.Sold...)
	c.Data.Themes = append([]string(nil), r.Data.Themes...)
	return &c
}

// MarshalData encodes the nested payload for storage.
func (r *Report) MarshalData() ([]byte, error) {
	return json.Marshal(r.Data)
}

// UnmarshalData decodes a stored payload, normalizing nil collections so
// downstream consumers never see a null finalists list.
func (r *Report) UnmarshalData(raw []byte) error {
	if err := json.Unmarshal(raw, &r.Data); err != nil {
		return err
	}
	if r.Data.Candidates == nil {
		r.Data.Candidates = []ScreenedCandidate{}
	}
	if r.Data.Finalists == nil {
		r.Data.Finalists = []Position{}
	}
	if r.Data.Sold == nil {
		r.Data.Sold = []SoldPosition{}
	}
	return nil
}
