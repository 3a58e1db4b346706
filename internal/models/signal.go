package models

// Action is the classifier's verdict for a single symbol.
type Action string

const (
	ActionBuy     Action = "BUY"
	ActionHold    Action = "HOLD"
	ActionSell    Action = "SELL"
	ActionNeutral Action = "NEUTRAL"
)

// SignalTag labels an individual technical condition that fired.
type SignalTag string

const (
	TagRSIBullish  SignalTag = "RSI_BULLISH"
	TagRSIBearish  SignalTag = "RSI_BEARISH"
	TagMA20Bullish SignalTag = "MA20_BULLISH"
	TagMA20Bearish SignalTag = "MA20_BEARISH"
)

// TechnicalSignal is the full output of the signal analyzer for one symbol.
// It is derived purely from a PriceSeries and recomputed each run.
type TechnicalSignal struct {
	Code    string      `json:"code"`
	Price   float64     `json:"price"`
	Change  float64     `json:"change"`
	RSI     float64     `json:"rsi"`
	MA5     float64     `json:"ma5"`
	MA20    float64     `json:"ma20"`
	MA60    float64     `json:"ma60"`
	Signals []SignalTag `json:"signals"`
	Action  Action      `json:"action"`
	Reason  string      `json:"reason"`
}

// HasTag reports whether the given tag fired.
func (t *TechnicalSignal) HasTag(tag SignalTag) bool {
	for _, s := range t.Signals {
		if s == tag {
			return true
		}
	}
	return false
}
