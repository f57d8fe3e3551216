package model

import "time"

// Signal is the derived trading action for one row.
type Signal string

const (
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
	SignalHold Signal = "hold"
)

// IndicatorRecord carries the technical indicator values for one
// (symbol, date) price row. Indicator fields are nil until the series is
// long enough to warm the corresponding window up; they are never filled
// with a numeric placeholder.
type IndicatorRecord struct {
	Symbol     string
	Date       time.Time
	RSI        map[int]*float64 // keyed by period, e.g. 6, 12, 24
	MACD       *float64
	MACDSignal *float64
	MACDHist   *float64
	Signal     Signal
}

// RSIAt returns the RSI value for the given period, or nil when the period
// was not computed or is still inside its warm-up window.
func (r *IndicatorRecord) RSIAt(period int) *float64 {
	if r == nil || r.RSI == nil {
		return nil
	}
	return r.RSI[period]
}
