package model

import "time"

// Source identifies the external provider a row came from.
type Source string

const (
	SourceMOEX  Source = "moex"
	SourceYahoo Source = "yahoo"
)

// AssetClass categorizes a tracked instrument.
type AssetClass string

const (
	ClassEquity AssetClass = "equity"
	ClassIndex  AssetClass = "index"
	ClassCrypto AssetClass = "crypto"
	ClassMetal  AssetClass = "metal"
)

// Interval is the native periodicity of a provider series.
type Interval string

const (
	Interval1D Interval = "1d"
	Interval1W Interval = "1wk"
)

// PricePoint is one normalized price row for a symbol on a calendar day.
// Close is mandatory; the remaining OHLCV fields are nil when the provider
// did not report them.
type PricePoint struct {
	Symbol   string
	Date     time.Time // calendar day, UTC midnight
	Open     *float64
	High     *float64
	Low      *float64
	Close    float64
	Volume   *int64
	Source   Source
	Interval Interval
	Currency string
}

// Day truncates t to a timezone-naive calendar day in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
