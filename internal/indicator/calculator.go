// Package indicator computes technical indicators over validated price
// series and derives per-row trading signals.
package indicator

import (
	"github.com/rs/zerolog"

	"github.com/1NT9NS9/finance-ai/internal/model"
)

// Config carries the indicator parameters. Thresholds are configuration so
// they can be tuned without a code change.
type Config struct {
	RSIPeriods    []int
	RSIOversold   float64
	RSIOverbought float64
	MACDFast      int
	MACDSlow      int
	MACDSignal    int
}

// DefaultConfig returns RSI(6/12/24) with 30/70 thresholds and MACD(12,26,9).
func DefaultConfig() Config {
	return Config{
		RSIPeriods:    []int{6, 12, 24},
		RSIOversold:   30,
		RSIOverbought: 70,
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
	}
}

// Calculator enriches validated price series with indicator records.
type Calculator struct {
	cfg Config
	log zerolog.Logger
}

// New creates a Calculator.
func New(cfg Config, log zerolog.Logger) *Calculator {
	if len(cfg.RSIPeriods) == 0 {
		cfg = DefaultConfig()
	}
	return &Calculator{cfg: cfg, log: log.With().Str("component", "indicator").Logger()}
}

// Enrich computes one IndicatorRecord per input point. The input must be
// sorted by date ascending and belong to a single symbol. Series shorter
// than an indicator's window yield nil values for that indicator rather
// than failing the whole enrichment.
func (c *Calculator) Enrich(points []model.PricePoint) []model.IndicatorRecord {
	if len(points) == 0 {
		return nil
	}

	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}

	rsiByPeriod := make(map[int][]*float64, len(c.cfg.RSIPeriods))
	for _, period := range c.cfg.RSIPeriods {
		rsiByPeriod[period] = rsiSeries(closes, period)
	}
	macdLine, macdSig, macdHist := macdSeries(closes, c.cfg.MACDFast, c.cfg.MACDSlow, c.cfg.MACDSignal)

	records := make([]model.IndicatorRecord, len(points))
	for i, p := range points {
		rec := model.IndicatorRecord{
			Symbol:     p.Symbol,
			Date:       p.Date,
			RSI:        make(map[int]*float64, len(c.cfg.RSIPeriods)),
			MACD:       macdLine[i],
			MACDSignal: macdSig[i],
			MACDHist:   macdHist[i],
		}
		for period, series := range rsiByPeriod {
			rec.RSI[period] = series[i]
		}
		rec.Signal = c.deriveSignal(rsiByPeriod, macdLine, macdSig, i)
		records[i] = rec
	}

	c.log.Debug().Str("symbol", points[0].Symbol).Int("rows", len(records)).Msg("enriched series")
	return records
}

// deriveSignal inspects the latest two points: buy when the shortest RSI
// crosses up through the oversold threshold or the MACD line crosses above
// its signal line, sell on the symmetric crossovers, hold otherwise.
func (c *Calculator) deriveSignal(rsiByPeriod map[int][]*float64, macdLine, macdSig []*float64, i int) model.Signal {
	if i == 0 {
		return model.SignalHold
	}

	shortest := c.cfg.RSIPeriods[0]
	for _, p := range c.cfg.RSIPeriods[1:] {
		if p < shortest {
			shortest = p
		}
	}
	rsi := rsiByPeriod[shortest]
	if prev, cur := rsi[i-1], rsi[i]; prev != nil && cur != nil {
		if *prev < c.cfg.RSIOversold && *cur >= c.cfg.RSIOversold {
			return model.SignalBuy
		}
		if *prev > c.cfg.RSIOverbought && *cur <= c.cfg.RSIOverbought {
			return model.SignalSell
		}
	}

	lp, lc := macdLine[i-1], macdLine[i]
	sp, sc := macdSig[i-1], macdSig[i]
	if lp != nil && lc != nil && sp != nil && sc != nil {
		if *lp <= *sp && *lc > *sc {
			return model.SignalBuy
		}
		if *lp >= *sp && *lc < *sc {
			return model.SignalSell
		}
	}
	return model.SignalHold
}
