package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/1NT9NS9/finance-ai/internal/model"
)

func makeSeries(symbol string, closes []float64) []model.PricePoint {
	points := make([]model.PricePoint, len(closes))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		points[i] = model.PricePoint{
			Symbol: symbol,
			Date:   base.AddDate(0, 0, i),
			Close:  c,
			Source: model.SourceYahoo,
		}
	}
	return points
}

func TestRSISeries_Bounds(t *testing.T) {
	closes := []float64{44, 44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.1, 45.42, 45.84,
		46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46, 46.03, 46.41, 46.22}
	for _, period := range []int{6, 12, 14} {
		series := rsiSeries(closes, period)
		for i, v := range series {
			if i < period {
				if v != nil {
					t.Fatalf("RSI(%d)[%d] = %v, want nil inside warm-up window", period, i, *v)
				}
				continue
			}
			if v == nil {
				t.Fatalf("RSI(%d)[%d] is nil after warm-up", period, i)
			}
			if *v < 0 || *v > 100 {
				t.Errorf("RSI(%d)[%d] = %f, want within [0, 100]", period, i, *v)
			}
		}
	}
}

func TestRSISeries_AllGainsIs100(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}
	series := rsiSeries(closes, 6)
	last := series[len(series)-1]
	if last == nil {
		t.Fatal("expected RSI value at end of series")
	}
	if *last != 100 {
		t.Errorf("RSI on strictly increasing series = %f, want 100", *last)
	}
}

func TestRSISeries_ShortSeriesAllNil(t *testing.T) {
	closes := []float64{10, 11, 12}
	series := rsiSeries(closes, 6)
	for i, v := range series {
		if v != nil {
			t.Errorf("RSI[%d] = %v on short series, want nil", i, *v)
		}
	}
}

func TestEMASeries_Seeding(t *testing.T) {
	values := []float64{2, 4, 6, 8, 10}
	series := emaSeries(values, 3)
	if series[0] != nil || series[1] != nil {
		t.Fatal("EMA defined before seed window")
	}
	if series[2] == nil || *series[2] != 4 {
		t.Fatalf("EMA seed = %v, want simple average 4", series[2])
	}
	// k = 2/(3+1) = 0.5: ema3 = (8-4)*0.5+4 = 6, ema4 = (10-6)*0.5+6 = 8
	if *series[3] != 6 || *series[4] != 8 {
		t.Errorf("EMA continuation = %f, %f, want 6, 8", *series[3], *series[4])
	}
}

func TestMACDSeries_WarmupIndices(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + math.Sin(float64(i)/5)*10
	}
	fast, slow, signal := 12, 26, 9
	line, sig, hist := macdSeries(closes, fast, slow, signal)

	for i := 0; i < slow-1; i++ {
		if line[i] != nil {
			t.Fatalf("MACD line defined at %d, before slow warm-up %d", i, slow-1)
		}
	}
	if line[slow-1] == nil {
		t.Fatalf("MACD line nil at first defined index %d", slow-1)
	}
	firstSig := slow + signal - 2
	for i := 0; i < firstSig; i++ {
		if sig[i] != nil {
			t.Fatalf("signal line defined at %d, before warm-up %d", i, firstSig)
		}
	}
	if sig[firstSig] == nil || hist[firstSig] == nil {
		t.Fatalf("signal/histogram nil at first defined index %d", firstSig)
	}
	if got := *hist[firstSig]; math.Abs(got-(*line[firstSig]-*sig[firstSig])) > 1e-12 {
		t.Errorf("histogram = %f, want line-signal", got)
	}
}

func TestEnrich_MonotonicSeriesNeverSells(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + float64(i)*2
	}
	calc := New(DefaultConfig(), zerolog.Nop())
	records := calc.Enrich(makeSeries("TEST", closes))

	if len(records) != len(closes) {
		t.Fatalf("got %d records, want %d", len(records), len(closes))
	}
	for i, rec := range records {
		if rec.Signal == model.SignalSell {
			t.Errorf("record %d carries a sell signal on a strictly increasing series", i)
		}
	}
}

func TestEnrich_ShortSeriesYieldsNilIndicators(t *testing.T) {
	calc := New(DefaultConfig(), zerolog.Nop())
	records := calc.Enrich(makeSeries("TEST", []float64{10, 11, 12}))

	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for i, rec := range records {
		for _, period := range []int{6, 12, 24} {
			if v := rec.RSIAt(period); v != nil {
				t.Errorf("record %d rsi_%d = %f, want nil on short series", i, period, *v)
			}
		}
		if rec.MACD != nil || rec.MACDSignal != nil || rec.MACDHist != nil {
			t.Errorf("record %d carries MACD values on short series", i)
		}
		if rec.Signal != model.SignalHold {
			t.Errorf("record %d signal = %s, want hold", i, rec.Signal)
		}
	}
}

func TestEnrich_RSIBuyCrossover(t *testing.T) {
	// Drive RSI(2) below the oversold threshold, then back up through it.
	cfg := Config{
		RSIPeriods:    []int{2},
		RSIOversold:   30,
		RSIOverbought: 70,
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
	}
	closes := []float64{100, 98, 96, 94, 92, 90, 99}
	calc := New(cfg, zerolog.Nop())
	records := calc.Enrich(makeSeries("TEST", closes))

	last := records[len(records)-1]
	if last.Signal != model.SignalBuy {
		t.Errorf("signal after oversold recovery = %s, want buy", last.Signal)
	}
}

func TestEnrich_Empty(t *testing.T) {
	calc := New(DefaultConfig(), zerolog.Nop())
	if records := calc.Enrich(nil); records != nil {
		t.Errorf("Enrich(nil) = %v, want nil", records)
	}
}
