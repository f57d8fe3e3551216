package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/1NT9NS9/finance-ai/internal/model"
	"github.com/1NT9NS9/finance-ai/internal/registry"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	syms, err := registry.Resolve([]string{"SBER", "BTC-USD"})
	if err != nil {
		t.Fatalf("resolve symbols: %v", err)
	}
	if err := store.UpsertSymbols(syms); err != nil {
		t.Fatalf("upsert symbols: %v", err)
	}
	return store
}

func testPoint(symbol string, day int, close float64) model.PricePoint {
	open := close - 1
	vol := int64(500)
	return model.PricePoint{
		Symbol:   symbol,
		Date:     time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		Open:     &open,
		Close:    close,
		Volume:   &vol,
		Source:   model.SourceMOEX,
		Interval: model.Interval1W,
		Currency: "RUB",
	}
}

func testIndicator(symbol string, day int, rsi6 float64, signal model.Signal) model.IndicatorRecord {
	return model.IndicatorRecord{
		Symbol: symbol,
		Date:   time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		RSI:    map[int]*float64{6: &rsi6},
		Signal: signal,
	}
}

func TestUpsertPrices_Idempotent(t *testing.T) {
	store := newTestStore(t)

	points := []model.PricePoint{testPoint("SBER", 1, 280), testPoint("SBER", 8, 285)}
	n, err := store.UpsertPrices(points)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if n != 2 {
		t.Fatalf("first upsert wrote %d rows, want 2", n)
	}

	// Second write of the same window must update in place.
	points[1].Close = 290
	if _, err := store.UpsertPrices(points); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	rows, err := store.QueryRange("SBER", nil, nil, 0)
	if err != nil {
		t.Fatalf("query range: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows after re-run, want 2", len(rows))
	}
	if rows[1].Price.Close != 290 {
		t.Errorf("last-write-wins violated: close = %v, want 290", rows[1].Price.Close)
	}
}

func TestQueryRange_OrderAndFilters(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.UpsertPrices([]model.PricePoint{
		testPoint("SBER", 15, 283),
		testPoint("SBER", 1, 280),
		testPoint("SBER", 8, 281),
		testPoint("SBER", 22, 284),
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rows, err := store.QueryRange("SBER", nil, nil, 0)
	if err != nil {
		t.Fatalf("query range: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if !rows[i].Price.Date.After(rows[i-1].Price.Date) {
			t.Errorf("rows not ascending at index %d", i)
		}
	}

	from := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	rows, err = store.QueryRange("SBER", &from, &to, 0)
	if err != nil {
		t.Fatalf("query bounded range: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("bounded range got %d rows, want 2", len(rows))
	}

	rows, err = store.QueryRange("SBER", nil, nil, 3)
	if err != nil {
		t.Fatalf("query limited range: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("limited range got %d rows, want 3", len(rows))
	}
}

func TestUpsertIndicators_SkipsMissingPriceRow(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.UpsertPrices([]model.PricePoint{testPoint("SBER", 1, 280)}); err != nil {
		t.Fatalf("upsert prices: %v", err)
	}

	n, err := store.UpsertIndicators([]model.IndicatorRecord{
		testIndicator("SBER", 1, 55, model.SignalHold),
		testIndicator("SBER", 8, 60, model.SignalBuy), // no owning price row
	})
	if err != nil {
		t.Fatalf("upsert indicators: %v", err)
	}
	if n != 1 {
		t.Fatalf("wrote %d indicator rows, want 1", n)
	}

	rows, err := store.QueryRange("SBER", nil, nil, 0)
	if err != nil {
		t.Fatalf("query range: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	ind := rows[0].Indicator
	if ind == nil {
		t.Fatal("merged row missing indicator")
	}
	if got := ind.RSIAt(6); got == nil || *got != 55 {
		t.Errorf("rsi_6 = %v, want 55", got)
	}
	if ind.RSIAt(12) != nil {
		t.Errorf("rsi_12 should be nil during warm-up, got %v", *ind.RSIAt(12))
	}
	if ind.MACD != nil {
		t.Errorf("macd should be nil, got %v", *ind.MACD)
	}
	if ind.Signal != model.SignalHold {
		t.Errorf("signal = %q, want hold", ind.Signal)
	}
}

func TestQueryLatest(t *testing.T) {
	store := newTestStore(t)
	sber := []model.PricePoint{testPoint("SBER", 1, 280), testPoint("SBER", 8, 285)}
	btc := testPoint("BTC-USD", 5, 42000)
	btc.Source = model.SourceYahoo
	btc.Interval = model.Interval1D
	btc.Currency = "USD"
	if _, err := store.UpsertPrices(append(sber, btc)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	latest, err := store.QueryLatest([]string{"SBER"})
	if err != nil {
		t.Fatalf("query latest: %v", err)
	}
	row, ok := latest["SBER"]
	if !ok {
		t.Fatal("SBER missing from latest")
	}
	if row.Price.Close != 285 {
		t.Errorf("latest close = %v, want 285", row.Price.Close)
	}
	if row.Indicator != nil {
		t.Errorf("row without indicators should have nil Indicator")
	}

	// Empty symbol list expands to every symbol with stored rows.
	latest, err = store.QueryLatest(nil)
	if err != nil {
		t.Fatalf("query latest all: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("got %d symbols, want 2", len(latest))
	}
	if latest["BTC-USD"].Price.Close != 42000 {
		t.Errorf("BTC-USD latest close = %v, want 42000", latest["BTC-USD"].Price.Close)
	}
}

func TestAppendRunAndRuns(t *testing.T) {
	store := newTestStore(t)
	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	run := &model.CollectionRun{
		ID:          "run-1",
		StartedAt:   started,
		FinishedAt:  started.Add(2 * time.Minute),
		PeriodStart: time.Date(2009, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Outcomes: []model.SymbolOutcome{
			{Symbol: "SBER", Success: true, PriceRows: 4, IndicatorRows: 4},
			{Symbol: "BTC-USD", Success: false, Error: "network error: request failed"},
		},
		SuccessRate: 0.5,
	}
	if err := store.AppendRun(run); err != nil {
		t.Fatalf("append run: %v", err)
	}

	later := *run
	later.ID = "run-2"
	later.StartedAt = started.Add(24 * time.Hour)
	later.FinishedAt = later.StartedAt.Add(time.Minute)
	later.SuccessRate = 1
	if err := store.AppendRun(&later); err != nil {
		t.Fatalf("append second run: %v", err)
	}

	runs, err := store.Runs(0)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != "run-2" {
		t.Errorf("runs not newest first: %s", runs[0].ID)
	}
	if len(runs[1].Outcomes) != 2 || runs[1].Outcomes[1].Error == "" {
		t.Errorf("outcomes not round-tripped: %+v", runs[1].Outcomes)
	}

	runs, err = store.Runs(1)
	if err != nil {
		t.Fatalf("runs limited: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("limit ignored: got %d runs", len(runs))
	}
}

func TestSummary(t *testing.T) {
	store := newTestStore(t)

	empty, err := store.Summary()
	if err != nil {
		t.Fatalf("summary on empty store: %v", err)
	}
	if empty.PriceRows != 0 || empty.EarliestDate != nil || empty.LastRunAt != nil {
		t.Errorf("empty summary not empty: %+v", empty)
	}

	if _, err := store.UpsertPrices([]model.PricePoint{
		testPoint("SBER", 1, 280),
		testPoint("SBER", 8, 285),
	}); err != nil {
		t.Fatalf("upsert prices: %v", err)
	}
	if _, err := store.UpsertIndicators([]model.IndicatorRecord{
		testIndicator("SBER", 8, 62, model.SignalHold),
	}); err != nil {
		t.Fatalf("upsert indicators: %v", err)
	}
	run := &model.CollectionRun{
		ID: "run-1", StartedAt: time.Now().UTC(), FinishedAt: time.Now().UTC(),
		PeriodStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
		Outcomes:    []model.SymbolOutcome{{Symbol: "SBER", Success: true, PriceRows: 2}},
		SuccessRate: 1,
	}
	if err := store.AppendRun(run); err != nil {
		t.Fatalf("append run: %v", err)
	}

	sum, err := store.Summary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.SymbolCount != 2 || sum.PriceRows != 2 || sum.IndicatorRows != 1 || sum.RunCount != 1 {
		t.Errorf("summary counts wrong: %+v", sum)
	}
	if sum.EarliestDate == nil || sum.EarliestDate.Day() != 1 {
		t.Errorf("earliest date wrong: %v", sum.EarliestDate)
	}
	if sum.LatestDate == nil || sum.LatestDate.Day() != 8 {
		t.Errorf("latest date wrong: %v", sum.LatestDate)
	}
	if sum.LastRunSuccessRate == nil || *sum.LastRunSuccessRate != 1 {
		t.Errorf("last run success rate wrong: %v", sum.LastRunSuccessRate)
	}
	if sum.CoveragePct != 50 {
		t.Errorf("coverage = %v, want 50", sum.CoveragePct)
	}
}
