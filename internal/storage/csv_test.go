package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/1NT9NS9/finance-ai/internal/model"
)

func TestBackupCSV(t *testing.T) {
	store := newTestStore(t)
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

	dir := t.TempDir()
	files, err := BackupCSV(store, dir)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if files != 1 {
		t.Fatalf("wrote %d files, want 1 (only SBER has rows)", files)
	}

	f, err := os.Open(filepath.Join(dir, "SBER.csv"))
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d csv lines, want header plus 2 rows", len(records))
	}
	if records[0][0] != "symbol" || records[0][1] != "date" {
		t.Errorf("header wrong: %v", records[0])
	}
	if records[1][1] != "2024-03-01" || records[1][5] != "280" {
		t.Errorf("first row wrong: %v", records[1])
	}
	// Row without indicators keeps the indicator columns empty.
	if records[1][9] != "" || records[1][15] != "" {
		t.Errorf("indicator columns should be empty for bare row: %v", records[1])
	}
	if records[2][9] != "62" || records[2][15] != "hold" {
		t.Errorf("indicator columns wrong: %v", records[2])
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"SBER":    "SBER",
		"BTC-USD": "BTC-USD",
		"^SPX":    "_SPX",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
