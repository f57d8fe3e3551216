package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// BackupCSV exports the merged dataset to one CSV file per symbol under dir.
// Returns the number of files written.
func BackupCSV(store Store, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, &StorageError{Op: "create backup dir", Err: err}
	}

	latest, err := store.QueryLatest(nil)
	if err != nil {
		return 0, err
	}

	files := 0
	for symbol := range latest {
		rows, err := store.QueryRange(symbol, nil, nil, 0)
		if err != nil {
			return files, err
		}
		if len(rows) == 0 {
			continue
		}
		if err := writeSymbolCSV(dir, symbol, rows); err != nil {
			return files, err
		}
		files++
	}
	return files, nil
}

func writeSymbolCSV(dir, symbol string, rows []Row) error {
	name := filepath.Join(dir, sanitizeName(symbol)+".csv")
	f, err := os.Create(name)
	if err != nil {
		return &StorageError{Op: "create backup file", Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"symbol", "date", "open", "high", "low", "close", "volume",
		"source", "interval", "rsi_6", "rsi_12", "rsi_24", "macd", "macd_signal", "macd_histogram", "signal"}
	if err := w.Write(header); err != nil {
		return &StorageError{Op: "write backup header", Err: err}
	}

	for _, r := range rows {
		rec := []string{
			r.Price.Symbol,
			r.Price.Date.Format(dateFormat),
			floatField(r.Price.Open),
			floatField(r.Price.High),
			floatField(r.Price.Low),
			strconv.FormatFloat(r.Price.Close, 'f', -1, 64),
			intField(r.Price.Volume),
			string(r.Price.Source),
			string(r.Price.Interval),
		}
		if ind := r.Indicator; ind != nil {
			rec = append(rec,
				floatField(ind.RSIAt(6)), floatField(ind.RSIAt(12)), floatField(ind.RSIAt(24)),
				floatField(ind.MACD), floatField(ind.MACDSignal), floatField(ind.MACDHist),
				string(ind.Signal))
		} else {
			rec = append(rec, "", "", "", "", "", "", "")
		}
		if err := w.Write(rec); err != nil {
			return &StorageError{Op: "write backup row", Err: err}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return &StorageError{Op: "flush backup", Err: err}
	}
	return nil
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func intField(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

// sanitizeName keeps symbol-derived file names filesystem safe (^SPX, BTC-USD).
func sanitizeName(symbol string) string {
	out := make([]rune, 0, len(symbol))
	for _, r := range symbol {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return fmt.Sprintf("symbol_%d", len(symbol))
	}
	return string(out)
}
