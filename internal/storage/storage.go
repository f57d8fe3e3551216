// Package storage persists price and indicator rows plus collection-run
// metadata, and answers the query operations the external API layer consumes.
package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/1NT9NS9/finance-ai/internal/model"
	"github.com/1NT9NS9/finance-ai/internal/registry"
)

// StorageError classifies a storage failure. Retryable errors (a briefly
// locked database) are worth a bounded retry; everything else is fatal for
// the run.
type StorageError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsRetryable reports whether err carries a retryable StorageError.
func IsRetryable(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Retryable
}

// Row is one merged price+indicator row. Indicator is nil when no
// indicator record exists for the date.
type Row struct {
	Price     model.PricePoint
	Indicator *model.IndicatorRecord
}

// Summary describes the stored dataset, the basis for the health endpoint
// of the external API layer.
type Summary struct {
	SymbolCount        int
	PriceRows          int
	IndicatorRows      int
	EarliestDate       *time.Time
	LatestDate         *time.Time
	LastRunAt          *time.Time
	LastRunSuccessRate *float64
	RunCount           int
	CoveragePct        float64
}

// Store is the persistence contract. All upserts are idempotent per
// (symbol, date); re-running a cycle for an already covered window must not
// create duplicates.
type Store interface {
	// UpsertSymbols makes sure catalog entries exist and are current.
	UpsertSymbols(syms []registry.Symbol) error
	// UpsertPrices writes price rows, last-write-wins per (symbol, date).
	UpsertPrices(points []model.PricePoint) (int, error)
	// UpsertIndicators writes indicator rows. A record whose owning price
	// row does not exist is skipped, preserving the referential invariant.
	UpsertIndicators(records []model.IndicatorRecord) (int, error)
	// AppendRun appends one immutable collection-run record.
	AppendRun(run *model.CollectionRun) error

	// QueryRange returns merged rows for a symbol sorted by date ascending.
	// from, to and limit are optional (nil / 0 disables them).
	QueryRange(symbol string, from, to *time.Time, limit int) ([]Row, error)
	// QueryLatest returns the maximum-date merged row per requested symbol.
	// An empty symbol list means every symbol with stored data. Symbols
	// without rows are absent from the result.
	QueryLatest(symbols []string) (map[string]Row, error)
	// Summary aggregates dataset statistics.
	Summary() (*Summary, error)
	// Runs returns the most recent collection runs, newest first.
	Runs(limit int) ([]model.CollectionRun, error)

	Close() error
}
