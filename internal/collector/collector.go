// Package collector fetches raw price history from external providers and
// normalizes it into the common row shape.
package collector

import (
	"context"
	"time"

	"github.com/1NT9NS9/finance-ai/internal/model"
	"github.com/1NT9NS9/finance-ai/internal/registry"
)

// Period is the absolute date window a collection cycle covers.
type Period struct {
	Start time.Time
	End   time.Time
}

// PeriodFromMonths resolves a months-back window ending at now.
func PeriodFromMonths(months int, now time.Time) Period {
	return Period{Start: now.AddDate(0, -months, 0), End: now}
}

// Contains reports whether t falls inside the window, widened by tolerance
// on both ends. Providers may return boundary-adjacent rows.
func (p Period) Contains(t time.Time, tolerance time.Duration) bool {
	return !t.Before(p.Start.Add(-tolerance)) && !t.After(p.End.Add(tolerance))
}

// Collector fetches raw price history for symbols of one provider.
type Collector interface {
	// Fetch returns normalized rows for the symbol over the period, tagged
	// with their native interval. It has no side effects beyond the HTTP
	// calls; transient failures are retried internally.
	Fetch(ctx context.Context, sym registry.Symbol, period Period) ([]model.PricePoint, error)
	// Source identifies the provider.
	Source() model.Source
	// Supports reports whether this collector fetches the symbol.
	Supports(sym registry.Symbol) bool
}
