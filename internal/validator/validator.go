// Package validator checks normalized price rows before they are accepted
// into the pipeline.
package validator

import (
	"math"
	"sort"
	"time"

	"github.com/1NT9NS9/finance-ai/internal/collector"
	"github.com/1NT9NS9/finance-ai/internal/model"
)

// Rejection reasons.
const (
	ReasonCloseNotPositive = "close_not_positive"
	ReasonCloseNotFinite   = "close_not_finite"
	ReasonDateMissing      = "date_missing"
	ReasonDateOutOfRange   = "date_out_of_range"
	ReasonDuplicate        = "duplicate"
)

// dateTolerance widens the requested window; providers may return
// boundary-adjacent rows.
const dateTolerance = 24 * time.Hour

// Rejection is a per-row refusal with its reason. Rejections never escalate;
// they are counted and logged by the caller.
type Rejection struct {
	Point  model.PricePoint
	Reason string
}

// Validate splits the rows fetched for symbol into accepted and rejected.
// Accepted rows come back sorted by date ascending with at most one row per
// (symbol, date); on a duplicate the first occurrence wins. An empty input
// is structurally unusable and surfaces as a permanent collection error.
func Validate(symbol string, points []model.PricePoint, period collector.Period) ([]model.PricePoint, []Rejection, error) {
	if len(points) == 0 {
		return nil, nil, collector.NewEmptyResultError(symbol)
	}

	accepted := make([]model.PricePoint, 0, len(points))
	var rejected []Rejection
	seen := make(map[string]struct{}, len(points))

	for _, p := range points {
		if reason, ok := checkPoint(p, period); !ok {
			rejected = append(rejected, Rejection{Point: p, Reason: reason})
			continue
		}
		key := p.Symbol + "|" + p.Date.Format("2006-01-02")
		if _, dup := seen[key]; dup {
			rejected = append(rejected, Rejection{Point: p, Reason: ReasonDuplicate})
			continue
		}
		seen[key] = struct{}{}
		accepted = append(accepted, p)
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Date.Before(accepted[j].Date) })
	return accepted, rejected, nil
}

func checkPoint(p model.PricePoint, period collector.Period) (string, bool) {
	if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
		return ReasonCloseNotFinite, false
	}
	if p.Close <= 0 {
		return ReasonCloseNotPositive, false
	}
	if p.Date.IsZero() {
		return ReasonDateMissing, false
	}
	if !period.Contains(p.Date, dateTolerance) {
		return ReasonDateOutOfRange, false
	}
	return "", true
}
