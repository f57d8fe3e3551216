package model

import "time"

// SymbolOutcome records how a single symbol fared inside one collection run.
type SymbolOutcome struct {
	Symbol        string `json:"symbol"`
	Success       bool   `json:"success"`
	PriceRows     int    `json:"price_rows"`
	IndicatorRows int    `json:"indicator_rows"`
	Rejected      int    `json:"rejected"`
	Error         string `json:"error,omitempty"`
}

// CollectionRun is the immutable record of one orchestration cycle.
type CollectionRun struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time
	Outcomes    []SymbolOutcome
	SuccessRate float64
}

// Succeeded counts symbols that completed their chain.
func (r *CollectionRun) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

// Failed counts symbols whose chain ended in a terminal failure.
func (r *CollectionRun) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// TotalRows sums the persisted price rows across all outcomes.
func (r *CollectionRun) TotalRows() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.PriceRows
	}
	return n
}
