// Package orchestrator drives end-to-end collection cycles and exposes the
// read interface consumed by the external API layer.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/1NT9NS9/finance-ai/internal/collector"
	"github.com/1NT9NS9/finance-ai/internal/indicator"
	"github.com/1NT9NS9/finance-ai/internal/model"
	"github.com/1NT9NS9/finance-ai/internal/registry"
	"github.com/1NT9NS9/finance-ai/internal/storage"
	"github.com/1NT9NS9/finance-ai/internal/validator"
)

// ErrConfiguration marks a pre-flight configuration problem. It aborts the
// cycle before any symbol is attempted.
var ErrConfiguration = errors.New("configuration error")

// ErrAborted marks a run terminated by a fatal storage failure.
var ErrAborted = errors.New("run aborted")

// RunConfig parameterizes one collection cycle. Either Months or an explicit
// Start/End window must be set; an empty Symbols list means all registered.
type RunConfig struct {
	Months  int
	Start   time.Time
	End     time.Time
	Symbols []string
}

// Orchestrator wires collectors, the indicator calculator and storage into
// per-symbol pipelines.
type Orchestrator struct {
	store         storage.Store
	collectors    []collector.Collector
	calc          *indicator.Calculator
	maxConcurrent int
	writeAttempts int
	log           zerolog.Logger
}

// New creates an Orchestrator. maxConcurrent bounds the number of symbol
// chains in flight; values below 1 fall back to 5.
func New(store storage.Store, collectors []collector.Collector, calc *indicator.Calculator, maxConcurrent int, log zerolog.Logger) *Orchestrator {
	if maxConcurrent < 1 {
		maxConcurrent = 5
	}
	return &Orchestrator{
		store:         store,
		collectors:    collectors,
		calc:          calc,
		maxConcurrent: maxConcurrent,
		writeAttempts: 3,
		log:           log.With().Str("component", "orchestrator").Logger(),
	}
}

type work struct {
	sym registry.Symbol
	col collector.Collector
}

// Run executes one collection cycle: enumerate symbols, then per symbol
// collect, validate, enrich and persist. A single symbol's failure is
// recorded and the cycle continues; only a fatal storage failure (or a
// pre-flight configuration error) aborts the run.
func (o *Orchestrator) Run(ctx context.Context, rc RunConfig) (*model.CollectionRun, error) {
	started := time.Now().UTC()

	period, err := resolvePeriod(rc, started)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	syms, err := registry.Resolve(rc.Symbols)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	items := make([]work, 0, len(syms))
	for _, sym := range syms {
		col := o.collectorFor(sym)
		if col == nil {
			return nil, fmt.Errorf("%w: no collector for provider %s (symbol %s)", ErrConfiguration, sym.Source, sym.Ticker)
		}
		items = append(items, work{sym: sym, col: col})
	}

	if err := o.store.UpsertSymbols(syms); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAborted, err)
	}

	o.log.Info().
		Int("symbols", len(items)).
		Str("period_start", period.Start.Format("2006-01-02")).
		Str("period_end", period.End.Format("2006-01-02")).
		Msg("collection cycle started")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		outcomes []model.SymbolOutcome
		fatal    error
		wg       sync.WaitGroup
	)
	sem := make(chan struct{}, o.maxConcurrent)

launch:
	for _, item := range items {
		// Cancellation is cooperative between symbols: a started chain
		// always completes or fails, the next one is simply not launched.
		select {
		case sem <- struct{}{}:
		case <-runCtx.Done():
			break launch
		}

		wg.Add(1)
		go func(item work) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome, ferr := o.collectOne(runCtx, item, period)
			mu.Lock()
			outcomes = append(outcomes, outcome)
			if ferr != nil && fatal == nil {
				fatal = ferr
				cancel()
			}
			mu.Unlock()
		}(item)
	}
	wg.Wait()

	run := &model.CollectionRun{
		ID:          uuid.NewString(),
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
		PeriodStart: model.Day(period.Start),
		PeriodEnd:   model.Day(period.End),
		Outcomes:    outcomes,
	}
	if len(outcomes) > 0 {
		run.SuccessRate = float64(run.Succeeded()) / float64(len(outcomes))
	}

	if fatal != nil {
		o.log.Error().Err(fatal).Msg("collection cycle aborted")
		return run, fmt.Errorf("%w: %v", ErrAborted, fatal)
	}

	if err := o.store.AppendRun(run); err != nil {
		return run, fmt.Errorf("record run: %w", err)
	}

	o.log.Info().
		Str("run_id", run.ID).
		Int("succeeded", run.Succeeded()).
		Int("failed", run.Failed()).
		Float64("success_rate", run.SuccessRate).
		Msg("collection cycle finished")
	return run, nil
}

// collectOne runs a single symbol's collect, validate, enrich, persist
// chain. The returned error is non-nil only for fatal storage failures;
// everything else lands in the outcome.
func (o *Orchestrator) collectOne(ctx context.Context, item work, period collector.Period) (model.SymbolOutcome, error) {
	outcome := model.SymbolOutcome{Symbol: item.sym.Ticker}
	log := o.log.With().Str("symbol", item.sym.Ticker).Logger()

	points, err := item.col.Fetch(ctx, item.sym, period)
	if err != nil {
		log.Error().Err(err).Msg("collect failed")
		outcome.Error = err.Error()
		return outcome, nil
	}

	accepted, rejected, err := validator.Validate(item.sym.Ticker, points, period)
	if err != nil {
		log.Error().Err(err).Msg("validation failed")
		outcome.Error = err.Error()
		return outcome, nil
	}
	outcome.Rejected = len(rejected)
	for _, rej := range rejected {
		log.Warn().Str("reason", rej.Reason).Str("date", rej.Point.Date.Format("2006-01-02")).Msg("row rejected")
	}

	records := o.calc.Enrich(accepted)

	// Price rows go in before the indicator rows that reference them.
	var priceRows int
	err = o.persist(ctx, func() error {
		n, werr := o.store.UpsertPrices(accepted)
		priceRows = n
		return werr
	})
	if err != nil {
		return o.failPersist(log, outcome, err)
	}
	outcome.PriceRows = priceRows

	var indicatorRows int
	err = o.persist(ctx, func() error {
		n, werr := o.store.UpsertIndicators(records)
		indicatorRows = n
		return werr
	})
	if err != nil {
		return o.failPersist(log, outcome, err)
	}
	outcome.IndicatorRows = indicatorRows

	outcome.Success = true
	log.Info().Int("price_rows", outcome.PriceRows).Int("indicator_rows", outcome.IndicatorRows).Int("rejected", outcome.Rejected).Msg("symbol collected")
	return outcome, nil
}

func (o *Orchestrator) failPersist(log zerolog.Logger, outcome model.SymbolOutcome, err error) (model.SymbolOutcome, error) {
	log.Error().Err(err).Msg("persist failed")
	outcome.Error = err.Error()
	if storage.IsRetryable(err) {
		// Retries exhausted; terminal for this symbol but not for the run.
		return outcome, nil
	}
	return outcome, err
}

// persist runs a storage write, retrying retryable StorageErrors with
// exponential backoff up to the write attempt bound.
func (o *Orchestrator) persist(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 0

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !storage.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(wrapped, backoff.WithMaxRetries(backoff.WithContext(b, ctx), uint64(o.writeAttempts-1)))
}

func (o *Orchestrator) collectorFor(sym registry.Symbol) collector.Collector {
	for _, col := range o.collectors {
		if col.Supports(sym) {
			return col
		}
	}
	return nil
}

func resolvePeriod(rc RunConfig, now time.Time) (collector.Period, error) {
	if !rc.Start.IsZero() {
		end := rc.End
		if end.IsZero() {
			end = now
		}
		if !end.After(rc.Start) {
			return collector.Period{}, fmt.Errorf("period end %s is not after start %s", end.Format("2006-01-02"), rc.Start.Format("2006-01-02"))
		}
		return collector.Period{Start: rc.Start, End: end}, nil
	}
	if rc.Months <= 0 {
		return collector.Period{}, fmt.Errorf("period months must be positive, got %d", rc.Months)
	}
	return collector.PeriodFromMonths(rc.Months, now), nil
}

// QueryPriceAndIndicators returns merged rows for a symbol sorted by date
// ascending, optionally windowed and limited.
func (o *Orchestrator) QueryPriceAndIndicators(symbol string, from, to *time.Time, limit int) ([]storage.Row, error) {
	return o.store.QueryRange(symbol, from, to, limit)
}

// QueryLatest returns the most recent merged row per requested symbol.
func (o *Orchestrator) QueryLatest(symbols []string) (map[string]storage.Row, error) {
	return o.store.QueryLatest(symbols)
}

// Summary aggregates dataset statistics.
func (o *Orchestrator) Summary() (*storage.Summary, error) {
	return o.store.Summary()
}
