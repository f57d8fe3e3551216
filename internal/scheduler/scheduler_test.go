package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/1NT9NS9/finance-ai/internal/collector"
	"github.com/1NT9NS9/finance-ai/internal/indicator"
	"github.com/1NT9NS9/finance-ai/internal/model"
	"github.com/1NT9NS9/finance-ai/internal/orchestrator"
	"github.com/1NT9NS9/finance-ai/internal/registry"
	"github.com/1NT9NS9/finance-ai/internal/storage"
)

type blockingCollector struct {
	release chan struct{}
	once    sync.Once
}

func (b *blockingCollector) Fetch(ctx context.Context, sym registry.Symbol, period collector.Period) ([]model.PricePoint, error) {
	b.once.Do(func() {
		if b.release != nil {
			<-b.release
		}
	})
	return []model.PricePoint{{
		Symbol:   sym.Ticker,
		Date:     period.Start,
		Close:    280,
		Source:   model.SourceMOEX,
		Interval: model.Interval1W,
		Currency: "RUB",
	}}, nil
}

func (b *blockingCollector) Source() model.Source { return model.SourceMOEX }

func (b *blockingCollector) Supports(sym registry.Symbol) bool { return sym.Source == model.SourceMOEX }

func newScheduler(t *testing.T, col collector.Collector) (*Scheduler, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	orch := orchestrator.New(store, []collector.Collector{col}, indicator.New(indicator.DefaultConfig(), zerolog.Nop()), 1, zerolog.Nop())
	rc := orchestrator.RunConfig{
		Start:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Symbols: []string{"SBER"},
	}
	return New(context.Background(), orch, rc, zerolog.Nop()), store
}

func TestRegister(t *testing.T) {
	sched, _ := newScheduler(t, &blockingCollector{})
	if err := sched.Register("0 0 9 * * 1"); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
	if err := sched.Register("not a cron spec"); err == nil {
		t.Fatal("invalid spec accepted")
	}
}

func TestRunNow_PersistsOneRun(t *testing.T) {
	sched, store := newScheduler(t, &blockingCollector{})
	sched.RunNow()

	runs, err := store.Runs(0)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].Succeeded() != 1 {
		t.Errorf("run did not succeed: %+v", runs[0].Outcomes)
	}
}

func TestRunCycle_OverlappingTriggerSkipped(t *testing.T) {
	release := make(chan struct{})
	sched, store := newScheduler(t, &blockingCollector{release: release})

	done := make(chan struct{})
	go func() {
		sched.RunNow()
		close(done)
	}()

	// Give the first cycle time to reach the blocking fetch, then trigger
	// again while it is still in flight.
	time.Sleep(50 * time.Millisecond)
	sched.RunNow()
	close(release)
	<-done

	runs, err := store.Runs(0)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("overlap trigger not skipped: %d runs", len(runs))
	}
}
