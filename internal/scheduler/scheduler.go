// Package scheduler triggers periodic collection cycles.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/1NT9NS9/finance-ai/internal/orchestrator"
)

// Scheduler runs collection cycles on a cron spec. A trigger that fires
// while a cycle is still in flight is skipped, not queued.
type Scheduler struct {
	cron    *cron.Cron
	orch    *orchestrator.Orchestrator
	rc      orchestrator.RunConfig
	ctx     context.Context
	running atomic.Bool
	log     zerolog.Logger
}

// New creates a Scheduler bound to one run configuration.
func New(ctx context.Context, orch *orchestrator.Orchestrator, rc orchestrator.RunConfig, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		orch: orch,
		rc:   rc,
		ctx:  ctx,
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Register adds the collection job under the given cron spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.runCycle); err != nil {
		return fmt.Errorf("register collection task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow executes a collection cycle immediately (manual trigger).
func (s *Scheduler) RunNow() {
	s.runCycle()
}

func (s *Scheduler) runCycle() {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn().Msg("collection cycle still in flight, skipping trigger")
		return
	}
	defer s.running.Store(false)

	run, err := s.orch.Run(s.ctx, s.rc)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled collection cycle failed")
		return
	}
	s.log.Info().
		Str("run_id", run.ID).
		Int("succeeded", run.Succeeded()).
		Int("failed", run.Failed()).
		Msg("scheduled collection cycle finished")
}
