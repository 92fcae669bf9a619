// Package schedule runs the periodic record refresh.
package schedule

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"gamecal/internal/log"
)

// Refresher is the part of the reconciler the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context) int
}

// RefreshFunc adapts a plain function to Refresher.
type RefreshFunc func(ctx context.Context) int

func (f RefreshFunc) Refresh(ctx context.Context) int { return f(ctx) }

// Scheduler triggers a forced refresh on a cron spec. Runs never overlap;
// a tick that fires while the previous run is still busy is skipped.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	job  Refresher
	log  *log.Logger

	running atomic.Bool
	runs    atomic.Int64
}

// New parses spec and registers the refresh job. ctx is handed to every run.
func New(ctx context.Context, spec string, job Refresher, logger *log.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(),
		ctx:  ctx,
		job:  job,
		log:  logger,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("refresh still running, tick skipped")
		return
	}
	defer s.running.Store(false)

	n := s.job.Refresh(s.ctx)
	s.runs.Add(1)
	s.log.Info("scheduled refresh done", "records", n)
}

// Start begins ticking in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler; the returned context is done once a running
// refresh has returned.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Runs reports how many refreshes have completed.
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}
