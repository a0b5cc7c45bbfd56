// Package scheduler wires the engine's periodic jobs (daily summary and
// portfolio-value logging) onto robfig/cron, in the style of the
// teacher's internal/services metrics engine's scheduler field.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler wraps a cron.Cron with named jobs and their entry IDs, so a
// job can be removed or rescheduled by name later.
type Scheduler struct {
	cron    *cron.Cron
	log     *zap.Logger
	entries map[string]cron.EntryID
}

// New constructs a Scheduler. It does not start running until Start.
func New(log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		log:     log,
		entries: make(map[string]cron.EntryID),
	}
}

// AddJob registers a named job on a standard 5-field cron expression.
func (s *Scheduler) AddJob(name, expression string, job func(ctx context.Context)) error {
	id, err := s.cron.AddFunc(expression, func() {
		job(context.Background())
	})
	if err != nil {
		return err
	}
	s.entries[name] = id
	return nil
}

// RemoveJob unregisters a previously added job by name.
func (s *Scheduler) RemoveJob(name string) {
	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.log.Info("scheduler: starting")
	s.cron.Start()
}

// Stop halts the scheduler and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler: stopped")
}
