// Package schedule starts replay sessions on cron expressions, so a stand
// supervisor can have the next home game's replay warmed up automatically.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rinkside/standwatch/internal/config"
	"github.com/rinkside/standwatch/internal/logger"
	"github.com/rinkside/standwatch/internal/session"
)

// Starter is the slice of the session manager the scheduler needs.
type Starter interface {
	Start(ctx context.Context, req session.StartRequest) (*session.Session, error)
}

// Scheduler runs cron-triggered session starts.
type Scheduler struct {
	cron    *cron.Cron
	starter Starter
	ctx     context.Context
	log     *logger.Logger
}

// New creates a scheduler bound to the given manager. ctx is passed to every
// triggered session start.
func New(ctx context.Context, starter Starter) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		starter: starter,
		ctx:     ctx,
		log:     logger.With("schedule"),
	}
}

// Register adds one cron entry per configured session.
func (s *Scheduler) Register(entries []config.ScheduledSession) error {
	for i, entry := range entries {
		if _, err := s.cron.AddFunc(entry.Cron, s.jobFor(entry)); err != nil {
			return fmt.Errorf("register schedule entry %d (%q): %w", i, entry.Cron, err)
		}
	}
	return nil
}

// jobFor builds the cron callback for one schedule entry. A start that loses
// the race against a manual session is logged and skipped, not retried.
func (s *Scheduler) jobFor(entry config.ScheduledSession) func() {
	req := requestFor(entry)
	return func() {
		if _, err := s.starter.Start(s.ctx, req); err != nil {
			s.log.Warn("scheduled start skipped: scenario=%s err=%v", entry.Scenario, err)
			return
		}
		s.log.Info("scheduled session started: scenario=%s opponent=%s", entry.Scenario, entry.Opponent)
	}
}

func requestFor(entry config.ScheduledSession) session.StartRequest {
	return session.StartRequest{
		Scenario:     entry.Scenario,
		Speed:        entry.Speed,
		Opponent:     entry.Opponent,
		Date:         time.Now(),
		Attendance:   entry.Attendance,
		PuckDropHour: entry.PuckDropHour,
		Playoff:      entry.Playoff,
		TempMean:     entry.TempMean,
	}
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started: entries=%d", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for a running trigger to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}
