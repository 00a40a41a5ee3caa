package rbac

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper runs the stale-user demotion on a cron schedule. A missed or failed
// run is harmless; the next run picks up the same rows.
type Sweeper struct {
	assignment *AssignmentService
	schedule   string
	logger     *slog.Logger
	cron       *cron.Cron
}

func NewSweeper(assignment *AssignmentService, schedule string, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		assignment: assignment,
		schedule:   schedule,
		logger:     logger,
		cron:       cron.New(),
	}
}

// Start registers the sweep job and launches the scheduler. Returns an error
// only for an unparsable schedule expression.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.runOnce)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("stale user sweeper started", "schedule", s.schedule)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("stale user sweeper stopped")
}

func (s *Sweeper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	demoted, err := s.assignment.DemoteStaleUnassignedUsers(ctx)
	if err != nil {
		s.logger.Error("sweep run failed", "error", err)
		return
	}
	s.logger.Info("sweep run completed", "demoted", demoted)
}
