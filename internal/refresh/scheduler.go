package refresh

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Runner is the subset of *Refresher the Scheduler needs, so callers that
// only hold internal/api's narrower Refresher interface can still build
// a Scheduler without an import cycle.
type Runner interface {
	RefreshOnce(ctx context.Context) (Result, error)
}

// Scheduler runs RefreshOnce on a cron schedule (spec §4.10: the
// Refresher runs "on a configurable cron window", default weekly).
// Grounded on Tangerg-lynx's core/trigger/cron_trigger.go for the
// parse-spec-then-register-job shape.
type Scheduler struct {
	cron      *cron.Cron
	refresher Runner
	logger    *slog.Logger
}

// NewScheduler parses cronExpr (standard 5-field cron) and registers a job
// that runs one RefreshOnce pass each time it fires. A nil logger falls
// back to slog.Default().
func NewScheduler(refresher Runner, cronExpr string, logger *slog.Logger) (*Scheduler, error) {
	if refresher == nil {
		return nil, fmt.Errorf("refresh: scheduler requires a non-nil Refresher")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := cron.New()
	s := &Scheduler{cron: c, refresher: refresher, logger: logger}

	if _, err := c.AddFunc(cronExpr, s.runOnce); err != nil {
		return nil, fmt.Errorf("refresh: invalid cron expression %q: %w", cronExpr, err)
	}
	return s, nil
}

// runOnce executes one scheduled RefreshOnce pass, logging the result.
// It runs with a background context: a scheduled pass that outlives a
// single tick should not be cancelled by the next tick's arrival.
func (s *Scheduler) runOnce() {
	result, err := s.refresher.RefreshOnce(context.Background())
	if err != nil {
		s.logger.Error("scheduled refresh failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("scheduled refresh completed",
		slog.Int("checked", result.Checked),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("updated", result.Updated),
		slog.Int("failed", result.Failed))
}

// Run starts the cron schedule and blocks until ctx is cancelled, then
// stops the scheduler and waits for any in-flight job to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}
