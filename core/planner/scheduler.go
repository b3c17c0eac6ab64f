package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/evopt/core/forecast"
	"github.com/kilianp07/evopt/core/logger"
	"github.com/kilianp07/evopt/core/model"
)

// Scheduler re-runs the optimization on a fixed cadence. Scheduled runs use
// the configured forecast defaults and compete for the manager's run slot
// like any other trigger.
type Scheduler struct {
	mgr      *PlanManager
	interval time.Duration
	log      logger.Logger
}

// NewScheduler returns a Scheduler driving mgr every interval.
func NewScheduler(mgr *PlanManager, interval time.Duration, log logger.Logger) (*Scheduler, error) {
	if mgr == nil {
		return nil, fmt.Errorf("planner: nil manager provided to NewScheduler")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("planner: replan interval must be positive, got %s", interval)
	}
	return &Scheduler{mgr: mgr, interval: interval, log: log}, nil
}

// Run blocks and replans every interval until the context is canceled. Run
// outcomes are recorded by the manager; failures are logged and the cadence
// continues.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.log.Infof("replanning every %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.mgr.Plan(ctx, forecast.Input{}, "schedule"); err != nil {
				if errors.Is(err, model.ErrTimedOut) && ctx.Err() != nil {
					return
				}
				s.log.Errorf("scheduled run: %v", err)
			}
		}
	}
}
