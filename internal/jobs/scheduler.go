// Package jobs runs the periodic maintenance sweeps of the settlement engine.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/logger"
	"github.com/robfig/cron/v3"
)

const purgeSchedule = "@hourly"

type RouteSweeper interface {
	AutoFinalizeElapsed(ctx context.Context) (int, error)
}

type IdempotencyPurger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

type Scheduler struct {
	cron   *cron.Cron
	routes RouteSweeper
	purger IdempotencyPurger
	log    logger.ILogger
	now    func() time.Time
}

func NewScheduler(schedule string, routes RouteSweeper, purger IdempotencyPurger, log logger.ILogger) (*Scheduler, error) {
	cl := cronLogger{log: log}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(
				cron.Recover(cl),
				cron.SkipIfStillRunning(cl),
			),
		),
		routes: routes,
		purger: purger,
		log:    log,
		now:    time.Now,
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.SweepRoutes(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule route sweep %q: %w", schedule, err)
	}
	if purger != nil {
		if _, err := s.cron.AddFunc(purgeSchedule, func() { s.PurgeIdempotency(context.Background()) }); err != nil {
			return nil, fmt.Errorf("schedule idempotency purge: %w", err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("cron jobs scheduled", logger.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warning("cron stop timed out")
	}
}

// SweepRoutes finalizes routes whose trip has elapsed.
func (s *Scheduler) SweepRoutes(ctx context.Context) int {
	n, err := s.routes.AutoFinalizeElapsed(ctx)
	if err != nil {
		s.log.Error("route sweep failed", logger.Error(err))
		return 0
	}
	if n > 0 {
		s.log.Info("route sweep finalized routes", logger.Int("count", n))
	}
	return n
}

func (s *Scheduler) PurgeIdempotency(ctx context.Context) int64 {
	n, err := s.purger.Purge(ctx, s.now())
	if err != nil {
		s.log.Error("idempotency purge failed", logger.Error(err))
		return 0
	}
	if n > 0 {
		s.log.Info("expired idempotency records purged", logger.Int64("count", n))
	}
	return n
}
