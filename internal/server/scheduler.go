package server

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"cryptolens/internal/store"
)

// DefaultSyncSchedule refreshes the cache every six hours (cron with seconds).
const DefaultSyncSchedule = "0 0 */6 * * *"

// Scheduler runs periodic sync jobs while the server is up.
type Scheduler struct {
	Cron    *cron.Cron
	Syncer  *store.Syncer
	Metrics *Metrics
	Ctx     context.Context

	logger zerolog.Logger
}

// NewScheduler creates a scheduler. Runs that are still going when the next
// tick fires are skipped.
func NewScheduler(ctx context.Context, syncer *store.Syncer, metrics *Metrics, logger zerolog.Logger) *Scheduler {
	logger = logger.With().Str("component", "scheduler").Logger()
	cronLogger := cron.PrintfLogger(&logger)
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		Syncer:  syncer,
		Metrics: metrics,
		Ctx:     ctx,
		logger:  logger,
	}
}

// Register schedules the sync job. An empty spec uses DefaultSyncSchedule.
func (s *Scheduler) Register(spec string) error {
	if spec == "" {
		spec = DefaultSyncSchedule
	}
	if _, err := s.Cron.AddFunc(spec, s.syncTask); err != nil {
		return fmt.Errorf("register sync task: %w", err)
	}
	s.logger.Info().Str("schedule", spec).Msg("Sync task registered")
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) syncTask() {
	if _, err := s.RunSync(s.Ctx); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled sync failed")
	}
}

// RunSync performs one sync run and records its outcome in the metrics.
func (s *Scheduler) RunSync(ctx context.Context) (*store.SyncReport, error) {
	start := time.Now()
	report, err := s.Syncer.Run(ctx, nil)
	if s.Metrics == nil {
		return report, err
	}

	s.Metrics.SyncDuration.Observe(time.Since(start).Seconds())
	switch {
	case report == nil:
		s.Metrics.SyncRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	case report.Failed() > 0:
		s.Metrics.SyncRunsTotal.WithLabelValues("partial").Inc()
	default:
		s.Metrics.SyncRunsTotal.WithLabelValues("ok").Inc()
	}
	for _, h := range report.History {
		s.Metrics.SyncRowsTotal.Add(float64(h.Inserted))
	}
	s.Metrics.LastSyncSeconds.Set(float64(time.Now().Unix()))
	return report, err
}
