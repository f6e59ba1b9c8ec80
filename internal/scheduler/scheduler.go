package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/amishk599/searchradar/internal/model"
	"github.com/amishk599/searchradar/internal/poller"
)

// Runner performs one ingestion run over sources.
type Runner interface {
	Run(ctx context.Context, sources []model.Source) []poller.SourceStats
}

// Scheduler owns the daemon loop: one run immediately, then one per interval.
type Scheduler struct {
	runner   Runner
	sources  []model.Source
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler that ingests all sources at the given interval.
func NewScheduler(runner Runner, sources []model.Source, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		sources:  sources,
		interval: interval,
		logger:   logger,
	}
}

// Run starts the loop. It returns nil when ctx is cancelled (graceful shutdown).
// Runs never overlap: the next interval starts counting when a run finishes.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler",
		"interval", s.interval.String(),
		"sources", len(s.sources),
	)

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-time.After(s.interval):
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	stats := s.runner.Run(ctx, s.sources)

	var upserted, errs, failed int
	for _, st := range stats {
		upserted += st.Upserted
		errs += st.Errors
		if st.Err != nil {
			failed++
		}
	}
	s.logger.Info("run complete",
		"sources", len(stats),
		"failed_sources", failed,
		"upserted", upserted,
		"errors", errs,
		"duration", time.Since(start).Round(time.Millisecond),
		"next_run", time.Now().Add(s.interval).Format(time.RFC3339),
	)
}
