// Package poller drives sources through scoring, enrichment and upsert.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/amishk599/searchradar/internal/model"
	"github.com/amishk599/searchradar/internal/upsert"
)

// DefaultUpsertConcurrency bounds in-flight upserts across a source.
const DefaultUpsertConcurrency = 8

// Relevance scores a candidate once and decides whether it is kept.
type Relevance interface {
	Evaluate(ctx context.Context, title, description string) (model.Relevance, error)
	IsRelevant(score float64) bool
}

// Upserter persists one candidate.
type Upserter interface {
	Upsert(ctx context.Context, raw model.RawJob) (upsert.Result, error)
}

// RunScoped is implemented by upserters that keep per-run state. BeginRun is
// called once at the start of every run.
type RunScoped interface {
	BeginRun(runID string)
}

// EnrichFunc annotates a relevant candidate in place before it is persisted.
type EnrichFunc func(*model.RawJob)

// SourceStats are the counters for one source in one run.
type SourceStats struct {
	RunID    string
	Source   string
	Seen     int
	Relevant int
	Skipped  int
	Upserted int
	Errors   int
	Duration time.Duration
	Err      error // set when the listing could not be fetched
}

type counters struct {
	seen, relevant, skipped, upserted, errors atomic.Int64
}

func (c *counters) stats(runID, source string, d time.Duration, err error) SourceStats {
	return SourceStats{
		RunID:    runID,
		Source:   source,
		Seen:     int(c.seen.Load()),
		Relevant: int(c.relevant.Load()),
		Skipped:  int(c.skipped.Load()),
		Upserted: int(c.upserted.Load()),
		Errors:   int(c.errors.Load()),
		Duration: d,
		Err:      err,
	}
}

// Orchestrator runs sources one after another. Upserts within a source run
// on a bounded worker pool.
type Orchestrator struct {
	relevance   Relevance
	enrich      EnrichFunc
	upserter    Upserter
	concurrency int
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithUpsertConcurrency sets the pool size. Values below 1 are ignored.
func WithUpsertConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// NewOrchestrator creates an Orchestrator. enrich may be nil.
func NewOrchestrator(relevance Relevance, enrich EnrichFunc, upserter Upserter, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		relevance:   relevance,
		enrich:      enrich,
		upserter:    upserter,
		concurrency: DefaultUpsertConcurrency,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes sources sequentially under one run id. A source whose
// listing fails is reported and the next source still runs.
func (o *Orchestrator) Run(ctx context.Context, sources []model.Source) []SourceStats {
	runID := uuid.NewString()
	o.logger.Info("ingestion started", "run_id", runID, "sources", len(sources))
	o.beginRun(runID)

	all := make([]SourceStats, 0, len(sources))
	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		all = append(all, o.runSource(ctx, runID, src))
	}
	return all
}

// RunSource processes a single source under a fresh run id.
func (o *Orchestrator) RunSource(ctx context.Context, src model.Source) SourceStats {
	runID := uuid.NewString()
	o.beginRun(runID)
	return o.runSource(ctx, runID, src)
}

func (o *Orchestrator) beginRun(runID string) {
	if rs, ok := o.upserter.(RunScoped); ok {
		rs.BeginRun(runID)
	}
}

func (o *Orchestrator) runSource(ctx context.Context, runID string, src model.Source) SourceStats {
	start := time.Now()
	var c counters

	pool, err := ants.NewPool(o.concurrency)
	if err != nil {
		return c.stats(runID, src.Name(), time.Since(start), fmt.Errorf("create upsert pool: %w", err))
	}
	defer pool.Release()

	jobs, err := src.Fetch(ctx)
	if err != nil {
		o.logger.Error("source listing failed", "run_id", runID, "source", src.Name(), "error", err)
		return c.stats(runID, src.Name(), time.Since(start), err)
	}

	var wg sync.WaitGroup
	for raw := range jobs {
		c.seen.Add(1)

		rel, err := o.relevance.Evaluate(ctx, raw.Title, raw.Description)
		if err != nil {
			c.errors.Add(1)
			o.logger.Warn("scoring failed", "source", src.Name(), "title", raw.Title, "url", raw.URL, "error", err)
			continue
		}
		if !o.relevance.IsRelevant(rel.Score) {
			c.skipped.Add(1)
			o.logger.Debug("skipped", "source", src.Name(), "title", raw.Title, "score", rel.Score)
			continue
		}
		c.relevant.Add(1)

		raw.Relevance = &rel
		if o.enrich != nil {
			o.enrich(&raw)
		}

		wg.Add(1)
		job := raw
		err = pool.Submit(func() {
			defer wg.Done()
			o.upsertOne(ctx, src.Name(), job, &c)
		})
		if err != nil {
			wg.Done()
			c.errors.Add(1)
			o.logger.Error("submit upsert", "source", src.Name(), "url", raw.URL, "error", err)
		}
	}
	wg.Wait()

	st := c.stats(runID, src.Name(), time.Since(start), nil)
	o.logger.Info("ingested source",
		"run_id", runID,
		"source", st.Source,
		"seen", st.Seen,
		"relevant", st.Relevant,
		"skipped", st.Skipped,
		"upserted", st.Upserted,
		"errors", st.Errors,
		"duration", st.Duration.Round(time.Millisecond),
	)
	return st
}

func (o *Orchestrator) upsertOne(ctx context.Context, source string, raw model.RawJob, c *counters) {
	defer func() {
		if r := recover(); r != nil {
			c.errors.Add(1)
			o.logger.Error("upsert panicked", "source", source, "url", raw.URL, "panic", r)
		}
	}()

	res, err := o.upserter.Upsert(ctx, raw)
	if err != nil {
		c.errors.Add(1)
		o.logger.Error("upsert failed", "source", source, "url", raw.URL, "error", err)
		return
	}
	c.upserted.Add(1)
	o.logger.Debug("upserted",
		"source", source,
		"title", raw.Title,
		"company", raw.Company,
		"job_created", res.JobCreated,
		"classification", res.Classification,
	)
}
