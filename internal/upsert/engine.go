// Package upsert persists scored candidates as companies and jobs.
package upsert

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amishk599/searchradar/internal/ai"
	"github.com/amishk599/searchradar/internal/classify"
	"github.com/amishk599/searchradar/internal/model"
)

// MinJudgmentConfidence is the confidence at which a decisive opportunity
// judgment overrides the heuristic company classification.
const MinJudgmentConfidence = 0.6

// RelevanceEvaluator scores a posting.
type RelevanceEvaluator interface {
	Evaluate(ctx context.Context, title, description string) (model.Relevance, error)
}

// CompanyClassifier is the heuristic classifier. It always answers.
type CompanyClassifier interface {
	Classify(ctx context.Context, name, description string) model.Classification
}

// OpportunityClassifier returns nil when it has no opinion.
type OpportunityClassifier interface {
	Classify(ctx context.Context, company, title, description string) *model.OpportunityJudgment
}

// Result describes what one Upsert did.
type Result struct {
	JobCreated     bool
	CompanyCreated bool
	Classification model.Classification
	DedupeKey      string
}

// Engine upserts one candidate per call, each in its own transaction.
// It is safe for concurrent use.
type Engine struct {
	store         model.Store
	relevance     RelevanceEvaluator
	companies     CompanyClassifier
	opportunities OpportunityClassifier
	hook          model.CompetitorHook
	logger        *slog.Logger
	now           func() time.Time

	hooks    sync.WaitGroup
	mu       sync.Mutex
	notified map[string]struct{} // competitors reported in the current run
}

// NewEngine creates an Engine. opportunities and hook may be nil.
func NewEngine(store model.Store, relevance RelevanceEvaluator, companies CompanyClassifier, opportunities OpportunityClassifier, hook model.CompetitorHook, logger *slog.Logger) *Engine {
	return &Engine{
		store:         store,
		relevance:     relevance,
		companies:     companies,
		opportunities: opportunities,
		hook:          hook,
		logger:        logger,
		now:           time.Now,
		notified:      make(map[string]struct{}),
	}
}

// BeginRun starts a new ingestion run: competitors already reported in an
// earlier run are reported again when they show up.
func (e *Engine) BeginRun(runID string) {
	e.mu.Lock()
	e.notified = make(map[string]struct{})
	e.mu.Unlock()
	e.logger.Debug("competitor notifications reset", "run_id", runID)
}

// DedupeKey is the sha256 hex digest of the lower-cased, trimmed company,
// title and location joined by "|".
func DedupeKey(company, title, location string) string {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	sum := sha256.Sum256([]byte(norm(company) + "|" + norm(title) + "|" + norm(location)))
	return hex.EncodeToString(sum[:])
}

// Arbitrate picks the final classification. A Client or Competitor judgment
// with confidence of at least MinJudgmentConfidence wins; anything else
// defers to the heuristic.
func Arbitrate(judgment *model.OpportunityJudgment, heuristic model.Classification) model.Classification {
	if judgment == nil || judgment.Confidence < MinJudgmentConfidence {
		return heuristic
	}
	if c := judgment.View.Classification(); c != model.ClassificationNone {
		return c
	}
	return heuristic
}

// Upsert persists raw, creating its company on first sighting.
func (e *Engine) Upsert(ctx context.Context, raw model.RawJob) (Result, error) {
	name := classify.NormalizeCompanyName(raw.Company)
	if name == "" {
		return Result{}, fmt.Errorf("upsert %q: empty company name", raw.Title)
	}

	rel := raw.Relevance
	if rel == nil {
		r, err := e.relevance.Evaluate(ctx, raw.Title, raw.Description)
		if err != nil {
			return Result{}, fmt.Errorf("scoring %q: %w", raw.Title, err)
		}
		rel = &r
	}

	judgment, heuristic := e.classify(ctx, name, raw.Title, raw.Description)
	classification := Arbitrate(judgment, heuristic)

	key := DedupeKey(name, raw.Title, raw.Location)
	description := ai.TagDescription(raw.Description, judgment)

	var (
		res     Result
		company model.Company
	)
	attempt := func() error {
		res = Result{DedupeKey: key}
		return e.store.WithTx(ctx, func(tx model.Tx) error {
			c, created, err := e.resolveCompany(ctx, tx, name, classification, judgment)
			if err != nil {
				return err
			}
			res.CompanyCreated = created

			jobCreated, err := e.writeJob(ctx, tx, c, key, raw, description, *rel, judgment)
			if err != nil {
				return err
			}
			res.JobCreated = jobCreated

			c.LastSeen = e.now().UTC()
			if err := tx.UpdateCompany(ctx, c); err != nil {
				return err
			}
			company = *c
			res.Classification = c.Classification
			return nil
		})
	}

	err := attempt()
	if errors.Is(err, model.ErrDuplicate) {
		// Another worker created the company first; the retry re-reads it.
		e.logger.Debug("company created concurrently, retrying", "company", name)
		err = attempt()
	}
	if err != nil {
		return Result{}, fmt.Errorf("upsert %q at %q: %w", raw.Title, name, err)
	}

	if company.Classification == model.ClassificationCompetitor {
		e.notifyCompetitor(company)
	}
	return res, nil
}

// classify runs both classifiers concurrently.
func (e *Engine) classify(ctx context.Context, name, title, description string) (*model.OpportunityJudgment, model.Classification) {
	var (
		judgment  *model.OpportunityJudgment
		heuristic model.Classification
	)
	g, gctx := errgroup.WithContext(ctx)
	if e.opportunities != nil {
		g.Go(func() error {
			judgment = e.opportunities.Classify(gctx, name, title, description)
			return nil
		})
	}
	g.Go(func() error {
		heuristic = e.companies.Classify(gctx, name, description)
		return nil
	})
	_ = g.Wait()
	return judgment, heuristic
}

func (e *Engine) resolveCompany(ctx context.Context, tx model.Tx, name string, classification model.Classification, judgment *model.OpportunityJudgment) (*model.Company, bool, error) {
	c, err := tx.CompanyByName(ctx, name)
	if err != nil {
		return nil, false, err
	}

	if c == nil {
		c = &model.Company{
			Name:           name,
			Classification: classification,
			Category:       model.CategoryFor(classification),
			LastSeen:       e.now().UTC(),
		}
		if judgment != nil {
			c.Industry = judgment.Industry
		}
		if err := tx.CreateCompany(ctx, c); err != nil {
			return nil, false, err
		}
		e.logger.Info("company created",
			"company", name,
			"classification", classification,
			"category", c.Category,
		)
		return c, true, nil
	}

	// Established values are never overwritten.
	if c.Classification == model.ClassificationNone {
		c.Classification = classification
	}
	if c.Category == "" {
		c.Category = model.CategoryFor(c.Classification)
	}
	if c.Industry == "" && judgment != nil {
		c.Industry = judgment.Industry
	}
	return c, false, nil
}

func (e *Engine) writeJob(ctx context.Context, tx model.Tx, c *model.Company, key string, raw model.RawJob, description string, rel model.Relevance, judgment *model.OpportunityJudgment) (bool, error) {
	existing, err := tx.JobByDedupeKey(ctx, key)
	if err != nil {
		return false, err
	}

	now := e.now().UTC()
	if existing != nil {
		existing.ScrapedAt = now
		existing.RelevanceScore = rel.Score
		existing.RoleTier = rel.Tier
		existing.IsAISearch = rel.Tier.IsAISearch()
		existing.Flags = raw.Flags
		if judgment != nil {
			existing.Opportunity = judgment
		}
		if len(rel.Vector) > 0 {
			existing.Embedding = rel.Vector
		}
		if existing.PostedAt == nil {
			existing.PostedAt = raw.PostedAt
		}
		if strings.TrimSpace(description) != "" && description != existing.Description {
			existing.Description = description
		}
		return false, tx.UpdateJob(ctx, existing)
	}

	job := &model.Job{
		CompanyID:      c.ID,
		DedupeKey:      key,
		ExternalID:     raw.ExternalID,
		Source:         raw.Source,
		Title:          raw.Title,
		Location:       raw.Location,
		URL:            raw.URL,
		PostedAt:       raw.PostedAt,
		ScrapedAt:      now,
		Description:    description,
		RelevanceScore: rel.Score,
		RoleTier:       rel.Tier,
		IsAISearch:     rel.Tier.IsAISearch(),
		Flags:          raw.Flags,
		Opportunity:    judgment,
		Embedding:      rel.Vector,
	}
	if err := tx.InsertJob(ctx, job); err != nil {
		return false, err
	}
	return true, nil
}

// notifyCompetitor calls the hook after commit without blocking the upsert.
// Each company is reported at most once per run.
func (e *Engine) notifyCompetitor(c model.Company) {
	if e.hook == nil {
		return
	}
	e.mu.Lock()
	_, seen := e.notified[c.Name]
	e.notified[c.Name] = struct{}{}
	e.mu.Unlock()
	if seen {
		return
	}
	e.hooks.Add(1)
	go func() {
		defer e.hooks.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.hook.CompetitorDetected(ctx, c); err != nil {
			e.logger.Warn("competitor hook failed", "company", c.Name, "error", err)
		}
	}()
}

// Wait blocks until every in-flight competitor hook has returned.
func (e *Engine) Wait() {
	e.hooks.Wait()
}

// Reclassify re-runs the heuristic classifier for company over its name and a
// description derived from titles. With overwrite, classification and
// category are replaced; otherwise only unset fields are filled. It reports
// whether the stored company changed.
func (e *Engine) Reclassify(ctx context.Context, company model.Company, titles []string, overwrite bool) (model.Company, bool, error) {
	classification := e.companies.Classify(ctx, company.Name, classify.DescribeFromTitles(titles))

	var (
		updated model.Company
		changed bool
	)
	err := e.store.WithTx(ctx, func(tx model.Tx) error {
		c, err := tx.CompanyByName(ctx, company.Name)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("company %q not found", company.Name)
		}

		before := *c
		switch {
		case overwrite:
			c.Classification = classification
			c.Category = model.CategoryFor(classification)
		default:
			if c.Classification == model.ClassificationNone {
				c.Classification = classification
			}
			if c.Category == "" {
				c.Category = model.CategoryFor(c.Classification)
			}
		}

		updated = *c
		if c.Classification == before.Classification && c.Category == before.Category {
			return nil
		}
		changed = true
		return tx.UpdateCompany(ctx, c)
	})
	if err != nil {
		return model.Company{}, false, fmt.Errorf("reclassify %q: %w", company.Name, err)
	}
	return updated, changed, nil
}
