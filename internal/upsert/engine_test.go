package upsert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/searchradar/internal/model"
	"github.com/amishk599/searchradar/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRelevance struct {
	rel   model.Relevance
	calls atomic.Int32
}

func (f *fakeRelevance) Evaluate(context.Context, string, string) (model.Relevance, error) {
	f.calls.Add(1)
	return f.rel, nil
}

type fakeCompanies struct {
	class model.Classification
}

func (f fakeCompanies) Classify(context.Context, string, string) model.Classification {
	return f.class
}

type fakeOpportunities struct {
	judgment *model.OpportunityJudgment
}

func (f fakeOpportunities) Classify(context.Context, string, string, string) *model.OpportunityJudgment {
	return f.judgment
}

type recordingHook struct {
	mu    sync.Mutex
	names []string
}

func (h *recordingHook) CompetitorDetected(_ context.Context, c model.Company) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.names = append(h.names, c.Name)
	return nil
}

func newSQLite(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "upsert.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var coreRelevance = model.Relevance{Score: 0.62, Tier: model.TierCore, Vector: []float32{1, 0}}

func rawJob(company, title, desc string) model.RawJob {
	return model.RawJob{
		ExternalID:  "ext-" + title,
		Source:      "test",
		Title:       title,
		Company:     company,
		Location:    "Remote",
		URL:         "https://example.com/" + strings.ReplaceAll(title, " ", "-"),
		Description: desc,
	}
}

func lookupJob(t *testing.T, s model.Store, key string) *model.Job {
	t.Helper()
	var job *model.Job
	require.NoError(t, s.WithTx(context.Background(), func(tx model.Tx) error {
		var err error
		job, err = tx.JobByDedupeKey(context.Background(), key)
		return err
	}))
	return job
}

func lookupCompany(t *testing.T, s model.Store, name string) *model.Company {
	t.Helper()
	var c *model.Company
	require.NoError(t, s.WithTx(context.Background(), func(tx model.Tx) error {
		var err error
		c, err = tx.CompanyByName(context.Background(), name)
		return err
	}))
	return c
}

func TestDedupeKey(t *testing.T) {
	a := DedupeKey("Acme", "SEO Lead", "Remote")
	b := DedupeKey("  acme ", "seo lead", "REMOTE ")
	c := DedupeKey("Acme", "SEO Lead", "London")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestArbitrate(t *testing.T) {
	tests := []struct {
		name      string
		judgment  *model.OpportunityJudgment
		heuristic model.Classification
		want      model.Classification
	}{
		{"no judgment", nil, model.ClassificationCompetitor, model.ClassificationCompetitor},
		{"confident client overrides", &model.OpportunityJudgment{View: model.ViewClient, Confidence: 0.9}, model.ClassificationCompetitor, model.ClassificationClient},
		{"confident competitor overrides", &model.OpportunityJudgment{View: model.ViewCompetitor, Confidence: 0.6}, model.ClassificationClient, model.ClassificationCompetitor},
		{"low confidence falls back", &model.OpportunityJudgment{View: model.ViewClient, Confidence: 0.4}, model.ClassificationCompetitor, model.ClassificationCompetitor},
		{"neutral falls back", &model.OpportunityJudgment{View: model.ViewNeutral, Confidence: 0.95}, model.ClassificationClient, model.ClassificationClient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Arbitrate(tt.judgment, tt.heuristic))
		})
	}
}

func TestUpsert_CreatesCompanyAndJob(t *testing.T) {
	s := newSQLite(t)
	rel := &fakeRelevance{rel: coreRelevance}
	judgment := &model.OpportunityJudgment{View: model.ViewClient, Confidence: 0.9, RoleType: "BrandBuyer", BuyerOrSeller: "Buyer", Industry: "B2B SaaS"}
	e := NewEngine(s, rel, fakeCompanies{model.ClassificationCompetitor}, fakeOpportunities{judgment}, nil, discardLogger())

	res, err := e.Upsert(context.Background(), rawJob("Acme Inc.", "AI Search Lead", "Own AI search."))
	require.NoError(t, err)

	assert.True(t, res.JobCreated)
	assert.True(t, res.CompanyCreated)
	assert.Equal(t, model.ClassificationClient, res.Classification)

	c := lookupCompany(t, s, "Acme")
	require.NotNil(t, c, "company should be stored under its normalized name")
	assert.Equal(t, model.CategorySaaS, c.Category)
	assert.Equal(t, "B2B SaaS", c.Industry)

	job := lookupJob(t, s, res.DedupeKey)
	require.NotNil(t, job)
	assert.Equal(t, DedupeKey("Acme", "AI Search Lead", "Remote"), job.DedupeKey)
	assert.True(t, job.IsAISearch)
	assert.Equal(t, model.TierCore, job.RoleTier)
	assert.InDelta(t, 0.62, job.RelevanceScore, 1e-9)
	assert.Equal(t, []float32{1, 0}, job.Embedding)
	require.NotNil(t, job.Opportunity)
	assert.Equal(t, model.ViewClient, job.Opportunity.View)
	assert.True(t, strings.HasPrefix(job.Description, "OPP_META: view=Client;"), job.Description)
	assert.Equal(t, int32(1), rel.calls.Load())
}

func TestUpsert_ReusesAttachedRelevance(t *testing.T) {
	s := newSQLite(t)
	rel := &fakeRelevance{rel: model.Relevance{Score: 0.1, Tier: model.TierOutOfScope}}
	e := NewEngine(s, rel, fakeCompanies{model.ClassificationClient}, nil, nil, discardLogger())

	raw := rawJob("Acme", "AI Search Lead", "")
	raw.Relevance = &coreRelevance
	res, err := e.Upsert(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, int32(0), rel.calls.Load())
	job := lookupJob(t, s, res.DedupeKey)
	require.NotNil(t, job)
	assert.Equal(t, model.TierCore, job.RoleTier)
	assert.Nil(t, job.Opportunity)
}

func TestUpsert_IsIdempotent(t *testing.T) {
	s := newSQLite(t)
	e := NewEngine(s, &fakeRelevance{rel: coreRelevance}, fakeCompanies{model.ClassificationClient}, nil, nil, discardLogger())
	ctx := context.Background()

	first, err := e.Upsert(ctx, rawJob("Acme", "SEO Lead", "desc"))
	require.NoError(t, err)
	second, err := e.Upsert(ctx, rawJob("Acme", "SEO Lead", "desc"))
	require.NoError(t, err)

	assert.True(t, first.JobCreated)
	assert.False(t, second.JobCreated)
	assert.False(t, second.CompanyCreated)
	assert.Equal(t, first.DedupeKey, second.DedupeKey)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalCompanies)
	assert.Equal(t, 1, stats.TotalAISearchJobs)
}

func TestUpsert_DescriptionUpdateRules(t *testing.T) {
	s := newSQLite(t)
	e := NewEngine(s, &fakeRelevance{rel: coreRelevance}, fakeCompanies{model.ClassificationClient}, nil, nil, discardLogger())
	ctx := context.Background()

	res, err := e.Upsert(ctx, rawJob("Acme", "SEO Lead", "Old Description"))
	require.NoError(t, err)

	_, err = e.Upsert(ctx, rawJob("Acme", "SEO Lead", "New Description"))
	require.NoError(t, err)
	assert.Equal(t, "New Description", lookupJob(t, s, res.DedupeKey).Description)

	// An empty description never clears a stored one.
	_, err = e.Upsert(ctx, rawJob("Acme", "SEO Lead", ""))
	require.NoError(t, err)
	assert.Equal(t, "New Description", lookupJob(t, s, res.DedupeKey).Description)
}

func TestUpsert_OpportunityTagIsAddedOnce(t *testing.T) {
	s := newSQLite(t)
	judgment := &model.OpportunityJudgment{View: model.ViewCompetitor, Confidence: 0.8, RoleType: "AgencyProvider", BuyerOrSeller: "Seller"}
	e := NewEngine(s, &fakeRelevance{rel: coreRelevance}, fakeCompanies{model.ClassificationClient}, fakeOpportunities{judgment}, nil, discardLogger())
	ctx := context.Background()

	res, err := e.Upsert(ctx, rawJob("AgencyOne", "SEO Strategist", "Serve many clients."))
	require.NoError(t, err)
	_, err = e.Upsert(ctx, rawJob("AgencyOne", "SEO Strategist", "Serve many clients."))
	require.NoError(t, err)

	desc := lookupJob(t, s, res.DedupeKey).Description
	assert.Equal(t, 1, strings.Count(desc, "OPP_META:"))
	assert.True(t, strings.HasSuffix(desc, "|| Serve many clients."))
}

func TestUpsert_NeverOverwritesEstablishedClassification(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	first := NewEngine(s, &fakeRelevance{rel: coreRelevance}, fakeCompanies{model.ClassificationCompetitor}, nil, nil, discardLogger())
	_, err := first.Upsert(ctx, rawJob("AgencyOne", "SEO Strategist", ""))
	require.NoError(t, err)

	judgment := &model.OpportunityJudgment{View: model.ViewClient, Confidence: 0.95, Industry: "Marketing Services"}
	second := NewEngine(s, &fakeRelevance{rel: coreRelevance}, fakeCompanies{model.ClassificationClient}, fakeOpportunities{judgment}, nil, discardLogger())
	res, err := second.Upsert(ctx, rawJob("AgencyOne", "Content Lead", ""))
	require.NoError(t, err)

	assert.Equal(t, model.ClassificationCompetitor, res.Classification)
	c := lookupCompany(t, s, "AgencyOne")
	require.NotNil(t, c)
	assert.Equal(t, model.ClassificationCompetitor, c.Classification)
	assert.Equal(t, model.CategoryAgency, c.Category)
	// Unset fields are still filled.
	assert.Equal(t, "Marketing Services", c.Industry)
}

func TestUpsert_ConcurrentSameCompanyYieldsOneRow(t *testing.T) {
	s := newSQLite(t)
	e := NewEngine(s, &fakeRelevance{rel: coreRelevance}, fakeCompanies{model.ClassificationClient}, nil, nil, discardLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.Upsert(ctx, rawJob("Racer LLC", fmt.Sprintf("SEO Role %d", i), ""))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	companies, err := s.AllCompanies(ctx)
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, "Racer", companies[0].Name)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalAISearchJobs)
}

func TestUpsert_DuplicateCompanyIsReread(t *testing.T) {
	s := newRacingStore("Racer")
	e := NewEngine(s, &fakeRelevance{rel: coreRelevance}, fakeCompanies{model.ClassificationClient}, nil, nil, discardLogger())

	res, err := e.Upsert(context.Background(), rawJob("Racer", "SEO Lead", ""))
	require.NoError(t, err)

	assert.False(t, res.CompanyCreated, "the concurrent creator owns the row")
	assert.True(t, res.JobCreated)
	assert.Len(t, s.companies, 1)
	assert.Len(t, s.jobs, 1)
	assert.Equal(t, int32(2), s.txs.Load())
}

func TestUpsert_HookFiresOncePerCompetitor(t *testing.T) {
	s := newSQLite(t)
	hook := &recordingHook{}
	e := NewEngine(s, &fakeRelevance{rel: coreRelevance}, fakeCompanies{model.ClassificationCompetitor}, nil, hook, discardLogger())
	ctx := context.Background()

	for _, title := range []string{"SEO Strategist", "Link Builder", "Account Manager"} {
		_, err := e.Upsert(ctx, rawJob("AgencyOne", title, ""))
		require.NoError(t, err)
	}
	e.Wait()

	assert.Equal(t, []string{"AgencyOne"}, hook.names)
}

func TestUpsert_HookFiresAgainInNextRun(t *testing.T) {
	s := newSQLite(t)
	hook := &recordingHook{}
	e := NewEngine(s, &fakeRelevance{rel: coreRelevance}, fakeCompanies{model.ClassificationCompetitor}, nil, hook, discardLogger())
	ctx := context.Background()

	e.BeginRun("run-1")
	_, err := e.Upsert(ctx, rawJob("AgencyOne", "SEO Strategist", ""))
	require.NoError(t, err)
	_, err = e.Upsert(ctx, rawJob("AgencyOne", "Link Builder", ""))
	require.NoError(t, err)
	e.Wait()

	e.BeginRun("run-2")
	_, err = e.Upsert(ctx, rawJob("AgencyOne", "Account Manager", ""))
	require.NoError(t, err)
	e.Wait()

	assert.Equal(t, []string{"AgencyOne", "AgencyOne"}, hook.names)
}

func TestUpsert_HookNotCalledForClients(t *testing.T) {
	s := newSQLite(t)
	hook := &recordingHook{}
	e := NewEngine(s, &fakeRelevance{rel: coreRelevance}, fakeCompanies{model.ClassificationClient}, nil, hook, discardLogger())

	_, err := e.Upsert(context.Background(), rawJob("Acme", "SEO Lead", ""))
	require.NoError(t, err)
	e.Wait()

	assert.Empty(t, hook.names)
}

func TestUpsert_EmptyCompanyIsAnError(t *testing.T) {
	e := NewEngine(newSQLite(t), &fakeRelevance{rel: coreRelevance}, fakeCompanies{model.ClassificationClient}, nil, nil, discardLogger())

	_, err := e.Upsert(context.Background(), rawJob("  ", "SEO Lead", ""))
	assert.Error(t, err)
}

func TestReclassify(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	seed := NewEngine(s, &fakeRelevance{rel: coreRelevance}, fakeCompanies{model.ClassificationClient}, nil, nil, discardLogger())
	_, err := seed.Upsert(ctx, rawJob("AgencyOne", "Account Manager", ""))
	require.NoError(t, err)

	company := *lookupCompany(t, s, "AgencyOne")
	e := NewEngine(s, &fakeRelevance{rel: coreRelevance}, fakeCompanies{model.ClassificationCompetitor}, nil, nil, discardLogger())

	// Backfill mode leaves the established classification alone.
	got, changed, err := e.Reclassify(ctx, company, []string{"Account Manager"}, false)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, model.ClassificationClient, got.Classification)

	got, changed, err = e.Reclassify(ctx, company, []string{"Account Manager"}, true)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.ClassificationCompetitor, got.Classification)
	assert.Equal(t, model.CategoryAgency, got.Category)
	assert.Equal(t, model.ClassificationCompetitor, lookupCompany(t, s, "AgencyOne").Classification)
}

// racingStore simulates another worker creating the company between this
// worker's lookup and insert.
type racingStore struct {
	mu        sync.Mutex
	race      string
	raced     bool
	companies map[string]model.Company
	jobs      map[string]model.Job
	nextID    int64
	txs       atomic.Int32
}

func newRacingStore(race string) *racingStore {
	return &racingStore{race: race, companies: map[string]model.Company{}, jobs: map[string]model.Job{}}
}

func (s *racingStore) WithTx(_ context.Context, fn func(tx model.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs.Add(1)

	companies := make(map[string]model.Company, len(s.companies))
	for k, v := range s.companies {
		companies[k] = v
	}
	jobs := make(map[string]model.Job, len(s.jobs))
	for k, v := range s.jobs {
		jobs[k] = v
	}

	if err := fn(racingTx{s}); err != nil {
		// Roll back everything except the concurrent creator's row.
		raced := s.companies[s.race]
		s.companies, s.jobs = companies, jobs
		if s.raced {
			s.companies[s.race] = raced
		}
		return err
	}
	return nil
}

type racingTx struct{ s *racingStore }

func (t racingTx) CompanyByName(_ context.Context, name string) (*model.Company, error) {
	if c, ok := t.s.companies[name]; ok {
		return &c, nil
	}
	return nil, nil
}

func (t racingTx) CreateCompany(_ context.Context, c *model.Company) error {
	if c.Name == t.s.race && !t.s.raced {
		t.s.raced = true
		t.s.nextID++
		t.s.companies[c.Name] = model.Company{ID: t.s.nextID, Name: c.Name, Classification: model.ClassificationClient, Category: model.CategorySaaS}
		return fmt.Errorf("insert: %w", model.ErrDuplicate)
	}
	if _, ok := t.s.companies[c.Name]; ok {
		return model.ErrDuplicate
	}
	t.s.nextID++
	c.ID = t.s.nextID
	t.s.companies[c.Name] = *c
	return nil
}

func (t racingTx) UpdateCompany(_ context.Context, c *model.Company) error {
	t.s.companies[c.Name] = *c
	return nil
}

func (t racingTx) JobByDedupeKey(_ context.Context, key string) (*model.Job, error) {
	if j, ok := t.s.jobs[key]; ok {
		return &j, nil
	}
	return nil, nil
}

func (t racingTx) InsertJob(_ context.Context, j *model.Job) error {
	t.s.nextID++
	j.ID = t.s.nextID
	t.s.jobs[j.DedupeKey] = *j
	return nil
}

func (t racingTx) UpdateJob(_ context.Context, j *model.Job) error {
	t.s.jobs[j.DedupeKey] = *j
	return nil
}
