package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/searchradar/internal/adapter"
	"github.com/amishk599/searchradar/internal/classify"
	"github.com/amishk599/searchradar/internal/config"
	"github.com/amishk599/searchradar/internal/embed"
	"github.com/amishk599/searchradar/internal/enrich"
	"github.com/amishk599/searchradar/internal/filter"
	"github.com/amishk599/searchradar/internal/model"
	"github.com/amishk599/searchradar/internal/store"
	"github.com/amishk599/searchradar/internal/upsert"
)

// --- Fakes ---

// titleRelevance marks a title relevant when it contains any keyword.
type titleRelevance struct {
	keywords []string
	failOn   string
}

func (r titleRelevance) Evaluate(_ context.Context, title, _ string) (model.Relevance, error) {
	if r.failOn != "" && title == r.failOn {
		return model.Relevance{}, errors.New("encoder down")
	}
	lower := strings.ToLower(title)
	for _, k := range r.keywords {
		if strings.Contains(lower, k) {
			return model.Relevance{Score: 0.6, Tier: model.TierCore}, nil
		}
	}
	return model.Relevance{Score: 0.1, Tier: model.TierOutOfScope}, nil
}

func (titleRelevance) IsRelevant(score float64) bool { return score >= 0.35 }

// recordingUpserter records every candidate and can fail or panic on a title.
type recordingUpserter struct {
	mu        sync.Mutex
	got       []model.RawJob
	failOn    string
	panicOn   string
	inFlight  atomic.Int32
	maxFlight atomic.Int32
	delay     time.Duration
}

func (u *recordingUpserter) Upsert(_ context.Context, raw model.RawJob) (upsert.Result, error) {
	n := u.inFlight.Add(1)
	defer u.inFlight.Add(-1)
	for {
		m := u.maxFlight.Load()
		if n <= m || u.maxFlight.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(u.delay)

	if raw.Title == u.panicOn {
		panic("boom")
	}
	if raw.Title == u.failOn {
		return upsert.Result{}, errors.New("db locked")
	}
	u.mu.Lock()
	u.got = append(u.got, raw)
	u.mu.Unlock()
	return upsert.Result{JobCreated: true}, nil
}

type runTrackingUpserter struct {
	recordingUpserter
	runs []string
}

func (u *runTrackingUpserter) BeginRun(runID string) {
	u.runs = append(u.runs, runID)
}

type failingSource struct{ name string }

func (s failingSource) Name() string { return s.name }

func (s failingSource) Fetch(context.Context) (<-chan model.RawJob, error) {
	return nil, errors.New("listing unreachable")
}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var searchKeywords = []string{"seo", "search"}

// expectedRelevant counts mock titles the keyword relevance accepts.
func expectedRelevant(t *testing.T) int {
	t.Helper()
	jobs, err := adapter.NewMockSource("").Fetch(context.Background())
	if err != nil {
		t.Fatalf("mock fetch: %v", err)
	}
	r := titleRelevance{keywords: searchKeywords}
	n := 0
	for j := range jobs {
		rel, _ := r.Evaluate(context.Background(), j.Title, "")
		if r.IsRelevant(rel.Score) {
			n++
		}
	}
	return n
}

// --- Tests ---

func TestRunSource_MockCounters(t *testing.T) {
	up := &recordingUpserter{}
	o := NewOrchestrator(titleRelevance{keywords: searchKeywords}, enrich.Apply, up, discardLogger())

	st := o.RunSource(context.Background(), adapter.NewMockSource(""))

	r := expectedRelevant(t)
	if r == 0 || r == adapter.MockCount() {
		t.Fatalf("fixture should mix relevant and irrelevant titles, got R=%d", r)
	}
	if st.Seen != 14 || st.Relevant != r || st.Skipped != 14-r || st.Upserted != r || st.Errors != 0 {
		t.Errorf("stats = %+v, want seen=14 relevant=%d skipped=%d upserted=%d errors=0", st, r, 14-r, r)
	}
	if st.Source != "mock" || st.RunID == "" {
		t.Errorf("source=%q run_id=%q", st.Source, st.RunID)
	}
	if len(up.got) != r {
		t.Fatalf("upserter received %d candidates, want %d", len(up.got), r)
	}
	for _, raw := range up.got {
		if raw.Relevance == nil {
			t.Errorf("%q reached upsert without an attached relevance", raw.Title)
		}
	}
}

func TestRunSource_EnrichesOnlyRelevant(t *testing.T) {
	up := &recordingUpserter{}
	var enriched atomic.Int32
	count := func(raw *model.RawJob) {
		enriched.Add(1)
		enrich.Apply(raw)
	}
	o := NewOrchestrator(titleRelevance{keywords: searchKeywords}, count, up, discardLogger())

	st := o.RunSource(context.Background(), adapter.NewMockSource(""))

	if int(enriched.Load()) != st.Relevant {
		t.Errorf("enriched %d candidates, want %d", enriched.Load(), st.Relevant)
	}
	for _, raw := range up.got {
		if raw.Location == "Remote" && raw.Flags.Remote != "remote" {
			t.Errorf("%q: remote flag = %q", raw.Title, raw.Flags.Remote)
		}
	}
}

func TestRunSource_FailuresAreIsolated(t *testing.T) {
	up := &recordingUpserter{failOn: "Head of Search", panicOn: "Technical SEO Manager"}
	rel := titleRelevance{keywords: searchKeywords, failOn: "Barista"}
	o := NewOrchestrator(rel, nil, up, discardLogger())

	st := o.RunSource(context.Background(), adapter.NewMockSource(""))

	r := expectedRelevant(t)
	if st.Seen != 14 {
		t.Errorf("seen = %d, want 14", st.Seen)
	}
	// Barista fails scoring: neither relevant nor skipped.
	if st.Relevant != r || st.Skipped != 14-r-1 {
		t.Errorf("relevant=%d skipped=%d, want %d and %d", st.Relevant, st.Skipped, r, 14-r-1)
	}
	if st.Errors != 3 {
		t.Errorf("errors = %d, want 3 (scoring, upsert error, panic)", st.Errors)
	}
	if st.Upserted != r-2 {
		t.Errorf("upserted = %d, want %d", st.Upserted, r-2)
	}
}

func TestRunSource_BoundsUpsertConcurrency(t *testing.T) {
	up := &recordingUpserter{delay: 20 * time.Millisecond}
	o := NewOrchestrator(titleRelevance{keywords: []string{""}}, nil, up, discardLogger(), WithUpsertConcurrency(2))

	st := o.RunSource(context.Background(), adapter.NewMockSource(""))

	if st.Upserted != 14 {
		t.Fatalf("upserted = %d, want 14", st.Upserted)
	}
	if m := up.maxFlight.Load(); m > 2 {
		t.Errorf("max in-flight upserts = %d, want <= 2", m)
	}
}

func TestRun_ListingFailureDoesNotStopNextSource(t *testing.T) {
	up := &recordingUpserter{}
	o := NewOrchestrator(titleRelevance{keywords: searchKeywords}, nil, up, discardLogger())

	stats := o.Run(context.Background(), []model.Source{failingSource{name: "down"}, adapter.NewMockSource("mock")})

	if len(stats) != 2 {
		t.Fatalf("got %d stats, want 2", len(stats))
	}
	if stats[0].Err == nil || stats[0].Seen != 0 {
		t.Errorf("failed source stats = %+v", stats[0])
	}
	if stats[1].Seen != 14 || stats[1].Err != nil {
		t.Errorf("second source stats = %+v", stats[1])
	}
	if stats[0].RunID != stats[1].RunID {
		t.Errorf("sources of one run should share a run id")
	}
}

func TestRun_BeginsEachRunOnTheUpserter(t *testing.T) {
	up := &runTrackingUpserter{}
	o := NewOrchestrator(titleRelevance{keywords: searchKeywords}, nil, up, discardLogger())
	ctx := context.Background()

	first := o.Run(ctx, []model.Source{adapter.NewMockSource("a"), adapter.NewMockSource("b")})
	second := o.RunSource(ctx, adapter.NewMockSource("c"))

	if len(up.runs) != 2 {
		t.Fatalf("BeginRun called %d times, want 2: %v", len(up.runs), up.runs)
	}
	if up.runs[0] != first[0].RunID || up.runs[1] != second.RunID {
		t.Errorf("runs = %v, want [%s %s]", up.runs, first[0].RunID, second.RunID)
	}
}

func TestRun_EndToEndWithSQLite(t *testing.T) {
	ctx := context.Background()
	logger := discardLogger()

	svc := embed.NewService(embed.NewHashEncoder(384))
	d := config.ScoringDefaultsFor("local")
	rel, err := filter.NewRelevanceClassifier(ctx, svc, nil, d.High, d.Medium)
	if err != nil {
		t.Fatalf("relevance: %v", err)
	}
	companies, err := classify.NewDefault(ctx, svc, d.Margin, logger)
	if err != nil {
		t.Fatalf("company classifier: %v", err)
	}
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "e2e.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer db.Close()

	engine := upsert.NewEngine(db, rel, companies, nil, nil, logger)
	o := NewOrchestrator(rel, enrich.Apply, engine, logger)

	first := o.Run(ctx, []model.Source{adapter.NewMockSource("")})[0]
	if first.Seen != 14 || first.Errors != 0 {
		t.Fatalf("first run stats = %+v", first)
	}
	if first.Relevant == 0 {
		t.Errorf("default thresholds dropped every mock posting: %+v", first)
	}
	if first.Relevant+first.Skipped != first.Seen || first.Upserted != first.Relevant {
		t.Errorf("inconsistent counters: %+v", first)
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAISearchJobs != first.Upserted {
		t.Errorf("ai-search jobs = %d, want %d", stats.TotalAISearchJobs, first.Upserted)
	}

	// A second run over the same postings creates nothing new.
	second := o.Run(ctx, []model.Source{adapter.NewMockSource("")})[0]
	if second.Upserted != first.Upserted {
		t.Errorf("second run upserted %d, want %d", second.Upserted, first.Upserted)
	}
	again, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if again.TotalAISearchJobs != stats.TotalAISearchJobs || again.TotalCompanies != stats.TotalCompanies {
		t.Errorf("re-run changed row counts: %+v -> %+v", stats, again)
	}
}
