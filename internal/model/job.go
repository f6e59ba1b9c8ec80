package model

import (
	"context"
	"time"
)

// Tier is the coarse relevance bucket derived from a similarity score.
type Tier string

const (
	TierCore       Tier = "core"
	TierRelated    Tier = "related"
	TierOutOfScope Tier = "out_of_scope"
)

// IsAISearch reports whether the tier counts as an AI-search role.
func (t Tier) IsAISearch() bool {
	return t == TierCore || t == TierRelated
}

// Relevance is the result of scoring a job once. It travels with the RawJob
// so the filter decision and the persisted score never drift apart.
type Relevance struct {
	Score  float64
	Tier   Tier
	Vector []float32 // unit vector of the scored text, nil if unavailable
}

// EnrichmentFlags are the rule-based signals extracted from a posting.
type EnrichmentFlags struct {
	Remote         string // "remote", "hybrid", "onsite" or empty
	EmploymentType string // "full_time", "part_time", "contract" or empty
	Seniority      string // "vp", "director", "lead", "senior", "junior" or empty
	AIForward      bool
}

// RawJob is a candidate posting produced by a Source before persistence.
type RawJob struct {
	ExternalID  string
	Source      string // source name, e.g. "seojobs"
	Title       string
	Company     string // company name as listed, not normalized
	Location    string
	URL         string
	PostedAt    *time.Time
	Description string     // plain text, may be empty when detail fetch failed
	Relevance   *Relevance // provisional score attached by the orchestrator
	Flags       EnrichmentFlags
}

// Job is a persisted posting. DedupeKey is its identity.
type Job struct {
	ID             int64
	CompanyID      int64
	CompanyName    string // populated by read queries only
	DedupeKey      string
	ExternalID     string
	Source         string
	Title          string
	Location       string
	URL            string
	PostedAt       *time.Time
	ScrapedAt      time.Time
	Description    string
	RelevanceScore float64
	RoleTier       Tier
	IsAISearch     bool
	Flags          EnrichmentFlags
	Opportunity    *OpportunityJudgment // nil when no judgment was available
	Embedding      []float32
}

// Source produces raw job candidates from one external listing.
// Fetch returns an error only when the listing itself is unreachable. The
// returned channel yields candidates in completion order and is closed once
// every in-flight detail fetch has finished or ctx is done.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (<-chan RawJob, error)
}

// Store runs each upsert in its own transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of row operations available inside a transaction.
// Lookups return (nil, nil) when the row does not exist.
type Tx interface {
	CompanyByName(ctx context.Context, name string) (*Company, error)
	CreateCompany(ctx context.Context, c *Company) error // ErrDuplicate on name conflict
	UpdateCompany(ctx context.Context, c *Company) error
	JobByDedupeKey(ctx context.Context, key string) (*Job, error)
	InsertJob(ctx context.Context, j *Job) error
	UpdateJob(ctx context.Context, j *Job) error
}

// Reporter is the read-only aggregate surface over persisted data.
type Reporter interface {
	Stats(ctx context.Context) (Stats, error)
	ListCompanies(ctx context.Context, q CompanyQuery) ([]CompanySummary, error)
	AllCompanies(ctx context.Context) ([]Company, error)
	CompanyJobs(ctx context.Context, companyID int64) ([]Job, error)
	CompanyTitles(ctx context.Context, companyID int64, limit int) ([]string, error)
	JobsMissingDescription(ctx context.Context) ([]Job, error)
}

// Stats are the headline counters over the store.
type Stats struct {
	TotalCompanies    int
	TotalAISearchJobs int
	TotalCompetitors  int
	TotalClients      int
	LastIngestionAt   *time.Time
}

// CompanyQuery filters ListCompanies. Empty fields match everything.
type CompanyQuery struct {
	MinRoles int
	Category string
	Region   string
}

// CompanySummary is a company with its AI-search role aggregate.
type CompanySummary struct {
	Company
	AISearchRoles int
	SampleTitles  []string // up to 3 distinct titles
}

// CompetitorHook is notified whenever a company ends up classified as Competitor.
type CompetitorHook interface {
	CompetitorDetected(ctx context.Context, company Company) error
}
