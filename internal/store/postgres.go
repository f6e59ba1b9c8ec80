package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/amishk599/searchradar/internal/model"
)

type companyRow struct {
	ID             int64  `gorm:"primaryKey"`
	Name           string `gorm:"uniqueIndex;not null"`
	Classification string `gorm:"index"`
	Category       string
	Region         string
	Industry       string
	LastSeen       time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (companyRow) TableName() string { return "companies" }

type jobRow struct {
	ID               int64  `gorm:"primaryKey"`
	CompanyID        int64  `gorm:"index;not null"`
	CompanyName      string `gorm:"->;-:migration"`
	DedupeKey        string `gorm:"uniqueIndex;not null"`
	ExternalID       string
	Source           string `gorm:"index"`
	Title            string `gorm:"index"`
	Location         string
	URL              string
	PostedAt         *time.Time
	ScrapedAt        time.Time `gorm:"index"`
	Description      string    `gorm:"type:text"`
	RelevanceScore   float64
	RoleTier         string
	IsAISearch       bool `gorm:"index"`
	RemoteFlag       string
	EmploymentType   string
	Seniority        string
	AIForward        bool
	OppView          *string
	OppRoleType      *string
	OppBuyerOrSeller *string
	OppConfidence    *float64
	OppRationale     *string
	OppIndustry      *string
	Embedding        *pgvector.Vector `gorm:"type:vector"`
}

func (jobRow) TableName() string { return "jobs" }

// PostgresStore persists companies and jobs in PostgreSQL with job embeddings
// in a pgvector column.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore connects to dsn, enables the vector extension and migrates
// the schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("enabling pgvector: %w", err)
	}
	if err := db.AutoMigrate(&companyRow{}, &jobRow{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in a transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx model.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) CompanyByName(ctx context.Context, name string) (*model.Company, error) {
	var r companyRow
	err := t.db.WithContext(ctx).Where("name = ?", name).Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up company %q: %w", name, err)
	}
	c := r.toModel()
	return &c, nil
}

func (t *gormTx) CreateCompany(ctx context.Context, c *model.Company) error {
	if c.LastSeen.IsZero() {
		c.LastSeen = time.Now().UTC()
	}
	r := companyFromModel(c)
	if err := t.db.WithContext(ctx).Create(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("creating company %q: %w", c.Name, model.ErrDuplicate)
		}
		return fmt.Errorf("creating company %q: %w", c.Name, err)
	}
	c.ID, c.CreatedAt, c.UpdatedAt = r.ID, r.CreatedAt, r.UpdatedAt
	return nil
}

func (t *gormTx) UpdateCompany(ctx context.Context, c *model.Company) error {
	r := companyFromModel(c)
	if err := t.db.WithContext(ctx).Save(&r).Error; err != nil {
		return fmt.Errorf("updating company %d: %w", c.ID, err)
	}
	c.UpdatedAt = r.UpdatedAt
	return nil
}

func (t *gormTx) JobByDedupeKey(ctx context.Context, key string) (*model.Job, error) {
	var r jobRow
	err := jobsWithCompany(t.db.WithContext(ctx)).Where("jobs.dedupe_key = ?", key).Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up job %s: %w", key, err)
	}
	j := r.toModel()
	return &j, nil
}

func (t *gormTx) InsertJob(ctx context.Context, j *model.Job) error {
	r := jobFromModel(j)
	if err := t.db.WithContext(ctx).Create(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("inserting job %s: %w", j.DedupeKey, model.ErrDuplicate)
		}
		return fmt.Errorf("inserting job %s: %w", j.DedupeKey, err)
	}
	j.ID = r.ID
	return nil
}

func (t *gormTx) UpdateJob(ctx context.Context, j *model.Job) error {
	r := jobFromModel(j)
	if err := t.db.WithContext(ctx).Save(&r).Error; err != nil {
		return fmt.Errorf("updating job %d: %w", j.ID, err)
	}
	return nil
}

func jobsWithCompany(db *gorm.DB) *gorm.DB {
	return db.Model(&jobRow{}).
		Select("jobs.*, companies.name AS company_name").
		Joins("JOIN companies ON companies.id = jobs.company_id")
}

// Stats returns headline counters over the store.
func (s *PostgresStore) Stats(ctx context.Context) (model.Stats, error) {
	var row struct {
		TotalCompanies    int
		TotalAISearchJobs int
		TotalCompetitors  int
		TotalClients      int
		LastIngestionAt   *time.Time
	}
	err := s.db.WithContext(ctx).Raw(`SELECT
		(SELECT COUNT(*) FROM companies) AS total_companies,
		(SELECT COUNT(*) FROM jobs WHERE is_ai_search) AS total_ai_search_jobs,
		(SELECT COUNT(*) FROM companies WHERE classification = ?) AS total_competitors,
		(SELECT COUNT(*) FROM companies WHERE classification = ?) AS total_clients,
		(SELECT MAX(scraped_at) FROM jobs) AS last_ingestion_at`,
		string(model.ClassificationCompetitor), string(model.ClassificationClient),
	).Scan(&row).Error
	if err != nil {
		return model.Stats{}, fmt.Errorf("reading stats: %w", err)
	}
	return model.Stats(row), nil
}

// ListCompanies returns companies with at least q.MinRoles AI-search jobs,
// most roles first.
func (s *PostgresStore) ListCompanies(ctx context.Context, q model.CompanyQuery) ([]model.CompanySummary, error) {
	minRoles := q.MinRoles
	if minRoles < 1 {
		minRoles = 1
	}

	query := s.db.WithContext(ctx).
		Table("companies").
		Select("companies.*, COUNT(jobs.id) AS roles").
		Joins("JOIN jobs ON jobs.company_id = companies.id AND jobs.is_ai_search").
		Group("companies.id").
		Having("COUNT(jobs.id) >= ?", minRoles).
		Order("roles DESC, companies.name")
	if q.Category != "" {
		query = query.Where("companies.category = ?", q.Category)
	}
	if q.Region != "" {
		query = query.Where("companies.region = ?", q.Region)
	}

	var rows []struct {
		companyRow `gorm:"embedded"`
		Roles      int
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}

	out := make([]model.CompanySummary, 0, len(rows))
	for _, r := range rows {
		titles, err := s.distinctTitles(ctx, r.ID, true, 3)
		if err != nil {
			return nil, err
		}
		out = append(out, model.CompanySummary{
			Company:       r.companyRow.toModel(),
			AISearchRoles: r.Roles,
			SampleTitles:  titles,
		})
	}
	return out, nil
}

// AllCompanies returns every company ordered by name.
func (s *PostgresStore) AllCompanies(ctx context.Context) ([]model.Company, error) {
	var rows []companyRow
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing all companies: %w", err)
	}
	out := make([]model.Company, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// CompanyJobs returns a company's AI-search jobs, newest posting first with
// undated postings last.
func (s *PostgresStore) CompanyJobs(ctx context.Context, companyID int64) ([]model.Job, error) {
	var rows []jobRow
	err := jobsWithCompany(s.db.WithContext(ctx)).
		Where("jobs.company_id = ? AND jobs.is_ai_search", companyID).
		Order("jobs.posted_at DESC NULLS LAST, jobs.id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing jobs for company %d: %w", companyID, err)
	}
	return jobsToModel(rows), nil
}

// CompanyTitles returns up to limit distinct job titles for a company in the
// order they were first seen.
func (s *PostgresStore) CompanyTitles(ctx context.Context, companyID int64, limit int) ([]string, error) {
	return s.distinctTitles(ctx, companyID, false, limit)
}

// JobsMissingDescription returns AI-search jobs whose description is empty.
func (s *PostgresStore) JobsMissingDescription(ctx context.Context) ([]model.Job, error) {
	var rows []jobRow
	err := jobsWithCompany(s.db.WithContext(ctx)).
		Where("jobs.is_ai_search AND TRIM(jobs.description) = ''").
		Order("jobs.scraped_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing jobs missing description: %w", err)
	}
	return jobsToModel(rows), nil
}

func (s *PostgresStore) distinctTitles(ctx context.Context, companyID int64, aiSearchOnly bool, limit int) ([]string, error) {
	query := s.db.WithContext(ctx).
		Table("jobs").
		Select("title").
		Where("company_id = ?", companyID).
		Group("title").
		Order("MIN(id)")
	if aiSearchOnly {
		query = query.Where("is_ai_search")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var titles []string
	if err := query.Scan(&titles).Error; err != nil {
		return nil, fmt.Errorf("listing titles for company %d: %w", companyID, err)
	}
	return titles, nil
}

func (r companyRow) toModel() model.Company {
	return model.Company{
		ID:             r.ID,
		Name:           r.Name,
		Classification: model.Classification(r.Classification),
		Category:       r.Category,
		Region:         r.Region,
		Industry:       r.Industry,
		LastSeen:       r.LastSeen,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func companyFromModel(c *model.Company) companyRow {
	return companyRow{
		ID:             c.ID,
		Name:           c.Name,
		Classification: string(c.Classification),
		Category:       c.Category,
		Region:         c.Region,
		Industry:       c.Industry,
		LastSeen:       c.LastSeen,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func (r jobRow) toModel() model.Job {
	j := model.Job{
		ID:             r.ID,
		CompanyID:      r.CompanyID,
		CompanyName:    r.CompanyName,
		DedupeKey:      r.DedupeKey,
		ExternalID:     r.ExternalID,
		Source:         r.Source,
		Title:          r.Title,
		Location:       r.Location,
		URL:            r.URL,
		PostedAt:       r.PostedAt,
		ScrapedAt:      r.ScrapedAt,
		Description:    r.Description,
		RelevanceScore: r.RelevanceScore,
		RoleTier:       model.Tier(r.RoleTier),
		IsAISearch:     r.IsAISearch,
		Flags: model.EnrichmentFlags{
			Remote:         r.RemoteFlag,
			EmploymentType: r.EmploymentType,
			Seniority:      r.Seniority,
			AIForward:      r.AIForward,
		},
	}
	if r.OppView != nil {
		j.Opportunity = &model.OpportunityJudgment{
			View:          model.OpportunityView(*r.OppView),
			RoleType:      deref(r.OppRoleType),
			BuyerOrSeller: deref(r.OppBuyerOrSeller),
			Rationale:     deref(r.OppRationale),
			Industry:      deref(r.OppIndustry),
		}
		if r.OppConfidence != nil {
			j.Opportunity.Confidence = *r.OppConfidence
		}
	}
	if r.Embedding != nil {
		j.Embedding = r.Embedding.Slice()
	}
	return j
}

func jobFromModel(j *model.Job) jobRow {
	r := jobRow{
		ID:             j.ID,
		CompanyID:      j.CompanyID,
		DedupeKey:      j.DedupeKey,
		ExternalID:     j.ExternalID,
		Source:         j.Source,
		Title:          j.Title,
		Location:       j.Location,
		URL:            j.URL,
		PostedAt:       j.PostedAt,
		ScrapedAt:      j.ScrapedAt,
		Description:    j.Description,
		RelevanceScore: j.RelevanceScore,
		RoleTier:       string(j.RoleTier),
		IsAISearch:     j.IsAISearch,
		RemoteFlag:     j.Flags.Remote,
		EmploymentType: j.Flags.EmploymentType,
		Seniority:      j.Flags.Seniority,
		AIForward:      j.Flags.AIForward,
	}
	if o := j.Opportunity; o != nil {
		view := string(o.View)
		r.OppView = &view
		r.OppRoleType = &o.RoleType
		r.OppBuyerOrSeller = &o.BuyerOrSeller
		r.OppConfidence = &o.Confidence
		r.OppRationale = &o.Rationale
		r.OppIndustry = &o.Industry
	}
	if len(j.Embedding) > 0 {
		v := pgvector.NewVector(j.Embedding)
		r.Embedding = &v
	}
	return r
}

func jobsToModel(rows []jobRow) []model.Job {
	out := make([]model.Job, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
