package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/amishk599/searchradar/internal/model"
)

// timeLayout is fixed-width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS companies (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	name           TEXT NOT NULL UNIQUE,
	classification TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	region         TEXT NOT NULL DEFAULT '',
	industry       TEXT NOT NULL DEFAULT '',
	last_seen      TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_companies_classification ON companies (classification);

CREATE TABLE IF NOT EXISTS jobs (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id          INTEGER NOT NULL REFERENCES companies (id),
	dedupe_key          TEXT NOT NULL UNIQUE,
	external_id         TEXT NOT NULL DEFAULT '',
	source              TEXT NOT NULL,
	title               TEXT NOT NULL,
	location            TEXT NOT NULL DEFAULT '',
	url                 TEXT NOT NULL DEFAULT '',
	posted_at           TEXT,
	scraped_at          TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	relevance_score     REAL NOT NULL DEFAULT 0,
	role_tier           TEXT NOT NULL DEFAULT '',
	is_ai_search        INTEGER NOT NULL DEFAULT 0,
	remote_flag         TEXT NOT NULL DEFAULT '',
	employment_type     TEXT NOT NULL DEFAULT '',
	seniority           TEXT NOT NULL DEFAULT '',
	ai_forward          INTEGER NOT NULL DEFAULT 0,
	opp_view            TEXT,
	opp_role_type       TEXT,
	opp_buyer_or_seller TEXT,
	opp_confidence      REAL,
	opp_rationale       TEXT,
	opp_industry        TEXT,
	embedding           BLOB
);
CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs (company_id);
CREATE INDEX IF NOT EXISTS idx_jobs_source ON jobs (source);
CREATE INDEX IF NOT EXISTS idx_jobs_is_ai_search ON jobs (is_ai_search);
CREATE INDEX IF NOT EXISTS idx_jobs_scraped_at ON jobs (scraped_at);
`

// SQLiteStore persists companies and jobs in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// SQLite has a single writer; one connection serializes transactions.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WithTx runs fn in a transaction, committing on nil and rolling back otherwise.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx model.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&sqliteTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type sqliteTx struct {
	tx *sql.Tx
}

const companyColumns = `id, name, classification, category, region, industry, last_seen, created_at, updated_at`

func (t *sqliteTx) CompanyByName(ctx context.Context, name string) (*model.Company, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE name = ?`, name)
	c, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up company %q: %w", name, err)
	}
	return c, nil
}

func (t *sqliteTx) CreateCompany(ctx context.Context, c *model.Company) error {
	now := time.Now().UTC()
	if c.LastSeen.IsZero() {
		c.LastSeen = now
	}
	c.CreatedAt, c.UpdatedAt = now, now

	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO companies (name, classification, category, region, industry, last_seen, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, string(c.Classification), c.Category, c.Region, c.Industry,
		formatTime(c.LastSeen), formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("creating company %q: %w", c.Name, model.ErrDuplicate)
		}
		return fmt.Errorf("creating company %q: %w", c.Name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading company id: %w", err)
	}
	c.ID = id
	return nil
}

func (t *sqliteTx) UpdateCompany(ctx context.Context, c *model.Company) error {
	c.UpdatedAt = time.Now().UTC()
	_, err := t.tx.ExecContext(ctx,
		`UPDATE companies SET classification = ?, category = ?, region = ?, industry = ?, last_seen = ?, updated_at = ?
		 WHERE id = ?`,
		string(c.Classification), c.Category, c.Region, c.Industry,
		formatTime(c.LastSeen), formatTime(c.UpdatedAt), c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating company %d: %w", c.ID, err)
	}
	return nil
}

func (t *sqliteTx) JobByDedupeKey(ctx context.Context, key string) (*model.Job, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs j JOIN companies c ON c.id = j.company_id WHERE j.dedupe_key = ?`, key)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up job %s: %w", key, err)
	}
	return j, nil
}

func (t *sqliteTx) InsertJob(ctx context.Context, j *model.Job) error {
	opp := oppColumns(j.Opportunity)
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO jobs (company_id, dedupe_key, external_id, source, title, location, url, posted_at, scraped_at,
			description, relevance_score, role_tier, is_ai_search, remote_flag, employment_type, seniority, ai_forward,
			opp_view, opp_role_type, opp_buyer_or_seller, opp_confidence, opp_rationale, opp_industry, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.CompanyID, j.DedupeKey, j.ExternalID, j.Source, j.Title, j.Location, j.URL,
		nullTime(j.PostedAt), formatTime(j.ScrapedAt),
		j.Description, j.RelevanceScore, string(j.RoleTier), j.IsAISearch,
		j.Flags.Remote, j.Flags.EmploymentType, j.Flags.Seniority, j.Flags.AIForward,
		opp.view, opp.roleType, opp.buyerOrSeller, opp.confidence, opp.rationale, opp.industry,
		encodeVector(j.Embedding),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("inserting job %s: %w", j.DedupeKey, model.ErrDuplicate)
		}
		return fmt.Errorf("inserting job %s: %w", j.DedupeKey, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading job id: %w", err)
	}
	j.ID = id
	return nil
}

func (t *sqliteTx) UpdateJob(ctx context.Context, j *model.Job) error {
	opp := oppColumns(j.Opportunity)
	_, err := t.tx.ExecContext(ctx,
		`UPDATE jobs SET external_id = ?, url = ?, posted_at = ?, scraped_at = ?, description = ?,
			relevance_score = ?, role_tier = ?, is_ai_search = ?,
			remote_flag = ?, employment_type = ?, seniority = ?, ai_forward = ?,
			opp_view = ?, opp_role_type = ?, opp_buyer_or_seller = ?, opp_confidence = ?, opp_rationale = ?, opp_industry = ?,
			embedding = ?
		 WHERE id = ?`,
		j.ExternalID, j.URL, nullTime(j.PostedAt), formatTime(j.ScrapedAt), j.Description,
		j.RelevanceScore, string(j.RoleTier), j.IsAISearch,
		j.Flags.Remote, j.Flags.EmploymentType, j.Flags.Seniority, j.Flags.AIForward,
		opp.view, opp.roleType, opp.buyerOrSeller, opp.confidence, opp.rationale, opp.industry,
		encodeVector(j.Embedding), j.ID,
	)
	if err != nil {
		return fmt.Errorf("updating job %d: %w", j.ID, err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (*model.Company, error) {
	var (
		c                              model.Company
		classification                 string
		lastSeen, createdAt, updatedAt string
	)
	if err := row.Scan(&c.ID, &c.Name, &classification, &c.Category, &c.Region, &c.Industry,
		&lastSeen, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.Classification = model.Classification(classification)
	c.LastSeen = parseTime(lastSeen)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

const jobColumns = `j.id, j.company_id, c.name, j.dedupe_key, j.external_id, j.source, j.title, j.location, j.url,
	j.posted_at, j.scraped_at, j.description, j.relevance_score, j.role_tier, j.is_ai_search,
	j.remote_flag, j.employment_type, j.seniority, j.ai_forward,
	j.opp_view, j.opp_role_type, j.opp_buyer_or_seller, j.opp_confidence, j.opp_rationale, j.opp_industry,
	j.embedding`

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		j                                     model.Job
		postedAt                              sql.NullString
		scrapedAt, tier                       string
		oppView, oppRole, oppBuyer, oppReason sql.NullString
		oppIndustry                           sql.NullString
		oppConfidence                         sql.NullFloat64
		embedding                             []byte
	)
	if err := row.Scan(&j.ID, &j.CompanyID, &j.CompanyName, &j.DedupeKey, &j.ExternalID, &j.Source,
		&j.Title, &j.Location, &j.URL,
		&postedAt, &scrapedAt, &j.Description, &j.RelevanceScore, &tier, &j.IsAISearch,
		&j.Flags.Remote, &j.Flags.EmploymentType, &j.Flags.Seniority, &j.Flags.AIForward,
		&oppView, &oppRole, &oppBuyer, &oppConfidence, &oppReason, &oppIndustry,
		&embedding); err != nil {
		return nil, err
	}

	if postedAt.Valid {
		t := parseTime(postedAt.String)
		j.PostedAt = &t
	}
	j.ScrapedAt = parseTime(scrapedAt)
	j.RoleTier = model.Tier(tier)
	if oppView.Valid {
		j.Opportunity = &model.OpportunityJudgment{
			View:          model.OpportunityView(oppView.String),
			RoleType:      oppRole.String,
			BuyerOrSeller: oppBuyer.String,
			Confidence:    oppConfidence.Float64,
			Rationale:     oppReason.String,
			Industry:      oppIndustry.String,
		}
	}
	j.Embedding = decodeVector(embedding)
	return &j, nil
}

type oppValues struct {
	view, roleType, buyerOrSeller, rationale, industry sql.NullString
	confidence                                         sql.NullFloat64
}

func oppColumns(o *model.OpportunityJudgment) oppValues {
	if o == nil {
		return oppValues{}
	}
	str := func(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }
	return oppValues{
		view:          str(string(o.View)),
		roleType:      str(o.RoleType),
		buyerOrSeller: str(o.BuyerOrSeller),
		rationale:     str(o.Rationale),
		industry:      str(o.Industry),
		confidence:    sql.NullFloat64{Float64: o.Confidence, Valid: true},
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
