package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/amishk599/searchradar/internal/model"
)

// Stats returns headline counters over the store.
func (s *SQLiteStore) Stats(ctx context.Context) (model.Stats, error) {
	var (
		st   model.Stats
		last sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM companies),
		(SELECT COUNT(*) FROM jobs WHERE is_ai_search = 1),
		(SELECT COUNT(*) FROM companies WHERE classification = ?),
		(SELECT COUNT(*) FROM companies WHERE classification = ?),
		(SELECT MAX(scraped_at) FROM jobs)`,
		string(model.ClassificationCompetitor), string(model.ClassificationClient),
	).Scan(&st.TotalCompanies, &st.TotalAISearchJobs, &st.TotalCompetitors, &st.TotalClients, &last)
	if err != nil {
		return model.Stats{}, fmt.Errorf("reading stats: %w", err)
	}
	if last.Valid {
		t := parseTime(last.String)
		st.LastIngestionAt = &t
	}
	return st, nil
}

// ListCompanies returns companies with at least q.MinRoles AI-search jobs,
// most roles first.
func (s *SQLiteStore) ListCompanies(ctx context.Context, q model.CompanyQuery) ([]model.CompanySummary, error) {
	minRoles := q.MinRoles
	if minRoles < 1 {
		minRoles = 1
	}

	rows, err := s.db.QueryContext(ctx, `SELECT c.id, c.name, c.classification, c.category, c.region, c.industry,
			c.last_seen, c.created_at, c.updated_at, COUNT(j.id) AS roles
		FROM companies c
		JOIN jobs j ON j.company_id = c.id AND j.is_ai_search = 1
		WHERE (? = '' OR c.category = ?) AND (? = '' OR c.region = ?)
		GROUP BY c.id
		HAVING COUNT(j.id) >= ?
		ORDER BY roles DESC, c.name`,
		q.Category, q.Category, q.Region, q.Region, minRoles,
	)
	if err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}

	var out []model.CompanySummary
	for rows.Next() {
		var cs model.CompanySummary
		c, err := scanCompany(scanFunc(func(dest ...any) error {
			return rows.Scan(append(dest, &cs.AISearchRoles)...)
		}))
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning company: %w", err)
		}
		cs.Company = *c
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	// Release the single connection before the per-company queries.
	rows.Close()

	for i := range out {
		titles, err := s.distinctTitles(ctx, out[i].ID, true, 3)
		if err != nil {
			return nil, err
		}
		out[i].SampleTitles = titles
	}
	return out, nil
}

// AllCompanies returns every company ordered by name.
func (s *SQLiteStore) AllCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing all companies: %w", err)
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning company: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CompanyJobs returns a company's AI-search jobs, newest posting first with
// undated postings last.
func (s *SQLiteStore) CompanyJobs(ctx context.Context, companyID int64) ([]model.Job, error) {
	return s.queryJobs(ctx, `SELECT `+jobColumns+`
		FROM jobs j JOIN companies c ON c.id = j.company_id
		WHERE j.company_id = ? AND j.is_ai_search = 1
		ORDER BY j.posted_at IS NULL, j.posted_at DESC, j.id DESC`, companyID)
}

// CompanyTitles returns up to limit distinct job titles for a company in the
// order they were first seen.
func (s *SQLiteStore) CompanyTitles(ctx context.Context, companyID int64, limit int) ([]string, error) {
	return s.distinctTitles(ctx, companyID, false, limit)
}

// JobsMissingDescription returns AI-search jobs whose description is empty.
func (s *SQLiteStore) JobsMissingDescription(ctx context.Context) ([]model.Job, error) {
	return s.queryJobs(ctx, `SELECT `+jobColumns+`
		FROM jobs j JOIN companies c ON c.id = j.company_id
		WHERE j.is_ai_search = 1 AND TRIM(j.description) = ''
		ORDER BY j.scraped_at DESC`)
}

func (s *SQLiteStore) queryJobs(ctx context.Context, query string, args ...any) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) distinctTitles(ctx context.Context, companyID int64, aiSearchOnly bool, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT title FROM jobs
		WHERE company_id = ? AND (? = 0 OR is_ai_search = 1)
		GROUP BY title
		ORDER BY MIN(id)
		LIMIT ?`, companyID, aiSearchOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("listing titles for company %d: %w", companyID, err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning title: %w", err)
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }
