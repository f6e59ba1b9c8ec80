package adapter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/semaphore"

	"github.com/amishk599/searchradar/internal/model"
	"github.com/amishk599/searchradar/internal/ratelimit"
	"github.com/amishk599/searchradar/internal/retry"
)

// Summary is a posting as it appears on a listing page, before its detail
// page is fetched.
type Summary struct {
	Title    string
	Company  string
	Location string
	URL      string
	PostedAt *time.Time
}

// ListingParser knows a site's pagination scheme and listing markup.
type ListingParser interface {
	PageURL(page int) string
	ParseListing(doc *goquery.Document, pageURL string) []Summary
}

// PipelineConfig tunes both fetch phases.
type PipelineConfig struct {
	MaxPages          int
	DetailConcurrency int
	DetailRetries     int
	DetailBackoff     time.Duration // linear: attempt * DetailBackoff
	DelayMin          time.Duration
	DelayMax          time.Duration
	DetailSelectors   []string // text fallback when no JSON-LD JobPosting is found
}

// Pipeline is a two-phase scraper: listing pages first, then detail pages
// fetched concurrently. It implements model.Source.
type Pipeline struct {
	name    string
	parser  ListingParser
	client  *resty.Client
	limiter *ratelimit.HostLimiter
	cfg     PipelineConfig
	logger  *slog.Logger
}

// NewPipeline creates a Pipeline for the site described by parser.
func NewPipeline(name string, parser ListingParser, client *resty.Client, limiter *ratelimit.HostLimiter, cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 1
	}
	if cfg.DetailConcurrency < 1 {
		cfg.DetailConcurrency = 1
	}
	if cfg.DelayMax < cfg.DelayMin {
		cfg.DelayMax = cfg.DelayMin
	}
	return &Pipeline{
		name:    name,
		parser:  parser,
		client:  client,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
	}
}

// Name returns the source name.
func (p *Pipeline) Name() string {
	return p.name
}

// Fetch walks the listing pages, then streams one RawJob per unique summary
// in completion order. An error is returned only when the first listing page
// cannot be fetched. The channel is closed when every detail worker is done.
func (p *Pipeline) Fetch(ctx context.Context) (<-chan model.RawJob, error) {
	summaries, err := p.collectListings(ctx)
	if err != nil {
		return nil, err
	}

	p.logger.Info("listing collected",
		"source", p.name,
		"count", len(summaries),
		"concurrency", p.cfg.DetailConcurrency,
	)

	out := make(chan model.RawJob)
	go func() {
		defer close(out)

		sem := semaphore.NewWeighted(int64(p.cfg.DetailConcurrency))
		var wg sync.WaitGroup
		for _, s := range summaries {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			wg.Add(1)
			go func(s Summary) {
				defer wg.Done()
				defer sem.Release(1)

				job := p.fetchDetail(ctx, s)
				select {
				case out <- job:
				case <-ctx.Done():
				}
			}(s)
		}
		wg.Wait()
	}()

	return out, nil
}

func (p *Pipeline) collectListings(ctx context.Context) ([]Summary, error) {
	policy := retry.Policy{
		MaxRetries: p.cfg.DetailRetries,
		Backoff:    retry.Exponential(p.cfg.DetailBackoff),
		Retryable:  retry.IsRetryable,
	}

	seen := make(map[string]bool)
	var summaries []Summary

	for page := 1; page <= p.cfg.MaxPages; page++ {
		pageURL := p.parser.PageURL(page)

		doc, err := p.fetchDocument(ctx, pageURL, policy)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("%s listing: %w", p.name, err)
			}
			p.logger.Warn("listing page failed, stopping pagination",
				"source", p.name,
				"page", page,
				"error", err,
			)
			break
		}

		items := p.parser.ParseListing(doc, pageURL)
		p.logger.Debug("listing page parsed", "source", p.name, "page", page, "count", len(items))
		if len(items) == 0 {
			break
		}

		for _, it := range items {
			if it.URL == "" || seen[it.URL] {
				continue
			}
			seen[it.URL] = true
			summaries = append(summaries, it)
		}
	}

	return summaries, nil
}

func (p *Pipeline) fetchDocument(ctx context.Context, pageURL string, policy retry.Policy) (*goquery.Document, error) {
	var body []byte
	err := retry.Do(ctx, policy, p.logger, func(ctx context.Context) error {
		if err := p.limiter.WaitURL(ctx, pageURL); err != nil {
			return err
		}
		b, err := getPage(ctx, p.client, pageURL)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, nil
}

// fetchDetail always returns a job. When the detail page cannot be fetched
// the description is left empty.
func (p *Pipeline) fetchDetail(ctx context.Context, s Summary) model.RawJob {
	job := model.RawJob{
		ExternalID: s.URL,
		Source:     p.name,
		Title:      s.Title,
		Company:    s.Company,
		Location:   s.Location,
		URL:        s.URL,
		PostedAt:   s.PostedAt,
	}

	if err := p.politeDelay(ctx); err != nil {
		return job
	}

	policy := retry.Policy{
		MaxRetries: p.cfg.DetailRetries,
		Backoff:    retry.Linear(p.cfg.DetailBackoff),
		Retryable:  retry.IsServerOrTransport,
	}

	doc, err := p.fetchDocument(ctx, s.URL, policy)
	if err != nil {
		p.logger.Warn("detail fetch failed",
			"source", p.name,
			"url", s.URL,
			"error", err,
		)
		return job
	}

	desc, posted := extractDescription(doc, p.cfg.DetailSelectors)
	job.Description = desc
	if job.PostedAt == nil {
		job.PostedAt = posted
	}
	return job
}

func (p *Pipeline) politeDelay(ctx context.Context) error {
	d := p.cfg.DelayMin
	if spread := p.cfg.DelayMax - p.cfg.DelayMin; spread > 0 {
		d += time.Duration(rand.Int64N(int64(spread)))
	}
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// extractDescription prefers a JSON-LD JobPosting and falls back to the
// first element matching any of selectors.
func extractDescription(doc *goquery.Document, selectors []string) (string, *time.Time) {
	var (
		desc   string
		posted *time.Time
	)
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		jp, ok := parseJobPostingLD(s.Text())
		if !ok {
			return true
		}
		posted = jp.DatePosted
		desc = extractText(jp.Description)
		return desc == ""
	})
	if desc != "" || len(selectors) == 0 {
		return desc, posted
	}

	node := doc.Find(strings.Join(selectors, ", ")).First()
	if node.Length() == 0 {
		return "", posted
	}
	if h, err := node.Html(); err == nil {
		return extractText(h), posted
	}
	return cleanText(node.Text()), posted
}
