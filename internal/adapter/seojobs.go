package adapter

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/amishk599/searchradar/internal/ratelimit"
)

const seoJobsBaseURL = "https://seojobs.com"

var seoJobsDetailSelectors = []string{".entry-content", ".job-description", ".single-job"}

// SEOJobsParser parses seojobs.com listing pages. Each item's link text reads
// "Title ~ Company ~ Salary ~ Location".
type SEOJobsParser struct {
	baseURL string
}

// NewSEOJobsSource creates the seojobs.com scraper. An empty baseURL targets
// the live site.
func NewSEOJobsSource(name, baseURL string, client *resty.Client, limiter *ratelimit.HostLimiter, cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	if baseURL == "" {
		baseURL = seoJobsBaseURL
	}
	if len(cfg.DetailSelectors) == 0 {
		cfg.DetailSelectors = seoJobsDetailSelectors
	}
	parser := &SEOJobsParser{baseURL: strings.TrimRight(baseURL, "/")}
	return NewPipeline(name, parser, client, limiter, cfg, logger)
}

// PageURL returns the listing URL for a 1-based page number.
func (p *SEOJobsParser) PageURL(page int) string {
	if page <= 1 {
		return p.baseURL + "/"
	}
	return fmt.Sprintf("%s/page/%d/", p.baseURL, page)
}

// ParseListing extracts summaries from one listing page.
func (p *SEOJobsParser) ParseListing(doc *goquery.Document, pageURL string) []Summary {
	base, err := url.Parse(pageURL)
	if err != nil {
		base, _ = url.Parse(p.baseURL + "/")
	}

	var out []Summary
	doc.Find("div.job-item").Each(func(_ int, item *goquery.Selection) {
		link := item.Find("h3 a").First()
		if link.Length() == 0 {
			return
		}

		parts := splitTrim(cleanText(link.Text()), "~")
		title := "Unknown Title"
		if len(parts) > 0 && parts[0] != "" {
			title = parts[0]
		}
		company := "Unknown Company"
		if len(parts) > 1 && parts[1] != "" {
			company = parts[1]
		}

		location := cleanText(item.Find(".job-place").First().Text())
		if location == "" && len(parts) > 2 {
			location = parts[len(parts)-1]
		}

		href, _ := link.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil || href == "" {
			return
		}

		out = append(out, Summary{
			Title:    title,
			Company:  company,
			Location: normalizeLocation(location),
			URL:      base.ResolveReference(ref).String(),
		})
	})
	return out
}

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// normalizeLocation collapses any remote mention to "Remote" and drops
// repeated comma-separated parts ("Austin, TX, TX" -> "Austin, TX").
func normalizeLocation(loc string) string {
	if loc == "" {
		return ""
	}
	if strings.Contains(strings.ToLower(loc), "remote") {
		return "Remote"
	}

	seen := make(map[string]bool)
	var kept []string
	for _, part := range splitTrim(loc, ",") {
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		kept = append(kept, part)
	}
	return strings.Join(kept, ", ")
}
