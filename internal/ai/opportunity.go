package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/semaphore"

	"github.com/amishk599/searchradar/internal/model"
	"github.com/amishk599/searchradar/internal/retry"
)

// OppMetaMarker guards the opportunity tag prepended to descriptions.
const OppMetaMarker = "OPP_META:"

const (
	defaultMaxConcurrency = 3
	defaultTimeout        = 30 * time.Second
	defaultMaxRetries     = 4
	defaultRetryBase      = time.Second
)

// OpportunityClassifier asks an LLM whether a hiring company is a likely
// buyer or a seller of AI search services.
type OpportunityClassifier struct {
	provider LLMProvider
	cache    *JudgmentCache
	sem      *semaphore.Weighted
	timeout  time.Duration
	policy   retry.Policy
	logger   *slog.Logger
}

// Option configures an OpportunityClassifier.
type Option func(*OpportunityClassifier)

// WithMaxConcurrency caps in-flight provider calls across all callers.
func WithMaxConcurrency(n int) Option {
	return func(c *OpportunityClassifier) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithTimeout bounds each provider attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *OpportunityClassifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetryPolicy replaces the default exponential policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *OpportunityClassifier) {
		c.policy = p
	}
}

// NewOpportunityClassifier creates a classifier. A nil or Nop provider
// yields a classifier whose Classify always returns nil. A nil cache gets a fresh
// unbounded one.
func NewOpportunityClassifier(provider LLMProvider, cache *JudgmentCache, logger *slog.Logger, opts ...Option) *OpportunityClassifier {
	if cache == nil {
		cache = NewJudgmentCache(0, 0)
	}
	c := &OpportunityClassifier{
		provider: provider,
		cache:    cache,
		sem:      semaphore.NewWeighted(defaultMaxConcurrency),
		timeout:  defaultTimeout,
		policy: retry.Policy{
			MaxRetries: defaultMaxRetries,
			Backoff:    retry.Exponential(defaultRetryBase),
			Retryable:  retry.IsRetryable,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if unconfigured(provider) {
		c.provider = nil
	}
	return c
}

// unconfigured reports whether p can never produce a judgment.
func unconfigured(p LLMProvider) bool {
	switch p.(type) {
	case nil, NopProvider, *NopProvider:
		return true
	}
	return false
}

// Classify returns a judgment for company, or nil when the provider is not
// configured or the call or parse failed. Failures are never cached.
func (c *OpportunityClassifier) Classify(ctx context.Context, company, title, description string) *model.OpportunityJudgment {
	if c == nil || c.provider == nil {
		return nil
	}

	if j, ok := c.cache.Get(company); ok {
		return j
	}

	prompt, err := renderOpportunityPrompt(company, title, description)
	if err != nil {
		c.logger.Warn("opportunity classification failed", "company", company, "error", err)
		return nil
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil
	}
	defer c.sem.Release(1)

	policy := c.policy
	retryable := policy.Retryable
	if retryable == nil {
		retryable = retry.IsRetryable
	}
	policy.Retryable = func(err error) bool {
		return !errors.Is(err, ErrNotConfigured) && retryable(err)
	}

	var raw string
	err = retry.Do(ctx, policy, c.logger, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		out, err := c.provider.Complete(callCtx, opportunitySystemPrompt, prompt)
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			c.logger.Debug("opportunity classification skipped", "company", company)
		} else {
			c.logger.Warn("opportunity classification failed", "company", company, "error", err)
		}
		return nil
	}

	j, err := parseJudgment(raw)
	if err != nil {
		c.logger.Warn("opportunity response unparseable", "company", company, "error", err)
		return nil
	}

	c.cache.Put(company, *j)
	c.logger.Debug("opportunity classified",
		"company", company,
		"view", j.View,
		"confidence", j.Confidence,
	)
	return j
}

// parseJudgment reads the LLM's JSON object, tolerating a surrounding code fence.
func parseJudgment(raw string) (*model.OpportunityJudgment, error) {
	body := stripCodeFence(raw)
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("invalid JSON: %s", truncateBody([]byte(body)))
	}
	res := gjson.Parse(body)
	if !res.IsObject() {
		return nil, fmt.Errorf("expected JSON object, got %s", res.Type)
	}

	j := &model.OpportunityJudgment{
		RoleType:      stringOr(res.Get("role_type"), "Other"),
		BuyerOrSeller: stringOr(res.Get("buyer_or_seller"), "Unknown"),
		View:          parseView(res.Get("view").String()),
		Confidence:    parseConfidence(res.Get("confidence")),
		Rationale:     strings.TrimSpace(res.Get("notes").String()),
		Industry:      strings.TrimSpace(res.Get("industry").String()),
	}
	return j, nil
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
	} else if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
	} else {
		return s
	}
	if end := strings.Index(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func stringOr(v gjson.Result, fallback string) string {
	if s := strings.TrimSpace(v.String()); s != "" {
		return s
	}
	return fallback
}

func parseView(s string) model.OpportunityView {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "client":
		return model.ViewClient
	case "competitor":
		return model.ViewCompetitor
	default:
		return model.ViewNeutral
	}
}

func parseConfidence(v gjson.Result) float64 {
	switch v.Type {
	case gjson.Number:
		return clamp01(v.Float())
	case gjson.String:
		s := strings.ToLower(strings.TrimSpace(v.Str))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return clamp01(f)
		}
		switch {
		case strings.Contains(s, "high"):
			return 0.9
		case strings.Contains(s, "medium"):
			return 0.6
		case strings.Contains(s, "low"):
			return 0.3
		}
	}
	return 0.5
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// TagDescription prepends a single-line OPP_META tag carrying j's fields.
// Empty descriptions and descriptions that already carry the tag are returned
// unchanged.
func TagDescription(description string, j *model.OpportunityJudgment) string {
	if j == nil || strings.TrimSpace(description) == "" || strings.Contains(description, OppMetaMarker) {
		return description
	}
	return fmt.Sprintf("%s view=%s; role_type=%s; buyer_or_seller=%s; confidence=%.2f || %s",
		OppMetaMarker, j.View, j.RoleType, j.BuyerOrSeller, j.Confidence, description)
}
