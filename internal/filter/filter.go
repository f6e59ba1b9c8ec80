package filter

import (
	"context"
	"fmt"

	"github.com/amishk599/searchradar/internal/embed"
	"github.com/amishk599/searchradar/internal/model"
)

// DefaultSeeds are example titles of the roles we track.
var DefaultSeeds = []string{
	"AI SEO Specialist",
	"Head of Generative Search",
	"Answer Engine Optimization Lead",
	"LLM-powered SEO Strategist",
	"Search Engineer",
	"SEO Specialist",
	"SEO Manager",
	"Technical SEO",
}

// descriptionPrefix is how many runes of the description contribute to the score.
const descriptionPrefix = 200

// RelevanceClassifier scores a job against the centroid of the seed titles.
type RelevanceClassifier struct {
	svc      *embed.Service
	centroid []float32
	high     float64
	medium   float64
}

// NewRelevanceClassifier encodes seeds once. Nil or empty seeds use DefaultSeeds.
func NewRelevanceClassifier(ctx context.Context, svc *embed.Service, seeds []string, high, medium float64) (*RelevanceClassifier, error) {
	if len(seeds) == 0 {
		seeds = DefaultSeeds
	}
	centroid, err := svc.Centroid(ctx, seeds)
	if err != nil {
		return nil, fmt.Errorf("relevance centroid: %w", err)
	}
	return &RelevanceClassifier{
		svc:      svc,
		centroid: centroid,
		high:     high,
		medium:   medium,
	}, nil
}

// Evaluate scores a job once and returns score, tier and the encoded vector.
func (c *RelevanceClassifier) Evaluate(ctx context.Context, title, description string) (model.Relevance, error) {
	score, vec, err := c.svc.Similarity(ctx, scoringText(title, description), c.centroid)
	if err != nil {
		return model.Relevance{}, fmt.Errorf("score %q: %w", title, err)
	}
	return model.Relevance{Score: score, Tier: c.Tier(score), Vector: vec}, nil
}

// Score returns only the similarity.
func (c *RelevanceClassifier) Score(ctx context.Context, title, description string) (float64, error) {
	r, err := c.Evaluate(ctx, title, description)
	return r.Score, err
}

// Tier buckets a score. Ties go to the higher tier.
func (c *RelevanceClassifier) Tier(score float64) model.Tier {
	switch {
	case score >= c.high:
		return model.TierCore
	case score >= c.medium:
		return model.TierRelated
	default:
		return model.TierOutOfScope
	}
}

// IsRelevant reports whether score clears the medium threshold.
func (c *RelevanceClassifier) IsRelevant(score float64) bool {
	return score >= c.medium
}

func scoringText(title, description string) string {
	if description == "" {
		return title
	}
	r := []rune(description)
	if len(r) > descriptionPrefix {
		r = r[:descriptionPrefix]
	}
	return title + ". " + string(r)
}
