// Package classify decides whether a hiring company is a competitor (a service
// provider) or a potential client.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amishk599/searchradar/internal/embed"
	"github.com/amishk599/searchradar/internal/model"
)

// CompetitorSeeds and ClientSeeds anchor the embedding fallback.
var (
	CompetitorSeeds = []string{
		"Digital Marketing Agency", "SEO Agency", "Recruitment Agency",
		"Staffing Firm", "IT Consultancy", "Interactive Agency",
		"Full Service Agency", "Search Marketing Firm", "Talent Acquisition Partner",
	}
	ClientSeeds = []string{
		"SaaS Platform", "Software Company", "E-commerce Brand",
		"Consumer Tech Product", "Financial Technology Platform",
		"Enterprise Software Solution", "Healthcare Technology",
	}
)

// descriptionPrefix is how much of a description the strategies look at, in
// runes. Later text is mostly boilerplate shared by every posting.
const descriptionPrefix = 200

// Input is what every strategy sees.
type Input struct {
	Name        string
	Description string
	summary     string // name + ". " + description prefix
	text        string // lower-cased summary
}

// NewInput prepares an Input for strategies.
func NewInput(name, description string) Input {
	summary := strings.TrimSpace(name + ". " + truncate(strings.TrimSpace(description), descriptionPrefix))
	return Input{
		Name:        name,
		Description: description,
		summary:     summary,
		text:        strings.ToLower(summary),
	}
}

// Text is the lower-cased text strategies match against.
func (in Input) Text() string { return in.text }

// Strategy is one rule of the cascade. ok=false means no opinion.
type Strategy interface {
	Name() string
	Classify(ctx context.Context, in Input) (c model.Classification, ok bool, err error)
}

// CompanyClassifier runs strategies in order; the first verdict wins and
// Client is the default when none has an opinion.
type CompanyClassifier struct {
	strategies []Strategy
	logger     *slog.Logger
}

// New returns a classifier over the given strategies.
func New(logger *slog.Logger, strategies ...Strategy) *CompanyClassifier {
	return &CompanyClassifier{strategies: strategies, logger: logger}
}

// NewDefault builds the standard cascade: keyword heuristic, hard hints,
// then the embedding margin.
func NewDefault(ctx context.Context, svc *embed.Service, margin float64, logger *slog.Logger) (*CompanyClassifier, error) {
	emb, err := NewEmbeddingMargin(ctx, svc, CompetitorSeeds, ClientSeeds, margin)
	if err != nil {
		return nil, err
	}
	return New(logger, KeywordStrategy(), HardHintStrategy(), emb), nil
}

// Classify never fails. A strategy error is logged and treated as no opinion.
func (c *CompanyClassifier) Classify(ctx context.Context, name, description string) model.Classification {
	in := NewInput(name, description)
	for _, s := range c.strategies {
		verdict, ok, err := s.Classify(ctx, in)
		if err != nil {
			c.logger.Warn("company strategy failed", "strategy", s.Name(), "company", name, "error", err)
			continue
		}
		if ok {
			c.logger.Debug("company classified", "company", name, "strategy", s.Name(), "classification", verdict)
			return verdict
		}
	}
	return model.ClassificationClient
}

type keywordStrategy struct {
	client     phraseSet
	competitor phraseSet
}

// KeywordStrategy returns Client when a client keyword appears and no
// competitor keyword does.
func KeywordStrategy() Strategy {
	return keywordStrategy{
		client:     newPhraseSet(clientKeywords),
		competitor: newPhraseSet(competitorKeywords),
	}
}

func (keywordStrategy) Name() string { return "keyword" }

func (s keywordStrategy) Classify(_ context.Context, in Input) (model.Classification, bool, error) {
	if s.client.match(in.text) && !s.competitor.match(in.text) {
		return model.ClassificationClient, true, nil
	}
	return model.ClassificationNone, false, nil
}

type hardHintStrategy struct {
	agency  phraseSet
	product phraseSet
}

// HardHintStrategy returns Competitor for an unambiguous agency phrase with no
// product phrase, and Client for the symmetric case.
func HardHintStrategy() Strategy {
	return hardHintStrategy{
		agency:  newPhraseSet(hardAgencyHints),
		product: newPhraseSet(productHints),
	}
}

func (hardHintStrategy) Name() string { return "hard_hint" }

func (s hardHintStrategy) Classify(_ context.Context, in Input) (model.Classification, bool, error) {
	agency := s.agency.match(in.text)
	product := s.product.match(in.text)
	switch {
	case agency && !product:
		return model.ClassificationCompetitor, true, nil
	case product && !agency:
		return model.ClassificationClient, true, nil
	}
	return model.ClassificationNone, false, nil
}

// EmbeddingMargin compares the company text to competitor and client centroids.
type EmbeddingMargin struct {
	svc        *embed.Service
	competitor []float32
	client     []float32
	margin     float64
}

// NewEmbeddingMargin encodes both seed sets once.
func NewEmbeddingMargin(ctx context.Context, svc *embed.Service, competitorSeeds, clientSeeds []string, margin float64) (*EmbeddingMargin, error) {
	comp, err := svc.Centroid(ctx, competitorSeeds)
	if err != nil {
		return nil, fmt.Errorf("competitor centroid: %w", err)
	}
	client, err := svc.Centroid(ctx, clientSeeds)
	if err != nil {
		return nil, fmt.Errorf("client centroid: %w", err)
	}
	return &EmbeddingMargin{svc: svc, competitor: comp, client: client, margin: margin}, nil
}

func (*EmbeddingMargin) Name() string { return "embedding_margin" }

// Classify always has an opinion: Competitor only when it beats Client by more than the margin.
func (s *EmbeddingMargin) Classify(ctx context.Context, in Input) (model.Classification, bool, error) {
	sims, err := s.svc.Similarities(ctx, in.summary, s.competitor, s.client)
	if err != nil {
		return model.ClassificationNone, false, err
	}
	if sims[0]-sims[1] > s.margin {
		return model.ClassificationCompetitor, true, nil
	}
	return model.ClassificationClient, true, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
