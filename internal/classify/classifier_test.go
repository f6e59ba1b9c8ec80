package classify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/searchradar/internal/config"
	"github.com/amishk599/searchradar/internal/embed"
	"github.com/amishk599/searchradar/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultClassifier(t *testing.T) *CompanyClassifier {
	t.Helper()
	svc := embed.NewService(embed.NewHashEncoder(384))
	c, err := NewDefault(context.Background(), svc, config.ScoringDefaultsFor("local").Margin, discardLogger())
	require.NoError(t, err)
	return c
}

func TestCompanyClassifier_Examples(t *testing.T) {
	c := defaultClassifier(t)
	ctx := context.Background()

	tests := []struct {
		name string
		desc string
		want model.Classification
	}{
		{"Acme SEO Agency", "", model.ClassificationCompetitor},
		{"Acme SaaS Platform", "", model.ClassificationClient},
		{"Tech Solutions Inc", "", model.ClassificationClient},
		{"BrightWave Digital Marketing", "", model.ClassificationCompetitor},
		{"Northwind Staffing", "", model.ClassificationCompetitor},
		{"Northwind Labs", "", model.ClassificationClient},
		{"Contoso", "We build analytics software for retailers.", model.ClassificationClient},
		{"Fabrikam", "A creative agency for consumer brands.", model.ClassificationCompetitor},
		{"Acme Shoes", "", model.ClassificationClient},
		{"Globex", "", model.ClassificationClient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(ctx, tt.name, tt.desc))
		})
	}
}

func TestCompanyClassifier_LooksOnlyAtDescriptionPrefix(t *testing.T) {
	c := defaultClassifier(t)
	desc := "Acme Shoes makes comfortable running shoes and sneakers for everyday athletes. " +
		"We sell direct to consumers through our online store and forty retail locations across North America and Europe. " +
		"Join our in-house team and partner with marketing, merchandising and creative leads to grow organic traffic."
	require.Greater(t, strings.Index(desc, "marketing"), 200)

	assert.Equal(t, model.ClassificationClient, c.Classify(context.Background(), "Acme Shoes", desc))

	in := NewInput("Acme Shoes", desc)
	assert.NotContains(t, in.Text(), "marketing")
	assert.Equal(t, "acme shoes. ", in.Text()[:12])
}

func TestKeywordStrategy(t *testing.T) {
	s := KeywordStrategy()
	ctx := context.Background()

	got, ok, err := s.Classify(ctx, NewInput("Acme Cloud", ""))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.ClassificationClient, got)

	// Both a client and a competitor keyword: no opinion.
	_, ok, err = s.Classify(ctx, NewInput("Acme Software Consulting", ""))
	require.NoError(t, err)
	assert.False(t, ok)

	// Whole words only: "ai" must not match inside "Rainmaker".
	_, ok, err = s.Classify(ctx, NewInput("Rainmaker", ""))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHardHintStrategy(t *testing.T) {
	s := HardHintStrategy()
	ctx := context.Background()

	tests := []struct {
		name   string
		want   model.Classification
		wantOK bool
	}{
		{"Acme Consulting", model.ClassificationCompetitor, true},
		{"Acme Technologies", model.ClassificationClient, true},
		{"Acme Marketing Technology", model.ClassificationNone, false},
		{"Acme", model.ClassificationNone, false},
	}
	for _, tt := range tests {
		got, ok, err := s.Classify(ctx, NewInput(tt.name, ""))
		require.NoError(t, err)
		assert.Equal(t, tt.wantOK, ok, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

// pinnedEncoder encodes competitor seeds as x, client seeds as y, and
// anything else as the vector registered for it.
type pinnedEncoder struct {
	vectors map[string][]float32
}

func (e pinnedEncoder) Encode(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		switch {
		case contains(CompetitorSeeds, t):
			out[i] = []float32{1, 0}
		case contains(ClientSeeds, t):
			out[i] = []float32{0, 1}
		default:
			v, ok := e.vectors[t]
			if !ok {
				return nil, errors.New("unexpected text " + t)
			}
			out[i] = v
		}
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func TestEmbeddingMargin_BiasTowardClient(t *testing.T) {
	enc := pinnedEncoder{vectors: map[string][]float32{
		"Slight.": {0.52, 0.48},
		"Clear.":  {0.8, 0.2},
		"Client.": {0.1, 0.9},
	}}
	s, err := NewEmbeddingMargin(context.Background(), embed.NewService(enc), CompetitorSeeds, ClientSeeds, 0.05)
	require.NoError(t, err)

	tests := []struct {
		name string
		want model.Classification
	}{
		{"Slight", model.ClassificationClient},
		{"Clear", model.ClassificationCompetitor},
		{"Client", model.ClassificationClient},
	}
	for _, tt := range tests {
		got, ok, err := s.Classify(context.Background(), NewInput(tt.name, ""))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

type stubStrategy struct {
	name    string
	verdict model.Classification
	ok      bool
	err     error
	calls   int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Classify(context.Context, Input) (model.Classification, bool, error) {
	s.calls++
	return s.verdict, s.ok, s.err
}

func TestCompanyClassifier_FirstVerdictWins(t *testing.T) {
	first := &stubStrategy{name: "first"}
	second := &stubStrategy{name: "second", verdict: model.ClassificationCompetitor, ok: true}
	third := &stubStrategy{name: "third", verdict: model.ClassificationClient, ok: true}

	c := New(discardLogger(), first, second, third)
	assert.Equal(t, model.ClassificationCompetitor, c.Classify(context.Background(), "X", ""))
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 0, third.calls)
}

func TestCompanyClassifier_ErrorFallsThroughToDefault(t *testing.T) {
	failing := &stubStrategy{name: "embedding", err: errors.New("model offline")}

	c := New(discardLogger(), failing)
	assert.Equal(t, model.ClassificationClient, c.Classify(context.Background(), "X", ""))
}

func TestNormalizeCompanyName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Acme Inc.", "Acme"},
		{"Acme, Inc.", "Acme"},
		{"Acme Inc", "Acme"},
		{"Acme LLC", "Acme"},
		{"Acme, LLP", "Acme"},
		{"Acme Ltd.", "Acme"},
		{"Acme Limited", "Acme"},
		{"Acme Corp.", "Acme"},
		{"Acme Corporation", "Acme"},
		{"Acme Co.", "Acme"},
		{"  Acme   Search  ", "Acme Search"},
		{"Costco", "Costco"},
		{"Inc", "Inc"},
		{"acme inc", "acme"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCompanyName(tt.in), tt.in)
	}
}

func TestDescribeFromTitles(t *testing.T) {
	assert.Empty(t, DescribeFromTitles(nil))

	got := DescribeFromTitles([]string{"Head of SEO", "Account Manager"})
	assert.Equal(t, "Tags: client services agency, strong seo leadership. Hiring for: Head of SEO, Account Manager", got)

	got = DescribeFromTitles([]string{"Backend Engineer"})
	assert.Equal(t, "Hiring for: Backend Engineer", got)
}
