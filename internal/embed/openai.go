package embed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIEncoder encodes through an OpenAI-compatible embeddings endpoint.
type OpenAIEncoder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// NewOpenAIEncoder builds a langchaingo embedder for baseURL/model.
func NewOpenAIEncoder(baseURL, apiKey, model string, logger *slog.Logger) (*OpenAIEncoder, error) {
	client, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return &OpenAIEncoder{embedder: embedder, logger: logger}, nil
}

// Encode embeds texts in one batch and normalizes each vector.
func (e *OpenAIEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings", "count", len(texts))

	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	for _, v := range vecs {
		Normalize(v)
	}
	return vecs, nil
}
