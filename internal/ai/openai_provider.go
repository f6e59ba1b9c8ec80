package ai

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/amishk599/searchradar/internal/model"
)

// OpenAIProvider calls an OpenAI-compatible /chat/completions endpoint in JSON mode.
type OpenAIProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *resty.Client
}

// NewOpenAIProvider creates a provider targeting the OpenAI API.
func NewOpenAIProvider(baseURL, apiKey, model string, client *resty.Client) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  client,
	}
}

// chatRequest mirrors the OpenAI /v1/chat/completions request body.
type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    int            `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// Complete sends system and prompt and returns the first choice's content.
// Non-200 responses become *model.HTTPError so callers can decide to retry.
func (p *OpenAIProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature:    0,
		MaxTokens:      512,
		ResponseFormat: responseFormat{Type: "json_object"},
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(p.apiKey).
		SetBody(reqBody).
		Post(p.baseURL + "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return "", &model.HTTPError{
			StatusCode: resp.StatusCode(),
			RetryAfter: parseRetryAfter(resp.Header().Get("Retry-After")),
			Err:        fmt.Errorf("llm returned: %s", truncateBody(resp.Body())),
		}
	}

	body := resp.String()
	if !gjson.Valid(body) {
		return "", fmt.Errorf("parse llm response: %s", truncateBody(resp.Body()))
	}
	if msg := gjson.Get(body, "error.message"); msg.Exists() {
		return "", fmt.Errorf("llm error (%s): %s", gjson.Get(body, "error.type").String(), msg.String())
	}

	content := gjson.Get(body, "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("llm returned no choices")
	}
	return content.String(), nil
}
func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func truncateBody(b []byte) string {
	const max = 300
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
