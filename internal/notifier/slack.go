package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/amishk599/searchradar/internal/model"
)

// Ensure SlackNotifier implements model.CompetitorHook.
var _ model.CompetitorHook = (*SlackNotifier)(nil)

// SlackNotifier posts competitor detections to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	client     *resty.Client
	logger     *slog.Logger
}

// NewSlackNotifier returns a hook that posts each detection to Slack.
func NewSlackNotifier(webhookURL string, client *resty.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     client,
		logger:     logger,
	}
}

// CompetitorDetected sends one Block Kit message. A 429 is retried once after
// the Retry-After delay.
func (s *SlackNotifier) CompetitorDetected(ctx context.Context, c model.Company) error {
	body := buildPayload(c)

	status, retryAfter, err := s.post(ctx, body)
	if err != nil {
		return err
	}

	if status == http.StatusTooManyRequests {
		s.logger.Warn("slack rate limited, retrying", "retry_after", retryAfter)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryAfter):
		}

		status, _, err = s.post(ctx, body)
		if err != nil {
			return fmt.Errorf("retry: %w", err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", status)
		}
		s.logger.Info("slack message sent", "company", c.Name, "retried", true)
		return nil
	}

	if status != http.StatusOK {
		return fmt.Errorf("slack returned %d", status)
	}
	s.logger.Info("slack message sent", "company", c.Name)
	return nil
}

func (s *SlackNotifier) post(ctx context.Context, body slackPayload) (int, time.Duration, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(s.webhookURL)
	if err != nil {
		return 0, 0, fmt.Errorf("post to slack: %w", err)
	}

	secs, _ := strconv.Atoi(resp.Header().Get("Retry-After"))
	if secs <= 0 {
		secs = 1
	}
	return resp.StatusCode(), time.Duration(secs) * time.Second, nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendTestMessage sends a dummy detection to verify the integration works.
func SendTestMessage(ctx context.Context, hook model.CompetitorHook) error {
	return hook.CompetitorDetected(ctx, model.Company{
		Name:           "SearchRadar Test Agency",
		Classification: model.ClassificationCompetitor,
		Category:       model.CategoryAgency,
		Industry:       "Integration check",
		LastSeen:       time.Now(),
	})
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func buildPayload(c model.Company) slackPayload {
	seen := "Just detected"
	if !c.LastSeen.IsZero() {
		seen = c.LastSeen.UTC().Format(time.RFC1123)
	}

	return slackPayload{Blocks: []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "Competitor detected: " + c.Name},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Category:*\n" + orDash(c.Category)},
				{Type: "mrkdwn", Text: "*Industry:*\n" + orDash(c.Industry)},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Region:*\n" + orDash(c.Region)},
				{Type: "mrkdwn", Text: "*Last seen:*\n" + seen},
			},
		},
		{
			Type:     "context",
			Elements: []slackText{{Type: "mrkdwn", Text: "Hiring for AI-search roles"}},
		},
		{Type: "divider"},
	}}
}
