package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/searchradar/internal/model"
)

// Ensure LogNotifier implements model.CompetitorHook.
var _ model.CompetitorHook = (*LogNotifier)(nil)

// LogNotifier writes competitor detections to the given logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a hook that logs each detection via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// CompetitorDetected logs the company. It never fails.
func (n *LogNotifier) CompetitorDetected(_ context.Context, c model.Company) error {
	args := []any{"company", c.Name, "category", c.Category}
	if c.Industry != "" {
		args = append(args, "industry", c.Industry)
	}
	if c.Region != "" {
		args = append(args, "region", c.Region)
	}
	n.logger.Info("competitor detected", args...)
	return nil
}
