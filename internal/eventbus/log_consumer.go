package eventbus

import (
	"context"
	"log/slog"

	"github.com/matthewbaird/adops/internal/event"
)

// LogConsumer logs all domain events for observability.
type LogConsumer struct {
	logger *slog.Logger
}

func NewLogConsumer(logger *slog.Logger) *LogConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogConsumer{logger: logger}
}

func (c *LogConsumer) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	c.logger.InfoContext(ctx, "event: "+evt.Summary,
		"event_type", evt.EventType,
		"category", evt.Category,
		"session", evt.SessionID,
		"campaign", evt.CampaignID,
	)
	return nil
}
