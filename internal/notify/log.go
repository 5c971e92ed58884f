package notify

import (
	"context"

	"medication-reminder/internal/logging"
)

// LogPoster writes notifications to the log instead of a chat.
type LogPoster struct {
	log logging.Logger
}

func NewLogPoster(log logging.Logger) *LogPoster {
	return &LogPoster{log: log}
}

func (p *LogPoster) Post(ctx context.Context, ch Channel, n Notification) error {
	p.log.Info(ctx, "notification",
		"channel", ch.ID,
		"id", n.ID,
		"priority", n.Priority,
		"title", n.Icon+" "+n.Title,
		"body", n.Body,
	)
	return nil
}
