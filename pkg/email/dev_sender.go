package email

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// DevSender implements Sender for local development: it logs the message
// instead of delivering it and fabricates a message id.
type DevSender struct {
	logger *slog.Logger
}

// NewDevSender creates a development sender that logs through the given
// logger, or slog.Default() when nil.
func NewDevSender(l *slog.Logger) *DevSender {
	if l == nil {
		l = slog.Default()
	}
	return &DevSender{logger: l}
}

func (s *DevSender) Name() string { return "dev" }

func (s *DevSender) Send(ctx context.Context, msg Message) (string, error) {
	id := "dev-" + uuid.New().String()
	s.logger.LogAttrs(ctx, slog.LevelInfo, "dev email sender: message not delivered",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("message_id", id),
	)
	return id, nil
}
