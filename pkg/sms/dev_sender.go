package sms

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/notifykit/notifykit/pkg/logger"
)

// DevSender logs messages instead of sending them. Use it in development
// and tests where no carrier round trip is wanted.
type DevSender struct {
	logger *slog.Logger
}

func NewDevSender(l *slog.Logger) *DevSender {
	if l == nil {
		l = slog.Default()
	}
	return &DevSender{logger: l}
}

func (s *DevSender) Name() string { return "dev" }

func (s *DevSender) Send(ctx context.Context, msg Message) (string, error) {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "dev sms send",
		logger.Recipient(msg.To),
		slog.Int("body_len", len(msg.Body)),
		slog.String("body", msg.Body),
	)
	return "dev-" + uuid.NewString(), nil
}
