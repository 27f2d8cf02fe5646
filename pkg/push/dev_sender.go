package push

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/notifykit/notifykit/pkg/logger"
	"github.com/notifykit/notifykit/pkg/tokens"
)

// DevSender logs batches instead of delivering them and reports every token
// as accepted. Use it in development and tests.
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

func (s *DevSender) Send(ctx context.Context, platform tokens.Platform, tokenValues []string, payload Payload) ([]TokenResult, error) {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "dev push send",
		slog.String("platform", string(platform)),
		slog.Int("tokens", len(tokenValues)),
		logger.NotificationID(payload.NotificationID),
		slog.String("title", payload.Title),
	)
	results := make([]TokenResult, len(tokenValues))
	for i, t := range tokenValues {
		results[i] = TokenResult{Token: t, MessageID: "dev-" + uuid.NewString()}
	}
	return results, nil
}
