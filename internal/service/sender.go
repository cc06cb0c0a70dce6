package service

import (
	"context"
	"log/slog"

	"github.com/tokengate/tokengate-go/internal/logging"
)

// CodeSender delivers a verification code to a phone, typically over SMS.
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// LogCodeSender writes codes to the debug log instead of sending them. It is
// meant for development; production deployments plug in an SMS gateway.
type LogCodeSender struct {
	Logger *slog.Logger
}

func (s *LogCodeSender) SendCode(ctx context.Context, phone, code string) error {
	logging.FromContextOr(ctx, s.Logger).Debug("verification code issued",
		"phone", logging.MaskPhone(phone),
		"code", code,
	)
	return nil
}
