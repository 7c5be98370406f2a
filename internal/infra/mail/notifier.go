// Package mail delivers code-bearing email. The current transport
// writes structured log records consumed by the federation's mail
// relay; swapping in an SMTP or provider client only touches this
// package.
package mail

import (
	"context"
	"log/slog"
	"time"

	"athfed/config"
	"athfed/internal/domain/service"
)

// LogNotifier emits one structured record per outbound message. Codes
// are logged at debug level only, so production level settings keep
// them out of aggregated logs.
type LogNotifier struct {
	logger *slog.Logger
	from   string
}

// NewLogNotifier builds the notifier.
func NewLogNotifier(logger *slog.Logger, cfg *config.Config) service.EmailNotifier {
	return &LogNotifier{
		logger: logger.With(slog.String("component", "mail")),
		from:   cfg.Email.From,
	}
}

// SendVerificationCode delivers an email-verification code.
func (n *LogNotifier) SendVerificationCode(ctx context.Context, email, code string, ttl time.Duration) error {
	n.send(ctx, "email_verification", email, code, ttl)

	return nil
}

// SendPasswordResetCode delivers a password-reset code.
func (n *LogNotifier) SendPasswordResetCode(ctx context.Context, email, code string, ttl time.Duration) error {
	n.send(ctx, "password_reset", email, code, ttl)

	return nil
}

func (n *LogNotifier) send(ctx context.Context, kind, email, code string, ttl time.Duration) {
	n.logger.InfoContext(ctx, "outbound email queued",
		slog.String("kind", kind),
		slog.String("from", n.from),
		slog.String("to", email),
		slog.Duration("ttl", ttl),
	)
	n.logger.DebugContext(ctx, "outbound email code",
		slog.String("kind", kind),
		slog.String("to", email),
		slog.String("code", code),
	)
}
