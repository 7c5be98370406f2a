package service

import (
	"context"
	"time"
)

// EmailNotifier delivers code-bearing messages out of band. The
// transport (SMTP, provider API) is an infrastructure concern; the
// usecase layer only depends on this interface.
type EmailNotifier interface {
	// SendVerificationCode delivers an email-verification code.
	SendVerificationCode(ctx context.Context, email, code string, ttl time.Duration) error

	// SendPasswordResetCode delivers a password-reset code.
	SendPasswordResetCode(ctx context.Context, email, code string, ttl time.Duration) error
}
