package service

import (
	"context"
	"time"
)

// TwoFactorStore holds the short-lived 2FA state that must not live in
// the relational store: candidate secrets awaiting confirmation, and
// single-use markers for pending-login tokens.
type TwoFactorStore interface {
	// SaveSetupSecret stashes a candidate TOTP secret for a user until
	// they confirm a code derived from it. A new save supersedes any
	// previous candidate.
	SaveSetupSecret(ctx context.Context, userID string, secret string, ttl time.Duration) error

	// TakeSetupSecret returns and removes the candidate secret, or ""
	// when none exists.
	TakeSetupSecret(ctx context.Context, userID string) (string, error)

	// SavePendingLogin marks a pending-2FA token jti as redeemable.
	SavePendingLogin(ctx context.Context, jti string, ttl time.Duration) error

	// ConsumePendingLogin atomically redeems the marker. Returns false
	// when the marker is absent: expired, never issued, or already used.
	ConsumePendingLogin(ctx context.Context, jti string) (bool, error)
}
