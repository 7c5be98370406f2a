package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ChallengePurpose namespaces challenge codes in the key-value service.
type ChallengePurpose string

const (
	// PurposeEmailVerification keys codes proving control of an address.
	PurposeEmailVerification ChallengePurpose = "email_verification"
	// PurposePasswordReset keys codes authorizing a password reset.
	PurposePasswordReset ChallengePurpose = "pwd_reset"
)

// Challenge validation failures.
var (
	// ErrChallengeInvalid is returned when the code does not match.
	ErrChallengeInvalid = errors.New("challenge code invalid")
	// ErrChallengeExpired is returned when no live code exists for the key.
	ErrChallengeExpired = errors.New("challenge code expired")
	// ErrChallengeLockedOut is returned when the attempt cap destroyed the
	// code. The 6th attempt must not compare codes.
	ErrChallengeLockedOut = errors.New("challenge attempts exhausted")
	// ErrChallengeUnavailable is returned on key-value transport faults.
	// It never counts against the attempt cap.
	ErrChallengeUnavailable = errors.New("challenge backend unavailable")
)

// ChallengeStatus reports whether a live code exists for a key.
type ChallengeStatus struct {
	Exists       bool
	RemainingTTL time.Duration
}

// ChallengeStore issues and validates short-TTL codes keyed by purpose
// and normalized email. A key holds at most one live code; a new issue
// supersedes the previous one.
type ChallengeStore interface {
	// Issue generates a code, stores it with the purpose's TTL and
	// returns both. The {value, TTL} pair is written atomically.
	Issue(ctx context.Context, purpose ChallengePurpose, email string) (code string, ttl time.Duration, err error)

	// Validate checks a candidate code without destroying it on success;
	// wrong candidates increment the attempt counter. Used by the reset
	// pipeline's validate step, which exchanges the code for a
	// reset-authorization token.
	Validate(ctx context.Context, purpose ChallengePurpose, email, code string) error

	// Consume checks a candidate code and deletes it on success. Wrong
	// candidates increment the attempt counter; the cap destroys the code.
	Consume(ctx context.Context, purpose ChallengePurpose, email, code string) error

	// Revoke destroys any live code for the key regardless of attempts.
	Revoke(ctx context.Context, purpose ChallengePurpose, email string) error

	// Status reports existence and remaining TTL without touching attempts.
	Status(ctx context.Context, purpose ChallengePurpose, email string) (*ChallengeStatus, error)
}
