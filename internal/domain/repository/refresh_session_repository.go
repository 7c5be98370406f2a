package repository

import (
	"context"
	"time"

	"athfed/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Domain-specific errors for refresh session persistence.
var (
	// ErrSessionNotFound is returned when no session matches the lookup.
	ErrSessionNotFound = errors.New("refresh session not found")
	// ErrSessionExpired is returned when the matching session has expired.
	ErrSessionExpired = errors.New("refresh session has expired")
	// ErrSessionReplayed is returned when a rotation targets a session that
	// was already rotated or revoked. Callers treat this as evidence of a
	// stolen refresh token and revoke the user's remaining sessions.
	ErrSessionReplayed = errors.New("refresh session already rotated")
)

// RotateInput carries the replacement identifiers for a refresh rotation.
type RotateInput struct {
	OldRefreshJTI uuid.UUID
	NewAccessJTI  uuid.UUID
	NewRefreshJTI uuid.UUID
	NewExpiresAt  time.Time
	UserAgent     string
}

// RefreshSessionRepository is the authoritative record of refresh
// validity. Rotation is the only operation that must be serializable
// against itself for the same session.
type RefreshSessionRepository interface {
	// Create persists a new active session for a freshly minted token pair.
	Create(ctx context.Context, session *entity.RefreshSession) error

	// FindActiveByRefreshJTI returns the session for the jti when it is
	// active and unexpired; ErrSessionNotFound / ErrSessionExpired otherwise.
	FindActiveByRefreshJTI(ctx context.Context, jti uuid.UUID) (*entity.RefreshSession, error)

	// FindActiveByUserID lists the user's active, unexpired sessions,
	// newest first.
	FindActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.RefreshSession, error)

	// Rotate atomically revokes the old session row and inserts the
	// replacement. Exactly one of two concurrent rotations of the same jti
	// succeeds; the loser observes the revoked row and gets
	// ErrSessionReplayed.
	Rotate(ctx context.Context, input RotateInput) (*entity.RefreshSession, error)

	// RevokeByRefreshJTI marks a single session revoked. Returns
	// ErrSessionNotFound when no active session matches.
	RevokeByRefreshJTI(ctx context.Context, jti uuid.UUID) error

	// RevokeAllByUserID marks every active session for the user revoked
	// and returns the count. Idempotent: a second call returns zero.
	RevokeAllByUserID(ctx context.Context, userID uuid.UUID) (int64, error)

	// RevokeAllByUserIDExcept revokes every active session except the one
	// holding the given refresh jti. Used by password change.
	RevokeAllByUserIDExcept(ctx context.Context, userID uuid.UUID, keepRefreshJTI uuid.UUID) (int64, error)

	// DeleteExpired removes rows whose expiry is past; periodic cleanup.
	DeleteExpired(ctx context.Context) (int64, error)
}
