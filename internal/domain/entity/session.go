package entity

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a refresh session.
type SessionStatus string

const (
	// SessionActive marks a session whose refresh token may still be redeemed.
	SessionActive SessionStatus = "active"
	// SessionRevoked is terminal: set by logout, rotation, revoke-all or replay handling.
	SessionRevoked SessionStatus = "revoked"
)

// RefreshSession is the authoritative server-side record of a live
// refresh capability. A refresh token is valid iff a session with its
// jti exists, is active, and has not expired.
type RefreshSession struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	AccessJTI  uuid.UUID
	RefreshJTI uuid.UUID
	Status     SessionStatus
	UserAgent  string // Optional client fingerprint, informational only.
	IssuedAt   time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
}

// IsActive reports whether the session can still redeem a refresh token at the given instant.
func (s *RefreshSession) IsActive(now time.Time) bool {
	return s.Status == SessionActive && s.ExpiresAt.After(now)
}

// SessionInfo is the client-facing projection of a refresh session,
// returned by the sessions listing endpoint.
type SessionInfo struct {
	ID        uuid.UUID  `json:"id"`
	UserAgent string     `json:"user_agent,omitempty"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	Current   bool       `json:"current"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}
