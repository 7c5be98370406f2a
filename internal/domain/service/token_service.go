package service

import (
	"time"

	"athfed/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TokenType discriminates the signed bearer tokens the service mints.
type TokenType string

const (
	// TokenAccess is the short-lived token authorizing protected calls.
	TokenAccess TokenType = "access"
	// TokenRefresh is the long-lived token redeemable for a new pair.
	TokenRefresh TokenType = "refresh"
	// TokenPendingTwoFactor proves the password step passed and grants no
	// access to protected resources.
	TokenPendingTwoFactor TokenType = "pending_2fa"
	// TokenResetAuthorization proves a reset challenge code was validated.
	TokenResetAuthorization TokenType = "password_reset"
)

// Token parse failures, each a distinct kind so the boundary can map
// them to distinct responses.
var (
	// ErrTokenMalformed is returned for undecodable tokens.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenExpired is returned when exp is in the past (beyond leeway).
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenSignature is returned for signature verification failures.
	ErrTokenSignature = errors.New("token signature invalid")
	// ErrTokenWrongType is returned when the type claim does not match.
	ErrTokenWrongType = errors.New("token type mismatch")
)

// TokenClaims is the decoded claim set of a verified token.
type TokenClaims struct {
	UserID    uuid.UUID
	Role      entity.Role
	Type      TokenType
	JTI       uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService mints and parses signed bearer tokens. Every token
// carries sub, role, type, iat, exp and a unique jti.
type TokenService interface {
	// Generate mints a token of the given type for the user and returns
	// the signed string together with its jti.
	Generate(user *entity.User, tokenType TokenType) (token string, jti uuid.UUID, err error)

	// Parse verifies signature and expiry (with clock skew leeway) and
	// rejects tokens whose type claim differs from expected.
	Parse(token string, expected TokenType) (*TokenClaims, error)

	// TTL reports the configured lifetime for a token type.
	TTL(tokenType TokenType) time.Duration
}
