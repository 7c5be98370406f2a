// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"athfed/internal/domain/entity"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     entity.Role
}

// LoginInput defines the data required to log in.
type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
}

// VerifyTwoFactorInput completes a two-step login.
type VerifyTwoFactorInput struct {
	PendingToken string
	Code         string
	UserAgent    string
}

// RefreshInput redeems a refresh token for a new pair.
type RefreshInput struct {
	RefreshToken string
	UserAgent    string
}

// --- Output DTOs ---

// UserInfo is the client-facing identity summary. The ID is the
// public identifier, never the internal key.
type UserInfo struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Role             string    `json:"role"`
	IsActive         bool      `json:"is_active"`
	IsEmailVerified  bool      `json:"is_email_verified"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at"`
}

// TokenPair carries a freshly minted access/refresh pair.
type TokenPair struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresInSeconds int64  `json:"expires_in"`
}

// LoginOutput is either a completed login or a pending second step.
type LoginOutput struct {
	TwoFactorRequired bool       `json:"two_factor_required"`
	PendingToken      string     `json:"pending_token,omitempty"`
	Tokens            *TokenPair `json:"tokens,omitempty"`
	User              *UserInfo  `json:"user,omitempty"`
}

// AuthUsecase defines the authentication operations the delivery layer
// depends on.
type AuthUsecase interface {
	// Register creates a new identity with a policy-checked password.
	Register(ctx context.Context, input RegisterInput) (*UserInfo, error)

	// Login verifies credentials. For 2FA-enabled accounts it returns a
	// pending token instead of a pair.
	Login(ctx context.Context, input LoginInput) (*LoginOutput, error)

	// VerifyTwoFactor redeems a pending token plus TOTP or backup code
	// for a full token pair. Each pending token is redeemable once.
	VerifyTwoFactor(ctx context.Context, input VerifyTwoFactorInput) (*LoginOutput, error)

	// Refresh rotates a refresh token. A replayed token revokes every
	// session belonging to the user.
	Refresh(ctx context.Context, input RefreshInput) (*LoginOutput, error)

	// Logout revokes the session identified by the refresh token.
	Logout(ctx context.Context, refreshToken string) error

	// LogoutAll revokes every session of the user and reports the count.
	LogoutAll(ctx context.Context, publicID uuid.UUID) (int64, error)

	// ListSessions lists the user's active sessions. The session whose
	// access jti matches is flagged as current.
	ListSessions(ctx context.Context, publicID uuid.UUID, accessJTI uuid.UUID) ([]*entity.SessionInfo, error)

	// ListSessionsForUser lists another user's active sessions; exposed
	// on the admin surface only.
	ListSessionsForUser(ctx context.Context, publicID uuid.UUID) ([]*entity.SessionInfo, error)

	// Me returns the identity summary for the authenticated user.
	Me(ctx context.Context, publicID uuid.UUID) (*UserInfo, error)

	// CleanupExpiredSessions deletes expired session rows; run periodically.
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}
