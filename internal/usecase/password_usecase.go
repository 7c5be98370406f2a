package usecase

import (
	"context"

	"github.com/google/uuid"
)

// ChangePasswordInput carries a password change for a logged-in user.
type ChangePasswordInput struct {
	PublicID        uuid.UUID
	CurrentPassword string
	NewPassword     string
	// KeepRefreshToken, when present, identifies the caller's own
	// session so it survives the revoke-all sweep.
	KeepRefreshToken string
}

// PasswordUsecase covers email verification and the password reset and
// change pipelines.
type PasswordUsecase interface {
	// RequestEmailVerification issues a verification code to the
	// authenticated user's address.
	RequestEmailVerification(ctx context.Context, publicID uuid.UUID) error

	// VerifyEmail consumes a verification code and marks the address
	// verified.
	VerifyEmail(ctx context.Context, email, code string) error

	// RequestPasswordReset issues a reset code when the address is
	// registered. It reports success either way so the endpoint cannot
	// be used to probe for accounts.
	RequestPasswordReset(ctx context.Context, email string) error

	// ValidatePasswordReset checks a reset code without consuming it and
	// returns a short-lived reset-authorization token.
	ValidatePasswordReset(ctx context.Context, email, code string) (string, error)

	// ConfirmPasswordReset redeems a reset-authorization token, sets the
	// new password and revokes every session.
	ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) error

	// ChangePassword verifies the current password, sets the new one and
	// revokes every other session.
	ChangePassword(ctx context.Context, input ChangePasswordInput) error
}
