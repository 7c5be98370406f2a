package usecase

import (
	"context"

	"github.com/google/uuid"

	"athfed/internal/domain/service"
)

// ConfirmTwoFactorOutput returns the one-time view of the backup codes.
type ConfirmTwoFactorOutput struct {
	BackupCodes []string `json:"backup_codes"`
}

// TwoFactorUsecase manages TOTP enrollment for authenticated users.
type TwoFactorUsecase interface {
	// Enable generates a candidate secret and provisioning QR code. The
	// account's 2FA state is unchanged until Confirm succeeds.
	Enable(ctx context.Context, publicID uuid.UUID) (*service.TOTPProvision, error)

	// Confirm verifies a code against the candidate secret, activates
	// 2FA and returns backup codes. The codes are shown exactly once.
	Confirm(ctx context.Context, publicID uuid.UUID, code string) (*ConfirmTwoFactorOutput, error)

	// Disable deactivates 2FA after re-verifying the password and a
	// current TOTP or backup code.
	Disable(ctx context.Context, publicID uuid.UUID, password, code string) error
}
