// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers
// and the infrastructure layer.
package repository

import (
	"context"

	"athfed/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Domain-specific errors for user persistence.
var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when the unique email constraint is violated.
	ErrEmailTaken = errors.New("email already registered")
)

// UserRepository defines the interface for identity persistence. Emails
// are expected to be normalized (entity.NormalizeEmail) by the caller.
type UserRepository interface {
	// Create persists a new user and fills in generated fields.
	Create(ctx context.Context, user *entity.User) error

	// FindByID retrieves a user by internal id.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// FindByPublicID retrieves a user by the opaque id carried in tokens.
	FindByPublicID(ctx context.Context, publicID uuid.UUID) (*entity.User, error)

	// FindByEmail retrieves a user by normalized email.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// UpdatePasswordHash replaces the stored password hash.
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error

	// SetEmailVerified flips the email verification flag.
	SetEmailVerified(ctx context.Context, id uuid.UUID) error

	// EnableTwoFactor persists the confirmed TOTP secret and backup code
	// hashes, and sets the enabled flag, in a single update.
	EnableTwoFactor(ctx context.Context, id uuid.UUID, secret string, backupCodeHashes []string) error

	// DisableTwoFactor clears the secret, backup codes and enabled flag.
	DisableTwoFactor(ctx context.Context, id uuid.UUID) error

	// ConsumeBackupCode removes one backup code hash from the user's set.
	// Returns false when the hash is not present. The removal must be
	// atomic so a code verifies at most once.
	ConsumeBackupCode(ctx context.Context, id uuid.UUID, codeHash string) (bool, error)
}
