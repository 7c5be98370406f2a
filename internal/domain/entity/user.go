package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents a person who can authenticate against the federation
// backend. The password hash never leaves the persistence boundary other
// than through verify-in-place on the hasher service.
type User struct {
	ID              uuid.UUID // Internal identifier, primary key.
	PublicID        uuid.UUID // Opaque stable identifier exposed to clients.
	Email           string    // Case-folded, trimmed, unique.
	Name            string
	PasswordHash    string
	Role            Role
	IsActive        bool
	IsEmailVerified bool

	// Second-factor state. TwoFactorSecret is a base32 TOTP secret and is
	// only set once the user has confirmed a code derived from it.
	TwoFactorEnabled bool
	TwoFactorSecret  string
	BackupCodeHashes []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeEmail canonicalizes an email address for lookups and storage.
// All identity lookups by email must normalize first.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
