// Package service defines domain service interfaces consumed by the
// usecase layer. Concrete implementations live under internal/infra.
package service

// PasswordHasher abstracts the password KDF so the usecase layer never
// touches hashing parameters directly.
type PasswordHasher interface {
	// Hash derives a self-describing hash (salt and parameters embedded)
	// from a plaintext password.
	Hash(password string) (string, error)

	// Verify compares a plaintext password with a stored hash in constant
	// time. needsRehash is true when the stored parameters lag the current
	// configuration; callers re-hash on the next successful login.
	Verify(password, encodedHash string) (ok bool, needsRehash bool, err error)

	// DummyVerify burns the same CPU budget as a real verification.
	// Callers use it when the identity does not exist so response timing
	// does not reveal account existence.
	DummyVerify(password string)

	// ValidatePasswordStrength enforces the password policy. Checked on
	// registration, password change and reset confirmation.
	ValidatePasswordStrength(password string) error
}
