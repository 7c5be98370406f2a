package service

import "time"

// TOTPProvision is returned when a user requests 2FA enablement. The
// secret is held server-side until the user confirms a code derived
// from it; QRCode is a data URI suitable for direct display.
type TOTPProvision struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
	QRCode string `json:"qr_code"`
}

// TOTPService provisions and verifies time-based one-time passwords and
// manages single-use backup codes.
type TOTPService interface {
	// GenerateSecret returns a fresh base32-encoded shared secret.
	GenerateSecret() (string, error)

	// Provision builds the otpauth:// URI and QR code for an account label.
	Provision(secret, accountLabel string) (*TOTPProvision, error)

	// Verify checks a 6-digit code against the secret at the given time,
	// accepting one step of clock drift in either direction. The
	// comparison is constant-time.
	Verify(secret, code string, at time.Time) (bool, error)

	// GenerateBackupCodes returns ten human-readable recovery codes and
	// their hashes. Only the hashes are persisted; the plaintext codes are
	// shown to the user exactly once.
	GenerateBackupCodes() (codes []string, hashes []string, err error)

	// HashBackupCode maps a candidate code to its stored hash form.
	HashBackupCode(code string) string
}
