package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"
	"golang.org/x/text/unicode/norm"

	"athfed/config"
	domainerrors "athfed/internal/domain/errors"
	"athfed/internal/domain/service"
	"athfed/internal/errors"
)

var (
	// ErrHashMalformed reports a stored hash that does not parse as a
	// PHC argon2id string.
	ErrHashMalformed = errors.New("malformed password hash")
	// ErrHashIncompatible reports a hash produced by an unsupported
	// algorithm or argon2 version.
	ErrHashIncompatible = errors.New("incompatible password hash")
)

// commonPasswords are rejected outright regardless of composition.
var commonPasswords = map[string]struct{}{
	"password123!":   {},
	"passw0rd123!":   {},
	"qwerty123456!":  {},
	"welcome12345!":  {},
	"athletics2024!": {},
	"federation123!": {},
	"changeme1234!":  {},
	"letmein12345!":  {},
}

// Argon2Hasher hashes passwords with Argon2id and serializes them in
// the PHC string format, so parameters can be raised later without
// invalidating stored hashes.
type Argon2Hasher struct {
	memoryKB    uint32
	time        uint32
	parallelism uint8
	saltLength  uint32
	keyLength   uint32
	minLength   int

	// dummyHash is verified against when no real hash exists, keeping
	// lookup-miss timing close to the real path.
	dummyHash string
}

// NewArgon2Hasher builds a hasher from the configured parameters.
func NewArgon2Hasher(cfg *config.Config) (service.PasswordHasher, error) {
	hasher := &Argon2Hasher{
		memoryKB:    cfg.Password.MemoryKB,
		time:        cfg.Password.Time,
		parallelism: cfg.Password.Parallelism,
		saltLength:  cfg.Password.SaltLength,
		keyLength:   cfg.Password.KeyLength,
		minLength:   cfg.Password.MinLength,
	}

	dummy, err := hasher.Hash("equalize-timing-placeholder-1A!")
	if err != nil {
		return nil, errors.Wrap(err, "precompute dummy hash")
	}
	hasher.dummyHash = dummy

	return hasher, nil
}

// Hash derives an Argon2id hash of password and encodes it as
// $argon2id$v=19$m=...,t=...,p=...$<salt>$<hash>.
func (h *Argon2Hasher) Hash(password string) (string, error) {
	normalized := norm.NFC.String(password)

	salt := make([]byte, h.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "generate salt")
	}

	key := argon2.IDKey([]byte(normalized), salt, h.time, h.memoryKB, h.parallelism, h.keyLength)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memoryKB,
		h.time,
		h.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	return encoded, nil
}

// Verify checks password against encodedHash in constant time. It also
// reports whether the hash was produced with weaker parameters than the
// current configuration and should be re-derived.
func (h *Argon2Hasher) Verify(password, encodedHash string) (ok bool, needsRehash bool, err error) {
	params, salt, key, err := decodeHash(encodedHash)
	if err != nil {
		return false, false, err
	}

	normalized := norm.NFC.String(password)
	candidate := argon2.IDKey([]byte(normalized), salt, params.time, params.memoryKB, params.parallelism, uint32(len(key)))

	if subtle.ConstantTimeCompare(key, candidate) != 1 {
		return false, false, nil
	}

	needsRehash = params.memoryKB < h.memoryKB ||
		params.time < h.time ||
		params.parallelism < h.parallelism ||
		uint32(len(key)) < h.keyLength

	return true, needsRehash, nil
}

// DummyVerify burns the same work as a real verification. Called when
// the account does not exist so response timing does not reveal it.
func (h *Argon2Hasher) DummyVerify(password string) {
	_, _, _ = h.Verify(password, h.dummyHash)
}

// ValidatePasswordStrength enforces the registration password policy.
func (h *Argon2Hasher) ValidatePasswordStrength(password string) error {
	normalized := norm.NFC.String(password)

	if len([]rune(normalized)) < h.minLength {
		return domainerrors.ErrWeakPassword.WithDetails(
			fmt.Sprintf("password must be at least %d characters", h.minLength))
	}

	var hasLetter, hasDigit, hasSymbol bool
	for _, r := range normalized {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	if !hasLetter || !hasDigit || !hasSymbol {
		return domainerrors.ErrWeakPassword.WithDetails("password must mix letters, digits and symbols")
	}

	if _, banned := commonPasswords[strings.ToLower(normalized)]; banned {
		return domainerrors.ErrWeakPassword.WithDetails("password is too common")
	}

	return nil
}

type argon2Params struct {
	memoryKB    uint32
	time        uint32
	parallelism uint8
}

func decodeHash(encodedHash string) (*argon2Params, []byte, []byte, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return nil, nil, nil, ErrHashMalformed
	}

	if parts[1] != "argon2id" {
		return nil, nil, nil, ErrHashIncompatible
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, nil, ErrHashMalformed
	}
	if version != argon2.Version {
		return nil, nil, nil, ErrHashIncompatible
	}

	params := &argon2Params{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memoryKB, &params.time, &params.parallelism); err != nil {
		return nil, nil, nil, ErrHashMalformed
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, ErrHashMalformed
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, nil, ErrHashMalformed
	}

	return params, salt, key, nil
}
