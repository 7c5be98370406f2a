package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"athfed/config"
	"athfed/internal/domain/service"
	"athfed/internal/errors"
)

const (
	totpSecretBytes = 20
	totpDigits      = 6
	totpStep        = 30 * time.Second
	// totpSkewSteps accepts codes from adjacent time steps to absorb
	// client clock drift.
	totpSkewSteps = 1

	backupCodeCount = 10
	// backupCodeAlphabet avoids ambiguous characters (0/O, 1/I/L).
	backupCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

var base32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// TOTPService implements RFC 6238 code verification and backup code
// generation.
type TOTPService struct {
	issuer string
	qrSize int
}

// NewTOTPService builds the TOTP provider from configuration.
func NewTOTPService(cfg *config.Config) service.TOTPService {
	return &TOTPService{
		issuer: cfg.TwoFactor.Issuer,
		qrSize: cfg.TwoFactor.QRSize,
	}
}

// GenerateSecret returns a fresh 160-bit shared secret, base32-encoded
// without padding as authenticator apps expect.
func (s *TOTPService) GenerateSecret() (string, error) {
	secret := make([]byte, totpSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", errors.Wrap(err, "generate totp secret")
	}

	return base32NoPadding.EncodeToString(secret), nil
}

// Provision builds the otpauth:// URI and an inline QR code image for
// the given account label.
func (s *TOTPService) Provision(secret, accountLabel string) (*service.TOTPProvision, error) {
	uri := fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s&digits=%d&period=%d",
		url.PathEscape(s.issuer),
		url.PathEscape(accountLabel),
		secret,
		url.QueryEscape(s.issuer),
		totpDigits,
		int(totpStep.Seconds()),
	)

	png, err := qrcode.Encode(uri, qrcode.Medium, s.qrSize)
	if err != nil {
		return nil, errors.Wrap(err, "encode qr code")
	}

	return &service.TOTPProvision{
		Secret: secret,
		URI:    uri,
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}

// Verify checks a candidate code against the secret at the given time,
// scanning one step either side of the current window.
func (s *TOTPService) Verify(secret, code string, at time.Time) (bool, error) {
	code = strings.TrimSpace(code)
	if len(code) != totpDigits {
		return false, nil
	}

	key, err := base32NoPadding.DecodeString(strings.ToUpper(strings.TrimRight(secret, "=")))
	if err != nil {
		return false, errors.Wrap(err, "decode totp secret")
	}

	counter := uint64(at.Unix()) / uint64(totpStep.Seconds())
	matched := false
	for offset := -totpSkewSteps; offset <= totpSkewSteps; offset++ {
		candidate := hotpCode(key, counter+uint64(offset))
		// No early exit so timing does not reveal which window matched.
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(code)) == 1 {
			matched = true
		}
	}

	return matched, nil
}

// GenerateBackupCodes returns ten single-use recovery codes and their
// hashes. Plaintext codes are never stored.
func (s *TOTPService) GenerateBackupCodes() ([]string, []string, error) {
	codes := make([]string, 0, backupCodeCount)
	hashes := make([]string, 0, backupCodeCount)

	for range backupCodeCount {
		code, err := randomBackupCode()
		if err != nil {
			return nil, nil, err
		}
		codes = append(codes, code)
		hashes = append(hashes, s.HashBackupCode(code))
	}

	return codes, hashes, nil
}

// HashBackupCode maps a candidate code to its stored form. Codes are
// high-entropy machine secrets, so a plain digest suffices.
func (s *TOTPService) HashBackupCode(code string) string {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	sum := sha256.Sum256([]byte(normalized))

	return hex.EncodeToString(sum[:])
}

// hotpCode computes the RFC 4226 truncated HMAC-SHA1 code for a counter.
func hotpCode(key []byte, counter uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(buf[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%0*d", totpDigits, value%1_000_000)
}

// randomBackupCode draws a code in XXXX-XXXX-XXXX form from the
// unambiguous alphabet.
func randomBackupCode() (string, error) {
	raw := make([]byte, 12)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.Wrap(err, "generate backup code")
	}

	chars := make([]byte, 0, 14)
	for i, b := range raw {
		if i > 0 && i%4 == 0 {
			chars = append(chars, '-')
		}
		chars = append(chars, backupCodeAlphabet[int(b)%len(backupCodeAlphabet)])
	}

	return string(chars), nil
}
