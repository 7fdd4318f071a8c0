// Package totp implements RFC 6238 time-based one-time passwords over the
// RFC 4226 HOTP construction (HMAC-SHA1, 30-second step, 6 digits by
// default), plus base32 secret generation and otpauth:// provisioning URIs.
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultDigits is the code length used by all common authenticator apps
	DefaultDigits = 6

	// DefaultPeriod is the time-step size in seconds
	DefaultPeriod = 30

	secretBytes = 20
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecret returns a new random shared secret encoded as unpadded
// base32, the format authenticator apps expect.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate totp secret: %w", err)
	}
	return b32.EncodeToString(buf), nil
}

// hotp computes the HOTP value for a counter per RFC 4226
func hotp(key []byte, counter uint64, digits int) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	// Dynamic truncation
	offset := sum[len(sum)-1] & 0x0f
	code := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint32(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, code%mod)
}

// Code returns the TOTP code for the given secret at time t.
func Code(secret string, t time.Time, digits, period int) (string, error) {
	if digits <= 0 {
		digits = DefaultDigits
	}
	if period <= 0 {
		period = DefaultPeriod
	}

	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}

	counter := uint64(t.Unix()) / uint64(period)
	return hotp(key, counter, digits), nil
}

// Verify checks a code against the secret at time t, accepting codes up to
// skew time-steps away in either direction. Comparison is constant-time.
func Verify(secret, code string, t time.Time, digits, period, skew int) bool {
	if digits <= 0 {
		digits = DefaultDigits
	}
	if period <= 0 {
		period = DefaultPeriod
	}
	if skew < 0 {
		skew = 0
	}

	code = strings.TrimSpace(code)
	if len(code) != digits {
		return false
	}

	key, err := decodeSecret(secret)
	if err != nil {
		return false
	}

	counter := int64(t.Unix()) / int64(period)
	matched := false
	for offset := -int64(skew); offset <= int64(skew); offset++ {
		c := counter + offset
		if c < 0 {
			continue
		}
		expected := hotp(key, uint64(c), digits)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			matched = true
		}
	}

	return matched
}

// ProvisioningURI builds the otpauth:// URI encoded into setup QR codes.
func ProvisioningURI(issuer, account, secret string, digits, period int) string {
	if digits <= 0 {
		digits = DefaultDigits
	}
	if period <= 0 {
		period = DefaultPeriod
	}

	// PathEscape leaves "@" alone but authenticator apps expect the
	// account portion fully percent-encoded.
	escapedAccount := strings.ReplaceAll(url.PathEscape(account), "@", "%40")
	label := url.PathEscape(issuer) + ":" + escapedAccount
	params := url.Values{}
	params.Set("secret", secret)
	params.Set("issuer", issuer)
	params.Set("digits", fmt.Sprintf("%d", digits))
	params.Set("period", fmt.Sprintf("%d", period))
	params.Set("algorithm", "SHA1")

	return "otpauth://totp/" + label + "?" + params.Encode()
}

func decodeSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
	normalized = strings.TrimRight(normalized, "=")

	key, err := b32.DecodeString(normalized)
	if err != nil {
		return nil, fmt.Errorf("invalid totp secret: %w", err)
	}
	return key, nil
}
