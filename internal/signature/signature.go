// Package signature verifies HMAC signed webhook deliveries.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrMissing  = errors.New("webhook signature is missing")
	ErrMismatch = errors.New("webhook signature does not match")
	ErrNoSecret = errors.New("webhook secret is not configured")
)

// Sign returns the lowercase hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks provided against the HMAC of the raw body. Lengths are
// compared first so the constant time comparison only runs on equal sizes.
func Verify(secret string, body []byte, provided string) error {
	if secret == "" {
		return ErrNoSecret
	}
	provided = strings.ToLower(strings.TrimSpace(provided))
	if provided == "" {
		return ErrMissing
	}

	expected := Sign(secret, body)
	if len(provided) != len(expected) {
		return ErrMismatch
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		return ErrMismatch
	}
	return nil
}
