package ipn

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// Verifier authenticates IPN payloads against the shared secret
// provisioned by the processor.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given IPN secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(strings.TrimSpace(secret))}
}

// Sign computes the hex-encoded HMAC-SHA512 of the canonical payload.
func (v *Verifier) Sign(canonical string) string {
	mac := hmac.New(sha512.New, v.secret)
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares the header-supplied signature against the HMAC-SHA512
// of the canonical payload in constant time. A malformed or empty
// signature is a mismatch, never an error.
func (v *Verifier) Verify(canonical, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || len(v.secret) == 0 {
		return false
	}
	decoded, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha512.New, v.secret)
	mac.Write([]byte(canonical))
	expected := mac.Sum(nil)

	if len(decoded) != len(expected) {
		return false
	}
	return hmac.Equal(decoded, expected)
}
