package security

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// accessTokenBytes yields a 256-bit token, comfortably above the 128-bit
// floor required for access links.
const accessTokenBytes = 32

const referenceRandomBytes = 8

// NewAccessToken returns an opaque, high-entropy token for access links.
// Tokens are never derived from purchase attributes.
func NewAccessToken() (string, error) {
	buf := make([]byte, accessTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewPaymentReference mints a locally-unique payment reference: a prefix,
// a millisecond timestamp, and a cryptographic random suffix.
func NewPaymentReference(prefix string) (string, error) {
	p := strings.TrimSpace(prefix)
	if p == "" {
		p = "LH"
	}
	buf := make([]byte, referenceRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reference suffix: %w", err)
	}
	return fmt.Sprintf("%s_%d_%s", p, time.Now().UnixMilli(), hex.EncodeToString(buf)), nil
}
