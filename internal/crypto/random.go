package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	sessionIDBytes = 32
	nonceBytes     = 16
)

// RandomString returns n random bytes as unpadded base64url
func RandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewSessionID returns an unguessable session store key
func NewSessionID() (string, error) {
	return RandomString(sessionIDBytes)
}

// NewNonce returns a single-use value for OAuth nonces, CSRF tokens and
// CSP script nonces
func NewNonce() (string, error) {
	return RandomString(nonceBytes)
}
