package browserauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgellow/riot-front/internal/crypto"
)

// ErrInvalidSessionCookie is returned for cookies that fail to decrypt or decode
var ErrInvalidSessionCookie = errors.New("invalid session cookie")

// SessionCookie represents the data stored in the encrypted browser session cookie
type SessionCookie struct {
	SessionID string    `json:"sid"`
	IssuedAt  time.Time `json:"iat"`
}

// AuthorizationState is signed into the OAuth state parameter. It binds a
// redirect back to the browser session that started the login.
type AuthorizationState struct {
	SessionID string `json:"sid"`
	Nonce     string `json:"nonce"`
}

// Seal encrypts the cookie for the browser
func (c SessionCookie) Seal(enc crypto.Encryptor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshalling session cookie: %w", err)
	}
	return enc.Encrypt(string(data))
}

// OpenSessionCookie decrypts and decodes a sealed cookie value
func OpenSessionCookie(enc crypto.Encryptor, value string) (SessionCookie, error) {
	plain, err := enc.Decrypt(value)
	if err != nil {
		return SessionCookie{}, fmt.Errorf("%w: %v", ErrInvalidSessionCookie, err)
	}

	var c SessionCookie
	if err := json.Unmarshal([]byte(plain), &c); err != nil {
		return SessionCookie{}, fmt.Errorf("%w: %v", ErrInvalidSessionCookie, err)
	}
	if c.SessionID == "" {
		return SessionCookie{}, fmt.Errorf("%w: no session id", ErrInvalidSessionCookie)
	}
	return c, nil
}
