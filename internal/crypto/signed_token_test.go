package crypto

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState struct {
	Nonce string `json:"nonce"`
}

var testKey = []byte("signing-key-signing-key-32-bytes")

func TestTokenSigner(t *testing.T) {
	signer := NewTokenSigner(testKey, time.Minute)

	token, err := signer.Sign(testState{Nonce: "n-1"})
	require.NoError(t, err)

	var got testState
	require.NoError(t, signer.Verify(token, &got))
	assert.Equal(t, "n-1", got.Nonce)

	t.Run("tampered_signature", func(t *testing.T) {
		encoded, _, _ := strings.Cut(token, ".")
		assert.ErrorIs(t, signer.Verify(encoded+".AAAA", &got), ErrInvalidToken)
	})

	t.Run("other_key", func(t *testing.T) {
		other := NewTokenSigner([]byte("another-key-another-key-32-bytes"), time.Minute)
		assert.ErrorIs(t, other.Verify(token, &got), ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokenSigner(testKey, time.Minute)
		later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		assert.ErrorIs(t, later.Verify(token, &got), ErrTokenExpired)
	})

	t.Run("no_expiry", func(t *testing.T) {
		forever := NewTokenSigner(testKey, 0)
		tok, err := forever.Sign(testState{Nonce: "n-2"})
		require.NoError(t, err)

		forever.now = func() time.Time { return time.Now().Add(1000 * time.Hour) }
		require.NoError(t, forever.Verify(tok, &got))
		assert.Equal(t, "n-2", got.Nonce)
	})

	t.Run("bad_format", func(t *testing.T) {
		assert.ErrorIs(t, signer.Verify("no-dot", &got), ErrInvalidToken)
		assert.ErrorIs(t, signer.Verify(".sig", &got), ErrInvalidToken)
	})
}

func TestCSRFProtection(t *testing.T) {
	csrf := NewCSRFProtection(testKey, time.Hour)

	token, err := csrf.Generate()
	require.NoError(t, err)
	assert.True(t, csrf.Validate(token))

	assert.False(t, csrf.Validate(""))
	assert.False(t, csrf.Validate("a:b"))
	assert.False(t, csrf.Validate("a:notanumber:c"))
	assert.False(t, csrf.Validate(token+"x"))

	other := NewCSRFProtection([]byte("another-key-another-key-32-bytes"), time.Hour)
	assert.False(t, other.Validate(token))

	later := NewCSRFProtection(testKey, time.Hour)
	later.signer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.False(t, later.Validate(token))

	stateSigner := NewTokenSigner(testKey, time.Hour)
	state, err := stateSigner.Sign(map[string]string{"sid": "s1", "nonce": "n1"})
	require.NoError(t, err)
	assert.False(t, csrf.Validate(state), "other signed values are not CSRF tokens")
}

func TestSignData(t *testing.T) {
	sig := SignData("payload", testKey)
	assert.True(t, ValidateSignedData("payload", sig, testKey))
	assert.False(t, ValidateSignedData("payload2", sig, testKey))
	assert.False(t, ValidateSignedData("payload", sig, []byte("other")))
}
