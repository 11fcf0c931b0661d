package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptor(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	t.Run("round_trip", func(t *testing.T) {
		enc, err := NewEncryptor(key)
		require.NoError(t, err)

		sealed, err := enc.Encrypt("session-id")
		require.NoError(t, err)
		assert.NotContains(t, sealed, "session-id")

		plain, err := enc.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, "session-id", plain)
	})

	t.Run("fresh_nonce_each_time", func(t *testing.T) {
		enc, err := NewEncryptor(key)
		require.NoError(t, err)

		a, err := enc.Encrypt("same")
		require.NoError(t, err)
		b, err := enc.Encrypt("same")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("wrong_key_fails", func(t *testing.T) {
		enc, err := NewEncryptor(key)
		require.NoError(t, err)
		other, err := NewEncryptor([]byte("fedcba9876543210fedcba9876543210"))
		require.NoError(t, err)

		sealed, err := enc.Encrypt("session-id")
		require.NoError(t, err)
		_, err = other.Decrypt(sealed)
		assert.Error(t, err)
	})

	t.Run("garbage_fails", func(t *testing.T) {
		enc, err := NewEncryptor(key)
		require.NoError(t, err)

		for _, input := range []string{"", "abc", "!!!not-base64!!!"} {
			_, err := enc.Decrypt(input)
			assert.Error(t, err, input)
		}
	})

	t.Run("short_key_rejected", func(t *testing.T) {
		_, err := NewEncryptor([]byte("short"))
		assert.Error(t, err)
	})
}
