package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(seed byte) string {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i) + seed
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestNewEncryptor(t *testing.T) {
	t.Run("valid 32-byte key", func(t *testing.T) {
		encryptor, err := NewEncryptor(testKey(0))
		require.NoError(t, err)
		assert.NotNil(t, encryptor)
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := NewEncryptor("not-valid-base64!!!")
		assert.Error(t, err)
	})

	t.Run("wrong key length", func(t *testing.T) {
		_, err := NewEncryptor(base64.StdEncoding.EncodeToString(make([]byte, 16)))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "32 bytes")
	})
}

func TestEncryptDecrypt(t *testing.T) {
	encryptor, err := NewEncryptor(testKey(0))
	require.NoError(t, err)

	testCases := []struct {
		name      string
		plaintext string
	}{
		{"simple password", "mypassword123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"empty string", ""},
		{"unicode", "şifre密码🔐"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sealed, err := encryptor.Encrypt([]byte(tc.plaintext))
			require.NoError(t, err)
			assert.NotEmpty(t, sealed)

			opened, err := encryptor.Decrypt(sealed)
			require.NoError(t, err)
			assert.Equal(t, tc.plaintext, string(opened))
		})
	}

	t.Run("same plaintext seals differently", func(t *testing.T) {
		a, err := encryptor.Encrypt([]byte("secret"))
		require.NoError(t, err)
		b, err := encryptor.Encrypt([]byte("secret"))
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}

func TestDecryptFailures(t *testing.T) {
	encryptor, err := NewEncryptor(testKey(0))
	require.NoError(t, err)
	other, err := NewEncryptor(testKey(1))
	require.NoError(t, err)

	sealed, err := encryptor.Encrypt([]byte("secret"))
	require.NoError(t, err)

	t.Run("too short", func(t *testing.T) {
		_, err := encryptor.Decrypt([]byte{1, 2, 3})
		assert.ErrorIs(t, err, errCiphertextTooShort)
	})

	t.Run("wrong key", func(t *testing.T) {
		_, err := other.Decrypt(sealed)
		assert.Error(t, err)
	})

	t.Run("tampered", func(t *testing.T) {
		tampered := append([]byte(nil), sealed...)
		tampered[len(tampered)-1] ^= 0xff
		_, err := encryptor.Decrypt(tampered)
		assert.Error(t, err)
	})
}
