package service

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
)

func newKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, cryptoDomain.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestAEADManagerService_CreateCipher(t *testing.T) {
	manager := NewAEADManager()

	for _, alg := range []cryptoDomain.Algorithm{cryptoDomain.AESGCM, cryptoDomain.ChaCha20} {
		t.Run("Success_RoundTrip_"+string(alg), func(t *testing.T) {
			aead, err := manager.CreateCipher(newKey(t), alg)
			require.NoError(t, err)
			assert.Equal(t, 12, aead.NonceSize())

			ciphertext, nonce, err := aead.Encrypt([]byte("Juan Perez"), []byte("aad"))
			require.NoError(t, err)
			assert.NotContains(t, string(ciphertext), "Juan")

			plaintext, err := aead.Decrypt(ciphertext, nonce, []byte("aad"))
			require.NoError(t, err)
			assert.Equal(t, "Juan Perez", string(plaintext))
		})

		t.Run("Error_WrongAAD_"+string(alg), func(t *testing.T) {
			aead, err := manager.CreateCipher(newKey(t), alg)
			require.NoError(t, err)

			ciphertext, nonce, err := aead.Encrypt([]byte("secret"), []byte("session-a"))
			require.NoError(t, err)

			_, err = aead.Decrypt(ciphertext, nonce, []byte("session-b"))
			assert.Error(t, err)
		})
	}

	t.Run("Success_NoncesAreUnique", func(t *testing.T) {
		aead, err := manager.CreateCipher(newKey(t), cryptoDomain.AESGCM)
		require.NoError(t, err)

		_, n1, err := aead.Encrypt([]byte("x"), nil)
		require.NoError(t, err)
		_, n2, err := aead.Encrypt([]byte("x"), nil)
		require.NoError(t, err)

		assert.NotEqual(t, n1, n2)
	})

	t.Run("Error_ShortNonce", func(t *testing.T) {
		aead, err := manager.CreateCipher(newKey(t), cryptoDomain.ChaCha20)
		require.NoError(t, err)

		_, err = aead.Decrypt([]byte("ciphertext"), []byte("short"), nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("Error_InvalidKeySize", func(t *testing.T) {
		_, err := manager.CreateCipher(make([]byte, 16), cryptoDomain.AESGCM)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
	})

	t.Run("Error_UnsupportedAlgorithm", func(t *testing.T) {
		_, err := manager.CreateCipher(newKey(t), cryptoDomain.Algorithm("rot13"))
		assert.ErrorIs(t, err, cryptoDomain.ErrUnsupportedAlgorithm)
	})
}
