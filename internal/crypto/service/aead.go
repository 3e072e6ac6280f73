package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
)

// ciphers maps each supported algorithm to its cipher.AEAD constructor.
var ciphers = map[cryptoDomain.Algorithm]func(key []byte) (cipher.AEAD, error){
	cryptoDomain.AESGCM: func(key []byte) (cipher.AEAD, error) {
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	},
	cryptoDomain.ChaCha20: chacha20poly1305.New,
}

// randomNonceAEAD draws a fresh nonce for every seal and returns it beside the ciphertext.
type randomNonceAEAD struct {
	inner cipher.AEAD
}

func newAEAD(key []byte, alg cryptoDomain.Algorithm) (AEAD, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}
	build, ok := ciphers[alg]
	if !ok {
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
	inner, err := build(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s cipher: %w", alg, err)
	}
	return randomNonceAEAD{inner: inner}, nil
}

// NewAESGCM creates an AES-256-GCM cipher.
func NewAESGCM(key []byte) (AEAD, error) {
	return newAEAD(key, cryptoDomain.AESGCM)
}

// NewChaCha20Poly1305 creates a ChaCha20-Poly1305 cipher.
func NewChaCha20Poly1305(key []byte) (AEAD, error) {
	return newAEAD(key, cryptoDomain.ChaCha20)
}

func (r randomNonceAEAD) Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, r.inner.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return r.inner.Seal(nil, nonce, plaintext, aad), nonce, nil
}

func (r randomNonceAEAD) Decrypt(ciphertext, nonce, aad []byte) ([]byte, error) {
	if len(nonce) != r.inner.NonceSize() {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	plaintext, err := r.inner.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

func (r randomNonceAEAD) NonceSize() int {
	return r.inner.NonceSize()
}

// AEADManagerService implements AEADManager.
type AEADManagerService struct{}

func NewAEADManager() *AEADManagerService {
	return &AEADManagerService{}
}

// CreateCipher returns ErrInvalidKeySize for keys that are not 32 bytes and
// ErrUnsupportedAlgorithm for unknown algorithms.
func (am *AEADManagerService) CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error) {
	return newAEAD(key, alg)
}
