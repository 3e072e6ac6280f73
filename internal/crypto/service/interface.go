// Package service provides the cryptographic primitives behind the key hierarchy: AEAD
// ciphers, KEK/DEK wrapping and the KMS keeper.
package service

import (
	"context"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
)

// AEAD is an authenticated cipher bound to one key.
type AEAD interface {
	// Encrypt seals plaintext with aad under a fresh random nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt opens ciphertext sealed with nonce and aad.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)

	// NonceSize returns the nonce length in bytes.
	NonceSize() int
}

// AEADManager creates AEAD instances.
type AEADManager interface {
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// KeyManager creates and unwraps KEKs and DEKs.
type KeyManager interface {
	CreateKek(masterKey *cryptoDomain.MasterKey, alg cryptoDomain.Algorithm) (cryptoDomain.Kek, error)
	DecryptKek(kek *cryptoDomain.Kek, masterKey *cryptoDomain.MasterKey) ([]byte, error)
	RewrapKek(kek *cryptoDomain.Kek, from, to *cryptoDomain.MasterKey) (cryptoDomain.Kek, error)
	CreateDek(kek *cryptoDomain.Kek, alg cryptoDomain.Algorithm) (cryptoDomain.Dek, error)
	DecryptDek(dek *cryptoDomain.Dek, kek *cryptoDomain.Kek) ([]byte, error)
	RewrapDek(dek *cryptoDomain.Dek, from, to *cryptoDomain.Kek) (cryptoDomain.Dek, error)
}

// KMSService opens KMS keepers from gocloud.dev secrets URIs.
type KMSService interface {
	OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error)
}
