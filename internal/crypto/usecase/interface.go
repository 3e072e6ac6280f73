// Package usecase implements the key hierarchy use cases and the Encryption Gateway that the
// pseudonymization core uses to encrypt mapping values.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
)

// KekRepository persists wrapped KEKs.
type KekRepository interface {
	Create(ctx context.Context, kek *cryptoDomain.Kek) error
	Update(ctx context.Context, kek *cryptoDomain.Kek) error
	List(ctx context.Context) ([]*cryptoDomain.Kek, error)
}

// DekRepository persists wrapped DEKs.
type DekRepository interface {
	Create(ctx context.Context, dek *cryptoDomain.Dek) error
	Get(ctx context.Context, dekID uuid.UUID) (*cryptoDomain.Dek, error)
	Update(ctx context.Context, dek *cryptoDomain.Dek) error
	Delete(ctx context.Context, dekID uuid.UUID) error
}

// EncryptionKeyRepository persists versions of named encryption keys.
type EncryptionKeyRepository interface {
	Create(ctx context.Context, key *cryptoDomain.EncryptionKey) error
	GetLatest(ctx context.Context, name string) (*cryptoDomain.EncryptionKey, error)
	GetByVersion(ctx context.Context, name string, version uint) (*cryptoDomain.EncryptionKey, error)
	List(ctx context.Context, name string) ([]*cryptoDomain.EncryptionKey, error)
	MarkDestroyed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// KekUseCase manages KEKs.
type KekUseCase interface {
	Create(ctx context.Context, masterKeyChain *cryptoDomain.MasterKeyChain, alg cryptoDomain.Algorithm) error
	Rotate(ctx context.Context, masterKeyChain *cryptoDomain.MasterKeyChain, alg cryptoDomain.Algorithm) error
	Unwrap(ctx context.Context, masterKeyChain *cryptoDomain.MasterKeyChain) (*cryptoDomain.KekChain, error)

	// Rewrap re-wraps every KEK not already under the active master key and returns how many
	// were rewritten.
	Rewrap(ctx context.Context, masterKeyChain *cryptoDomain.MasterKeyChain) (int, error)
}

// EncryptionGateway encrypts and decrypts values under the versioned encryption key.
//
// Failures are fail-closed: ErrCryptoUnavailable when the backend cannot serve the call and
// ErrKeyVersionUnavailable when the version a ciphertext references has been destroyed.
// Nothing ever falls back to storing or returning an unencrypted value.
type EncryptionGateway interface {
	// Encrypt seals plaintext bound to aad under the newest live key version.
	Encrypt(ctx context.Context, plaintext, aad []byte) (*cryptoDomain.Sealed, error)

	// Decrypt opens a ciphertext produced by Encrypt under keyVersion with the same aad.
	Decrypt(ctx context.Context, ciphertext []byte, keyVersion uint, aad []byte) ([]byte, error)

	// Ready verifies the newest key version can be unwrapped.
	Ready(ctx context.Context) error
}

// EncryptionKeyUseCase is the Encryption Gateway plus key lifecycle management.
type EncryptionKeyUseCase interface {
	EncryptionGateway

	Create(ctx context.Context, alg cryptoDomain.Algorithm) (*cryptoDomain.EncryptionKey, error)
	Rotate(ctx context.Context, alg cryptoDomain.Algorithm) (*cryptoDomain.EncryptionKey, error)

	// DestroyVersion deletes the key material of a non-active version. Values sealed under it
	// become permanently undecryptable.
	DestroyVersion(ctx context.Context, version uint) error

	List(ctx context.Context) ([]*cryptoDomain.EncryptionKey, error)

	// RewrapDeks re-wraps the DEKs of live versions under the active KEK.
	RewrapDeks(ctx context.Context) (int, error)
}
