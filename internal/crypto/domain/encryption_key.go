package domain

import (
	"time"

	"github.com/google/uuid"
)

// EncryptionKey is one version of the named key that encrypts mapping values.
// New values are always encrypted under the highest live version. A destroyed version keeps
// its row for audit purposes but loses its DEK.
type EncryptionKey struct {
	ID          uuid.UUID
	Name        string
	Version     uint
	DekID       uuid.UUID // uuid.Nil once destroyed
	CreatedAt   time.Time
	DestroyedAt *time.Time
}

// Destroyed reports whether the version's key material has been deleted.
func (k *EncryptionKey) Destroyed() bool {
	return k.DestroyedAt != nil
}

// Sealed is the output of an Encryption Gateway encrypt call.
type Sealed struct {
	Ciphertext []byte // nonce || AEAD output
	KeyVersion uint
}
