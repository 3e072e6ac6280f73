package domain

import (
	"time"

	"github.com/google/uuid"
)

// Dek is a Data Encryption Key wrapped by a KEK. One DEK backs each version of an
// encryption key; destroying the version deletes its DEK, which makes every value encrypted
// under that version unrecoverable.
type Dek struct {
	ID           uuid.UUID
	KekID        uuid.UUID
	Algorithm    Algorithm
	EncryptedKey []byte
	Nonce        []byte
	CreatedAt    time.Time
}
