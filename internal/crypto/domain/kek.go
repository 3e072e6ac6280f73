// Package domain defines the key hierarchy behind the Encryption Gateway.
//
// Master keys (held by a KMS) wrap KEKs, KEKs wrap DEKs, and each DEK backs one version of a
// named encryption key. Mapping values and session lookup keys are encrypted under the newest
// version of that encryption key.
package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kek represents a Key Encryption Key used to encrypt Data Encryption Keys.
// It is itself encrypted with a master key and stored in the database.
type Kek struct {
	ID           uuid.UUID
	MasterKeyID  string
	Algorithm    Algorithm
	EncryptedKey []byte
	Key          []byte // plaintext, populated after unwrap and never persisted
	Nonce        []byte
	Version      uint
	CreatedAt    time.Time
}

// KekChain is the set of unwrapped KEKs loaded at startup. The newest version is active and
// wraps new DEKs; older versions stay readable until their DEKs are rewrapped.
type KekChain struct {
	mu       sync.RWMutex
	activeID uuid.UUID
	byID     map[uuid.UUID]*Kek
}

// NewKekChain builds a chain from KEKs ordered by version descending.
func NewKekChain(keks []*Kek) *KekChain {
	kc := &KekChain{byID: make(map[uuid.UUID]*Kek, len(keks))}
	for i, kek := range keks {
		if i == 0 {
			kc.activeID = kek.ID
		}
		kc.byID[kek.ID] = kek
	}
	return kc
}

// ActiveKekID returns uuid.Nil for an empty chain.
func (k *KekChain) ActiveKekID() uuid.UUID {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.activeID
}

// Active returns the KEK that wraps new DEKs.
func (k *KekChain) Active() (*Kek, bool) {
	return k.Get(k.ActiveKekID())
}

func (k *KekChain) Get(id uuid.UUID) (*Kek, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	kek, ok := k.byID[id]
	return kek, ok
}

func (k *KekChain) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.byID)
}

// Close zeroes every plaintext KEK and empties the chain.
func (k *KekChain) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, kek := range k.byID {
		Zero(kek.Key)
	}
	k.activeID = uuid.Nil
	clear(k.byID)
}
