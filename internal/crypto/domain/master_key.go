package domain

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
)

// MasterKey is the root key that wraps KEKs. Key holds the 32 plaintext bytes.
type MasterKey struct {
	ID  string
	Key []byte
}

// MasterKeyChain holds every configured master key. The active one wraps new KEKs; the others
// stay available to unwrap KEKs created before a rotation.
type MasterKeyChain struct {
	activeID string
	keys     sync.Map
}

// ActiveMasterKeyID returns the ID of the currently active master key.
func (m *MasterKeyChain) ActiveMasterKeyID() string {
	return m.activeID
}

// Get retrieves a master key from the chain by its ID.
func (m *MasterKeyChain) Get(id string) (*MasterKey, bool) {
	if masterKey, ok := m.keys.Load(id); ok {
		return masterKey.(*MasterKey), ok
	}

	return nil, false
}

// Close zeroes every master key and empties the chain.
func (m *MasterKeyChain) Close() {
	m.keys.Range(func(_, value any) bool {
		if mk, ok := value.(*MasterKey); ok {
			Zero(mk.Key)
		}
		return true
	})
	m.activeID = ""
	m.keys.Clear()
}

// LoadMasterKeyChain parses raw ("id1:ct1,id2:ct2") and unwraps each entry.
//
// Each ct is standard base64. With a keeper it is a KMS ciphertext and is decrypted through
// the keeper; without one it is the plaintext key itself, which is only acceptable in
// development. Every key must unwrap to exactly 32 bytes and activeID must be present.
func LoadMasterKeyChain(
	ctx context.Context,
	raw, activeID string,
	keeper KMSKeeper,
) (*MasterKeyChain, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrMasterKeysNotSet
	}
	if activeID == "" {
		return nil, ErrActiveMasterKeyIDNotSet
	}

	mkc := &MasterKeyChain{activeID: activeID}

	for part := range strings.SplitSeq(raw, ",") {
		id, encoded, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok || id == "" || encoded == "" {
			mkc.Close()
			return nil, fmt.Errorf("%w: entry must be id:base64", ErrInvalidMasterKeysFormat)
		}

		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			mkc.Close()
			return nil, fmt.Errorf("%w for %s: %v", ErrInvalidMasterKeyBase64, id, err)
		}

		key := decoded
		if keeper != nil {
			key, err = keeper.Decrypt(ctx, decoded)
			if err != nil {
				mkc.Close()
				return nil, fmt.Errorf("%w: unwrap master key %s: %v", ErrCryptoUnavailable, id, err)
			}
		}

		if len(key) != KeySize {
			Zero(key)
			mkc.Close()
			return nil, fmt.Errorf(
				"%w: master key %s must be %d bytes, got %d",
				ErrInvalidKeySize,
				id,
				KeySize,
				len(key),
			)
		}
		mkc.keys.Store(id, &MasterKey{ID: id, Key: key})
	}

	if _, ok := mkc.Get(activeID); !ok {
		mkc.Close()
		return nil, fmt.Errorf("%w: ACTIVE_MASTER_KEY_ID=%s", ErrActiveMasterKeyNotFound, activeID)
	}

	return mkc, nil
}

// NewMasterKeyChain builds a chain from already unwrapped keys. Used by tests and tooling.
func NewMasterKeyChain(activeID string, keys ...*MasterKey) *MasterKeyChain {
	mkc := &MasterKeyChain{activeID: activeID}
	for _, k := range keys {
		mkc.keys.Store(k.ID, k)
	}
	return mkc
}
