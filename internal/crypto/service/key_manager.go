package service

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
)

// KeyManagerService builds the middle of the key hierarchy: KEKs sealed by a master key and
// DEKs sealed by a KEK. Every wrap uses a fresh nonce and no associated data.
type KeyManagerService struct {
	aeadManager AEADManager
}

// NewKeyManager creates a KeyManagerService.
func NewKeyManager(aeadManager AEADManager) *KeyManagerService {
	return &KeyManagerService{aeadManager: aeadManager}
}

// wrapped is key material sealed under a parent key.
type wrapped struct {
	key   []byte
	nonce []byte
}

func (km *KeyManagerService) wrap(parent []byte, alg cryptoDomain.Algorithm, material []byte, kind string) (wrapped, error) {
	aead, err := km.aeadManager.CreateCipher(parent, alg)
	if err != nil {
		return wrapped{}, err
	}
	sealed, nonce, err := aead.Encrypt(material, nil)
	if err != nil {
		return wrapped{}, fmt.Errorf("failed to wrap %s: %w", kind, err)
	}
	return wrapped{key: sealed, nonce: nonce}, nil
}

// unwrap reports any authentication failure as ErrDecryptionFailed so callers never see
// which parent key was wrong.
func (km *KeyManagerService) unwrap(parent []byte, alg cryptoDomain.Algorithm, w wrapped) ([]byte, error) {
	aead, err := km.aeadManager.CreateCipher(parent, alg)
	if err != nil {
		return nil, err
	}
	material, err := aead.Decrypt(w.key, w.nonce, nil)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return material, nil
}

// CreateKek generates a KEK wrapped by masterKey. The result keeps the plaintext in Key so the
// caller can immediately wrap DEKs with it; Version starts at 1.
func (km *KeyManagerService) CreateKek(
	masterKey *cryptoDomain.MasterKey,
	alg cryptoDomain.Algorithm,
) (cryptoDomain.Kek, error) {
	material, err := newKeyMaterial("KEK")
	if err != nil {
		return cryptoDomain.Kek{}, err
	}

	w, err := km.wrap(masterKey.Key, alg, material, "KEK")
	if err != nil {
		cryptoDomain.Zero(material)
		return cryptoDomain.Kek{}, err
	}

	return cryptoDomain.Kek{
		ID:           uuid.Must(uuid.NewV7()),
		MasterKeyID:  masterKey.ID,
		Algorithm:    alg,
		EncryptedKey: w.key,
		Nonce:        w.nonce,
		Key:          material,
		Version:      1,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// DecryptKek returns the plaintext of kek.
func (km *KeyManagerService) DecryptKek(
	kek *cryptoDomain.Kek,
	masterKey *cryptoDomain.MasterKey,
) ([]byte, error) {
	return km.unwrap(masterKey.Key, kek.Algorithm, wrapped{key: kek.EncryptedKey, nonce: kek.Nonce})
}

// RewrapKek moves kek from one master key to another without changing its material.
func (km *KeyManagerService) RewrapKek(
	kek *cryptoDomain.Kek,
	from, to *cryptoDomain.MasterKey,
) (cryptoDomain.Kek, error) {
	material, err := km.DecryptKek(kek, from)
	if err != nil {
		return cryptoDomain.Kek{}, err
	}
	defer cryptoDomain.Zero(material)

	w, err := km.wrap(to.Key, kek.Algorithm, material, "KEK")
	if err != nil {
		return cryptoDomain.Kek{}, err
	}

	moved := *kek
	moved.MasterKeyID, moved.EncryptedKey, moved.Nonce, moved.Key = to.ID, w.key, w.nonce, nil
	return moved, nil
}

// CreateDek generates a DEK wrapped by the unwrapped kek. alg is the algorithm the DEK itself
// will encrypt data with; the wrap uses the KEK's algorithm.
func (km *KeyManagerService) CreateDek(
	kek *cryptoDomain.Kek,
	alg cryptoDomain.Algorithm,
) (cryptoDomain.Dek, error) {
	material, err := newKeyMaterial("DEK")
	if err != nil {
		return cryptoDomain.Dek{}, err
	}
	defer cryptoDomain.Zero(material)

	w, err := km.wrap(kek.Key, kek.Algorithm, material, "DEK")
	if err != nil {
		return cryptoDomain.Dek{}, err
	}

	return cryptoDomain.Dek{
		ID:           uuid.Must(uuid.NewV7()),
		KekID:        kek.ID,
		Algorithm:    alg,
		EncryptedKey: w.key,
		Nonce:        w.nonce,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// DecryptDek returns the plaintext of dek. The caller zeroes it after use.
func (km *KeyManagerService) DecryptDek(dek *cryptoDomain.Dek, kek *cryptoDomain.Kek) ([]byte, error) {
	return km.unwrap(kek.Key, kek.Algorithm, wrapped{key: dek.EncryptedKey, nonce: dek.Nonce})
}

// RewrapDek moves dek under a newer KEK.
func (km *KeyManagerService) RewrapDek(
	dek *cryptoDomain.Dek,
	from, to *cryptoDomain.Kek,
) (cryptoDomain.Dek, error) {
	material, err := km.DecryptDek(dek, from)
	if err != nil {
		return cryptoDomain.Dek{}, err
	}
	defer cryptoDomain.Zero(material)

	w, err := km.wrap(to.Key, to.Algorithm, material, "DEK")
	if err != nil {
		return cryptoDomain.Dek{}, err
	}

	moved := *dek
	moved.KekID, moved.EncryptedKey, moved.Nonce = to.ID, w.key, w.nonce
	return moved, nil
}

func newKeyMaterial(kind string) ([]byte, error) {
	material := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", kind, err)
	}
	return material, nil
}
