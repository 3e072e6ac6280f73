// Package testing provides shared crypto test utilities: key fixtures and an in-memory
// Encryption Gateway backed by real AES-GCM.
package testing

import (
	"context"
	"crypto/rand"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	cryptoService "github.com/allisson/pseudonymizer/internal/crypto/service"
)

func randomKey() []byte {
	key := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}
	return key
}

// CreateKekChain creates a KEK chain with a single active, unwrapped KEK.
func CreateKekChain() *cryptoDomain.KekChain {
	kek := &cryptoDomain.Kek{
		ID:          uuid.Must(uuid.NewV7()),
		MasterKeyID: "test-master-key",
		Algorithm:   cryptoDomain.AESGCM,
		Key:         randomKey(),
		Version:     1,
	}
	return cryptoDomain.NewKekChain([]*cryptoDomain.Kek{kek})
}

// Gateway is an in-memory Encryption Gateway with rotatable, destroyable versions.
type Gateway struct {
	mu     sync.Mutex
	keys   map[uint][]byte
	active uint
	err    error

	Encrypts atomic.Int64
	Decrypts atomic.Int64
}

// NewGateway creates a Gateway holding version 1.
func NewGateway() *Gateway {
	return &Gateway{keys: map[uint][]byte{1: randomKey()}, active: 1}
}

// Rotate adds a new active version and returns it.
func (g *Gateway) Rotate() uint {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active++
	g.keys[g.active] = randomKey()
	return g.active
}

// Destroy deletes the key material of version.
func (g *Gateway) Destroy(version uint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, version)
}

// FailWith makes every following call return err. A nil err restores normal operation.
func (g *Gateway) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *Gateway) Encrypt(_ context.Context, plaintext, aad []byte) (*cryptoDomain.Sealed, error) {
	g.Encrypts.Add(1)
	g.mu.Lock()
	key, version, err := g.keys[g.active], g.active, g.err
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	aead, err := cryptoService.NewAESGCM(key)
	if err != nil {
		return nil, err
	}
	ciphertext, nonce, err := aead.Encrypt(plaintext, aad)
	if err != nil {
		return nil, err
	}
	return &cryptoDomain.Sealed{Ciphertext: append(nonce, ciphertext...), KeyVersion: version}, nil
}

func (g *Gateway) Decrypt(_ context.Context, ciphertext []byte, keyVersion uint, aad []byte) ([]byte, error) {
	g.Decrypts.Add(1)
	g.mu.Lock()
	key, ok := g.keys[keyVersion]
	err := g.err
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, cryptoDomain.ErrKeyVersionUnavailable
	}

	aead, err := cryptoService.NewAESGCM(key)
	if err != nil {
		return nil, err
	}
	nonceSize := aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, cryptoDomain.ErrCiphertextCorrupted
	}
	plaintext, err := aead.Decrypt(ciphertext[nonceSize:], ciphertext[:nonceSize], aad)
	if err != nil {
		return nil, cryptoDomain.ErrCiphertextCorrupted
	}
	return plaintext, nil
}

func (g *Gateway) Ready(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}
