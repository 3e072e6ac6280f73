// Package mocks provides mock implementations of the key hierarchy use cases for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
)

// MockKekUseCase is a mock implementation of KekUseCase.
type MockKekUseCase struct {
	mock.Mock
}

func (m *MockKekUseCase) Create(
	ctx context.Context,
	masterKeyChain *cryptoDomain.MasterKeyChain,
	alg cryptoDomain.Algorithm,
) error {
	return m.Called(ctx, masterKeyChain, alg).Error(0)
}

func (m *MockKekUseCase) Rotate(
	ctx context.Context,
	masterKeyChain *cryptoDomain.MasterKeyChain,
	alg cryptoDomain.Algorithm,
) error {
	return m.Called(ctx, masterKeyChain, alg).Error(0)
}

func (m *MockKekUseCase) Unwrap(
	ctx context.Context,
	masterKeyChain *cryptoDomain.MasterKeyChain,
) (*cryptoDomain.KekChain, error) {
	args := m.Called(ctx, masterKeyChain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.KekChain), args.Error(1)
}

func (m *MockKekUseCase) Rewrap(ctx context.Context, masterKeyChain *cryptoDomain.MasterKeyChain) (int, error) {
	args := m.Called(ctx, masterKeyChain)
	return args.Int(0), args.Error(1)
}

// MockEncryptionKeyUseCase is a mock implementation of EncryptionKeyUseCase.
type MockEncryptionKeyUseCase struct {
	mock.Mock
}

func (m *MockEncryptionKeyUseCase) Encrypt(ctx context.Context, plaintext, aad []byte) (*cryptoDomain.Sealed, error) {
	args := m.Called(ctx, plaintext, aad)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.Sealed), args.Error(1)
}

func (m *MockEncryptionKeyUseCase) Decrypt(
	ctx context.Context,
	ciphertext []byte,
	keyVersion uint,
	aad []byte,
) ([]byte, error) {
	args := m.Called(ctx, ciphertext, keyVersion, aad)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockEncryptionKeyUseCase) Ready(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockEncryptionKeyUseCase) Create(
	ctx context.Context,
	alg cryptoDomain.Algorithm,
) (*cryptoDomain.EncryptionKey, error) {
	args := m.Called(ctx, alg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.EncryptionKey), args.Error(1)
}

func (m *MockEncryptionKeyUseCase) Rotate(
	ctx context.Context,
	alg cryptoDomain.Algorithm,
) (*cryptoDomain.EncryptionKey, error) {
	args := m.Called(ctx, alg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.EncryptionKey), args.Error(1)
}

func (m *MockEncryptionKeyUseCase) DestroyVersion(ctx context.Context, version uint) error {
	return m.Called(ctx, version).Error(0)
}

func (m *MockEncryptionKeyUseCase) List(ctx context.Context) ([]*cryptoDomain.EncryptionKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*cryptoDomain.EncryptionKey), args.Error(1)
}

func (m *MockEncryptionKeyUseCase) RewrapDeks(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
