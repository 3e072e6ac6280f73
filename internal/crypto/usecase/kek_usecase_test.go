package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	cryptoService "github.com/allisson/pseudonymizer/internal/crypto/service"
)

func newMasterKey(t *testing.T, id string) *cryptoDomain.MasterKey {
	t.Helper()
	key := make([]byte, cryptoDomain.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return &cryptoDomain.MasterKey{ID: id, Key: key}
}

func newKeyManager() cryptoService.KeyManager {
	return cryptoService.NewKeyManager(cryptoService.NewAEADManager())
}

func TestKekUseCase_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_StoresWrappedKek", func(t *testing.T) {
		repo := newFakeKekRepository()
		uc := NewKekUseCase(fakeTxManager{}, repo, newKeyManager())
		chain := cryptoDomain.NewMasterKeyChain("mk1", newMasterKey(t, "mk1"))

		require.NoError(t, uc.Create(ctx, chain, cryptoDomain.AESGCM))

		keks, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, keks, 1)
		assert.Equal(t, "mk1", keks[0].MasterKeyID)
		assert.Equal(t, uint(1), keks[0].Version)
		assert.Nil(t, keks[0].Key)
		assert.NotEmpty(t, keks[0].EncryptedKey)
	})

	t.Run("Error_AlreadyCreated", func(t *testing.T) {
		repo := newFakeKekRepository()
		uc := NewKekUseCase(fakeTxManager{}, repo, newKeyManager())
		chain := cryptoDomain.NewMasterKeyChain("mk1", newMasterKey(t, "mk1"))
		require.NoError(t, uc.Create(ctx, chain, cryptoDomain.AESGCM))

		err := uc.Create(ctx, chain, cryptoDomain.AESGCM)

		assert.ErrorIs(t, err, cryptoDomain.ErrKekAlreadyExists)
		keks, _ := repo.List(ctx)
		assert.Len(t, keks, 1)
	})

	t.Run("Error_ActiveMasterKeyMissing", func(t *testing.T) {
		uc := NewKekUseCase(fakeTxManager{}, newFakeKekRepository(), newKeyManager())
		chain := cryptoDomain.NewMasterKeyChain("missing", newMasterKey(t, "mk1"))

		err := uc.Create(ctx, chain, cryptoDomain.AESGCM)
		assert.ErrorIs(t, err, cryptoDomain.ErrMasterKeyNotFound)
	})
}

func TestKekUseCase_RotateAndUnwrap(t *testing.T) {
	ctx := context.Background()
	repo := newFakeKekRepository()
	uc := NewKekUseCase(fakeTxManager{}, repo, newKeyManager())
	chain := cryptoDomain.NewMasterKeyChain("mk1", newMasterKey(t, "mk1"))

	require.NoError(t, uc.Create(ctx, chain, cryptoDomain.AESGCM))
	require.NoError(t, uc.Rotate(ctx, chain, cryptoDomain.ChaCha20))

	keks, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, keks, 2)
	assert.Equal(t, uint(2), keks[0].Version)

	kekChain, err := uc.Unwrap(ctx, chain)
	require.NoError(t, err)
	assert.Equal(t, 2, kekChain.Len())
	assert.Equal(t, keks[0].ID, kekChain.ActiveKekID())

	active, ok := kekChain.Get(kekChain.ActiveKekID())
	require.True(t, ok)
	assert.Len(t, active.Key, cryptoDomain.KeySize)
}

func TestKekUseCase_Unwrap(t *testing.T) {
	ctx := context.Background()

	t.Run("Error_UnknownMasterKey", func(t *testing.T) {
		repo := newFakeKekRepository()
		uc := NewKekUseCase(fakeTxManager{}, repo, newKeyManager())
		require.NoError(t, uc.Create(ctx, cryptoDomain.NewMasterKeyChain("mk1", newMasterKey(t, "mk1")), cryptoDomain.AESGCM))

		_, err := uc.Unwrap(ctx, cryptoDomain.NewMasterKeyChain("mk2", newMasterKey(t, "mk2")))
		assert.ErrorIs(t, err, cryptoDomain.ErrMasterKeyNotFound)
	})

	t.Run("Error_RepositoryFailure", func(t *testing.T) {
		repo := newFakeKekRepository()
		repo.err = errors.New("connection refused")
		uc := NewKekUseCase(fakeTxManager{}, repo, newKeyManager())

		_, err := uc.Unwrap(ctx, cryptoDomain.NewMasterKeyChain("mk1", newMasterKey(t, "mk1")))
		assert.Error(t, err)
	})
}

func TestKekUseCase_Rewrap(t *testing.T) {
	ctx := context.Background()
	repo := newFakeKekRepository()
	uc := NewKekUseCase(fakeTxManager{}, repo, newKeyManager())

	mk1 := newMasterKey(t, "mk1")
	mk2 := newMasterKey(t, "mk2")
	require.NoError(t, uc.Create(ctx, cryptoDomain.NewMasterKeyChain("mk1", mk1), cryptoDomain.AESGCM))

	before, err := uc.Unwrap(ctx, cryptoDomain.NewMasterKeyChain("mk1", mk1))
	require.NoError(t, err)
	original, _ := before.Get(before.ActiveKekID())

	rotated := cryptoDomain.NewMasterKeyChain("mk2", mk1, mk2)
	n, err := uc.Rewrap(ctx, rotated)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// a second pass has nothing left to do
	n, err = uc.Rewrap(ctx, rotated)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	after, err := uc.Unwrap(ctx, cryptoDomain.NewMasterKeyChain("mk2", mk2))
	require.NoError(t, err)
	rewrapped, ok := after.Get(original.ID)
	require.True(t, ok)
	assert.Equal(t, "mk2", rewrapped.MasterKeyID)
	assert.Equal(t, original.Key, rewrapped.Key)
}
