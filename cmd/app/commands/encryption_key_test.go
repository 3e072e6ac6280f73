package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	cryptoMocks "github.com/allisson/pseudonymizer/internal/crypto/usecase/mocks"
)

func TestRunCreateEncryptionKey(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("success", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockEncryptionKeyUseCase{}
		mockUseCase.On("Create", ctx, cryptoDomain.AESGCM).
			Return(&cryptoDomain.EncryptionKey{Name: "pseudonym-encryption-key", Version: 1}, nil).
			Once()

		require.NoError(t, RunCreateEncryptionKey(ctx, mockUseCase, logger, "aes-gcm"))
		mockUseCase.AssertExpectations(t)
	})

	t.Run("invalid-algorithm", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockEncryptionKeyUseCase{}

		err := RunCreateEncryptionKey(ctx, mockUseCase, logger, "blowfish")
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid algorithm")
		mockUseCase.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("already-exists", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockEncryptionKeyUseCase{}
		mockUseCase.On("Create", ctx, cryptoDomain.AESGCM).
			Return(nil, errors.New("encryption key already exists")).
			Once()

		err := RunCreateEncryptionKey(ctx, mockUseCase, logger, "aes-gcm")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to create encryption key")
	})
}

func TestRunRotateEncryptionKey(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("success", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockEncryptionKeyUseCase{}
		mockUseCase.On("Rotate", ctx, cryptoDomain.ChaCha20).
			Return(&cryptoDomain.EncryptionKey{Name: "pseudonym-encryption-key", Version: 2}, nil).
			Once()

		require.NoError(t, RunRotateEncryptionKey(ctx, mockUseCase, logger, "chacha20-poly1305"))
		mockUseCase.AssertExpectations(t)
	})

	t.Run("error", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockEncryptionKeyUseCase{}
		mockUseCase.On("Rotate", ctx, cryptoDomain.AESGCM).
			Return(nil, errors.New("not found")).
			Once()

		err := RunRotateEncryptionKey(ctx, mockUseCase, logger, "aes-gcm")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to rotate encryption key")
	})
}

func TestRunDestroyEncryptionKeyVersion(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("success", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockEncryptionKeyUseCase{}
		mockUseCase.On("DestroyVersion", ctx, uint(1)).Return(nil).Once()

		require.NoError(t, RunDestroyEncryptionKeyVersion(ctx, mockUseCase, logger, 1, true))
		mockUseCase.AssertExpectations(t)
	})

	t.Run("requires-confirm", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockEncryptionKeyUseCase{}

		err := RunDestroyEncryptionKeyVersion(ctx, mockUseCase, logger, 1, false)
		require.Error(t, err)
		require.Contains(t, err.Error(), "--confirm")
		mockUseCase.AssertNotCalled(t, "DestroyVersion", mock.Anything, mock.Anything)
	})

	t.Run("invalid-version", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockEncryptionKeyUseCase{}

		err := RunDestroyEncryptionKeyVersion(ctx, mockUseCase, logger, 0, true)
		require.Error(t, err)
		require.Contains(t, err.Error(), "positive")
	})

	t.Run("active-version", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockEncryptionKeyUseCase{}
		mockUseCase.On("DestroyVersion", ctx, uint(2)).
			Return(errors.New("cannot destroy the active version")).
			Once()

		err := RunDestroyEncryptionKeyVersion(ctx, mockUseCase, logger, 2, true)
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to destroy encryption key version")
	})
}

func TestRunRewrapDeks(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("success", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockEncryptionKeyUseCase{}
		mockUseCase.On("RewrapDeks", ctx).Return(3, nil).Once()

		require.NoError(t, RunRewrapDeks(ctx, mockUseCase, logger))
		mockUseCase.AssertExpectations(t)
	})

	t.Run("error", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockEncryptionKeyUseCase{}
		mockUseCase.On("RewrapDeks", ctx).Return(0, errors.New("kek missing")).Once()

		err := RunRewrapDeks(ctx, mockUseCase, logger)
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to rewrap DEKs")
	})
}

func TestRunListEncryptionKeys(t *testing.T) {
	ctx := context.Background()
	createdAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	destroyedAt := createdAt.Add(time.Hour)
	keys := []*cryptoDomain.EncryptionKey{
		{
			ID:          uuid.Must(uuid.NewV7()),
			Name:        "pseudonym-encryption-key",
			Version:     1,
			CreatedAt:   createdAt,
			DestroyedAt: &destroyedAt,
		},
		{
			ID:        uuid.Must(uuid.NewV7()),
			Name:      "pseudonym-encryption-key",
			Version:   2,
			CreatedAt: createdAt,
		},
	}

	t.Run("text", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockEncryptionKeyUseCase{}
		mockUseCase.On("List", ctx).Return(keys, nil).Once()
		var out bytes.Buffer

		require.NoError(t, RunListEncryptionKeys(ctx, mockUseCase, &out, "text"))
		require.Contains(t, out.String(), "pseudonym-encryption-key v1  destroyed")
		require.Contains(t, out.String(), "pseudonym-encryption-key v2  live")
	})

	t.Run("json", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockEncryptionKeyUseCase{}
		mockUseCase.On("List", ctx).Return(keys, nil).Once()
		var out bytes.Buffer

		require.NoError(t, RunListEncryptionKeys(ctx, mockUseCase, &out, "json"))

		var result []map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.Len(t, result, 2)
		require.Equal(t, "destroyed", result[0]["status"])
		require.Contains(t, result[0], "destroyed_at")
		require.Equal(t, "live", result[1]["status"])
		require.NotContains(t, result[1], "destroyed_at")
	})

	t.Run("empty", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockEncryptionKeyUseCase{}
		mockUseCase.On("List", ctx).Return([]*cryptoDomain.EncryptionKey{}, nil).Once()
		var out bytes.Buffer

		require.NoError(t, RunListEncryptionKeys(ctx, mockUseCase, &out, "text"))
		require.Contains(t, out.String(), "No encryption key versions found")
	})

	t.Run("error", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockEncryptionKeyUseCase{}
		mockUseCase.On("List", ctx).Return(nil, errors.New("db down")).Once()

		err := RunListEncryptionKeys(ctx, mockUseCase, io.Discard, "text")
		require.Error(t, err)
	})
}
