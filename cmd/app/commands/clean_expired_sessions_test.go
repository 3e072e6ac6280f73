package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	sessionDomain "github.com/allisson/pseudonymizer/internal/session/domain"
	sessionMocks "github.com/allisson/pseudonymizer/internal/session/usecase/mocks"
)

func TestRunCleanExpiredSessions(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("dry-run", func(t *testing.T) {
		mockUseCase := &sessionMocks.MockSessionUseCase{}
		mockUseCase.On("CountExpired", ctx).Return(int64(4), nil).Once()

		var out bytes.Buffer
		err := RunCleanExpiredSessions(ctx, mockUseCase, logger, &out, true, "text")
		require.NoError(t, err)
		require.Contains(t, out.String(), "Would purge 4 expired session(s)")
		mockUseCase.AssertNotCalled(t, "ExpireNow", mock.Anything)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("purge-text", func(t *testing.T) {
		mockUseCase := &sessionMocks.MockSessionUseCase{}
		mockUseCase.On("ExpireNow", ctx).
			Return(&sessionDomain.CleanupResult{Expired: 3, Deleted: 3}, nil).
			Once()

		var out bytes.Buffer
		err := RunCleanExpiredSessions(ctx, mockUseCase, logger, &out, false, "text")
		require.NoError(t, err)
		require.Contains(t, out.String(), "Successfully expired 3 session(s) and purged 3 session(s)")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("purge-json", func(t *testing.T) {
		mockUseCase := &sessionMocks.MockSessionUseCase{}
		mockUseCase.On("ExpireNow", ctx).
			Return(&sessionDomain.CleanupResult{Expired: 2, Deleted: 1}, nil).
			Once()

		var out bytes.Buffer
		err := RunCleanExpiredSessions(ctx, mockUseCase, logger, &out, false, "json")
		require.NoError(t, err)

		var result map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.Equal(t, float64(2), result["expired"])
		require.Equal(t, float64(1), result["deleted"])
		require.Equal(t, false, result["dry_run"])
	})

	t.Run("dry-run-json-omits-deleted", func(t *testing.T) {
		mockUseCase := &sessionMocks.MockSessionUseCase{}
		mockUseCase.On("CountExpired", ctx).Return(int64(0), nil).Once()

		var out bytes.Buffer
		err := RunCleanExpiredSessions(ctx, mockUseCase, logger, &out, true, "json")
		require.NoError(t, err)

		var result map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.NotContains(t, result, "deleted")
		require.Equal(t, true, result["dry_run"])
	})

	t.Run("count-error", func(t *testing.T) {
		mockUseCase := &sessionMocks.MockSessionUseCase{}
		mockUseCase.On("CountExpired", ctx).Return(int64(0), errors.New("db down")).Once()

		err := RunCleanExpiredSessions(ctx, mockUseCase, logger, io.Discard, true, "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to count expired sessions")
	})

	t.Run("expire-error", func(t *testing.T) {
		mockUseCase := &sessionMocks.MockSessionUseCase{}
		mockUseCase.On("ExpireNow", ctx).Return(nil, errors.New("db down")).Once()

		err := RunCleanExpiredSessions(ctx, mockUseCase, logger, io.Discard, false, "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to clean expired sessions")
	})
}
