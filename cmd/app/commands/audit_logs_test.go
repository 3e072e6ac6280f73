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

	auditDomain "github.com/allisson/pseudonymizer/internal/audit/domain"
	auditMocks "github.com/allisson/pseudonymizer/internal/audit/usecase/mocks"
)

func TestRunCleanAuditLogs(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("dry-run-text", func(t *testing.T) {
		mockUseCase := &auditMocks.MockAuditLogUseCase{}
		mockUseCase.On("DeleteOlderThan", ctx, 90, true).Return(int64(12), nil).Once()

		var out bytes.Buffer
		err := RunCleanAuditLogs(ctx, mockUseCase, logger, &out, 90, true, "text")
		require.NoError(t, err)
		require.Contains(t, out.String(), "Would delete 12 audit log(s) older than 90 day(s)")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("delete-json", func(t *testing.T) {
		mockUseCase := &auditMocks.MockAuditLogUseCase{}
		mockUseCase.On("DeleteOlderThan", ctx, 30, false).Return(int64(5), nil).Once()

		var out bytes.Buffer
		err := RunCleanAuditLogs(ctx, mockUseCase, logger, &out, 30, false, "json")
		require.NoError(t, err)

		var result map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.Equal(t, float64(5), result["count"])
		require.Equal(t, float64(30), result["days"])
		require.Equal(t, false, result["dry_run"])
	})

	t.Run("negative-days", func(t *testing.T) {
		mockUseCase := &auditMocks.MockAuditLogUseCase{}

		err := RunCleanAuditLogs(ctx, mockUseCase, logger, io.Discard, -1, false, "text")
		require.Error(t, err)
		mockUseCase.AssertNotCalled(t, "DeleteOlderThan", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("use-case-error", func(t *testing.T) {
		mockUseCase := &auditMocks.MockAuditLogUseCase{}
		mockUseCase.On("DeleteOlderThan", ctx, 30, false).Return(int64(0), errors.New("db down")).Once()

		err := RunCleanAuditLogs(ctx, mockUseCase, logger, io.Discard, 30, false, "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to delete audit logs")
	})
}

func TestRunVerifyAuditLogs(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	passed := &auditDomain.VerifyReport{Total: 10, Valid: 9, Unsigned: 1}

	t.Run("success-text", func(t *testing.T) {
		mockUseCase := &auditMocks.MockAuditLogUseCase{}
		mockUseCase.On("VerifyBatch", ctx, mock.AnythingOfType("*time.Time"), mock.AnythingOfType("*time.Time")).
			Return(passed, nil).
			Once()

		var out bytes.Buffer
		err := RunVerifyAuditLogs(ctx, mockUseCase, logger, &out, "2026-01-01", "2026-01-02", "text")
		require.NoError(t, err)
		require.Contains(t, out.String(), "Audit Log Integrity Verification")
		require.Contains(t, out.String(), "Status: PASSED")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("parses-bounds", func(t *testing.T) {
		mockUseCase := &auditMocks.MockAuditLogUseCase{}
		wantStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		wantEnd := time.Date(2026, 1, 2, 12, 30, 0, 0, time.UTC)
		mockUseCase.On("VerifyBatch", ctx,
			mock.MatchedBy(func(from *time.Time) bool { return from != nil && from.Equal(wantStart) }),
			mock.MatchedBy(func(to *time.Time) bool { return to != nil && to.Equal(wantEnd) }),
		).Return(passed, nil).Once()

		err := RunVerifyAuditLogs(ctx, mockUseCase, logger, io.Discard, "2026-01-01", "2026-01-02 12:30:00", "text")
		require.NoError(t, err)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("open-range", func(t *testing.T) {
		mockUseCase := &auditMocks.MockAuditLogUseCase{}
		var noBound *time.Time
		mockUseCase.On("VerifyBatch", ctx, noBound, noBound).
			Return(&auditDomain.VerifyReport{}, nil).
			Once()

		var out bytes.Buffer
		err := RunVerifyAuditLogs(ctx, mockUseCase, logger, &out, "", "", "text")
		require.NoError(t, err)
		require.Contains(t, out.String(), "beginning to now")
		require.Contains(t, out.String(), "No logs found")
	})

	t.Run("success-json", func(t *testing.T) {
		mockUseCase := &auditMocks.MockAuditLogUseCase{}
		mockUseCase.On("VerifyBatch", ctx, mock.Anything, mock.Anything).Return(passed, nil).Once()

		var out bytes.Buffer
		err := RunVerifyAuditLogs(ctx, mockUseCase, logger, &out, "2026-01-01", "2026-01-02", "json")
		require.NoError(t, err)

		var result map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.Equal(t, float64(10), result["total_checked"])
		require.Equal(t, true, result["passed"])
	})

	t.Run("invalid-signatures", func(t *testing.T) {
		badID := uuid.Must(uuid.NewV7())
		mockUseCase := &auditMocks.MockAuditLogUseCase{}
		mockUseCase.On("VerifyBatch", ctx, mock.Anything, mock.Anything).
			Return(&auditDomain.VerifyReport{Total: 2, Valid: 1, Invalid: 1, InvalidIDs: []uuid.UUID{badID}}, nil).
			Once()

		var out bytes.Buffer
		err := RunVerifyAuditLogs(ctx, mockUseCase, logger, &out, "", "", "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "integrity check failed")
		require.Contains(t, out.String(), badID.String())
		require.Contains(t, out.String(), "Status: FAILED")
	})

	t.Run("invalid-dates", func(t *testing.T) {
		err := RunVerifyAuditLogs(ctx, nil, logger, nil, "yesterday", "2026-01-02", "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid start date")

		err = RunVerifyAuditLogs(ctx, nil, logger, nil, "2026-01-01", "tomorrow", "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid end date")
	})

	t.Run("end-before-start", func(t *testing.T) {
		err := RunVerifyAuditLogs(ctx, nil, logger, nil, "2026-01-02", "2026-01-01", "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "end date must be after start date")
	})

	t.Run("use-case-error", func(t *testing.T) {
		mockUseCase := &auditMocks.MockAuditLogUseCase{}
		mockUseCase.On("VerifyBatch", ctx, mock.Anything, mock.Anything).
			Return(nil, errors.New("kek missing")).
			Once()

		err := RunVerifyAuditLogs(ctx, mockUseCase, logger, io.Discard, "", "", "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to verify audit logs")
	})
}
