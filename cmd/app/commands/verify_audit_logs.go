package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	auditDomain "github.com/allisson/pseudonymizer/internal/audit/domain"
	auditUseCase "github.com/allisson/pseudonymizer/internal/audit/usecase"
)

// RunVerifyAuditLogs verifies the HMAC-SHA256 signature of every audit log in a time range.
// Either bound may be empty to leave that side of the range open. Returns an error when any
// signature fails so the process exits non-zero.
func RunVerifyAuditLogs(
	ctx context.Context,
	auditLogUseCase auditUseCase.AuditLogUseCase,
	logger *slog.Logger,
	writer io.Writer,
	startDate, endDate string,
	format string,
) error {
	start, err := parseOptionalDate(startDate)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}

	end, err := parseOptionalDate(endDate)
	if err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}

	if start != nil && end != nil && !end.After(*start) {
		return fmt.Errorf("end date must be after start date")
	}

	logger.Info("verifying audit logs",
		slog.String("start_date", startDate),
		slog.String("end_date", endDate),
	)

	report, err := auditLogUseCase.VerifyBatch(ctx, start, end)
	if err != nil {
		return fmt.Errorf("failed to verify audit logs: %w", err)
	}

	if format == formatJSON {
		if err := outputVerifyJSON(writer, report); err != nil {
			return fmt.Errorf("failed to output JSON: %w", err)
		}
	} else {
		outputVerifyText(writer, report, startDate, endDate)
	}

	logger.Info("verification completed",
		slog.Int("total_checked", report.Total),
		slog.Int("valid", report.Valid),
		slog.Int("invalid", report.Invalid),
		slog.Int("unsigned", report.Unsigned),
	)

	if report.Invalid > 0 {
		return fmt.Errorf("integrity check failed: %d invalid signature(s)", report.Invalid)
	}

	return nil
}

// parseOptionalDate parses "YYYY-MM-DD" or "YYYY-MM-DD HH:MM:SS" as UTC. Empty input yields nil.
func parseOptionalDate(dateStr string) (*time.Time, error) {
	if dateStr == "" {
		return nil, nil
	}

	t, err := time.Parse(time.DateTime, dateStr)
	if err == nil {
		return &t, nil
	}

	t, err = time.Parse(time.DateOnly, dateStr)
	if err != nil {
		return nil, fmt.Errorf(
			"invalid date format (expected YYYY-MM-DD or YYYY-MM-DD HH:MM:SS): %s",
			dateStr,
		)
	}

	return &t, nil
}

func displayBound(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func outputVerifyText(writer io.Writer, report *auditDomain.VerifyReport, startDate, endDate string) {
	_, _ = fmt.Fprintf(writer, "Audit Log Integrity Verification\n")
	_, _ = fmt.Fprintf(writer, "=================================\n\n")
	_, _ = fmt.Fprintf(writer,
		"Time Range: %s to %s\n\n",
		displayBound(startDate, "beginning"),
		displayBound(endDate, "now"),
	)

	_, _ = fmt.Fprintf(writer, "Total Checked:  %d\n", report.Total)
	_, _ = fmt.Fprintf(writer, "Unsigned:       %d\n", report.Unsigned)
	_, _ = fmt.Fprintf(writer, "Valid:          %d\n", report.Valid)
	_, _ = fmt.Fprintf(writer, "Invalid:        %d\n\n", report.Invalid)

	switch {
	case report.Invalid > 0:
		_, _ = fmt.Fprintf(writer, "WARNING: %d log(s) failed integrity check!\n\n", report.Invalid)
		_, _ = fmt.Fprintf(writer, "Invalid Log IDs:\n")
		for _, id := range report.InvalidIDs {
			_, _ = fmt.Fprintf(writer, "  - %s\n", id)
		}
		_, _ = fmt.Fprintf(writer, "\nStatus: FAILED\n")
	case report.Total == 0:
		_, _ = fmt.Fprintf(writer, "Status: No logs found in specified time range\n")
	default:
		_, _ = fmt.Fprintf(writer, "Status: PASSED\n")
	}
}

func outputVerifyJSON(writer io.Writer, report *auditDomain.VerifyReport) error {
	invalidLogs := make([]string, 0, len(report.InvalidIDs))
	for _, id := range report.InvalidIDs {
		invalidLogs = append(invalidLogs, id.String())
	}
	return writeJSON(writer, map[string]any{
		"total_checked":  report.Total,
		"unsigned_count": report.Unsigned,
		"valid_count":    report.Valid,
		"invalid_count":  report.Invalid,
		"invalid_logs":   invalidLogs,
		"passed":         report.Invalid == 0,
	})
}
