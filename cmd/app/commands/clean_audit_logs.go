package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	auditUseCase "github.com/allisson/pseudonymizer/internal/audit/usecase"
)

type auditCleanupReport struct {
	Count  int64 `json:"count"`
	Days   int   `json:"days"`
	DryRun bool  `json:"dry_run"`
}

func (r auditCleanupReport) text() string {
	action := "Successfully deleted"
	if r.DryRun {
		action = "Dry-run mode: Would delete"
	}
	return fmt.Sprintf("%s %d audit log(s) older than %d day(s)", action, r.Count, r.Days)
}

// RunCleanAuditLogs deletes audit log entries older than days. With dryRun it only counts them.
func RunCleanAuditLogs(
	ctx context.Context,
	auditLogUseCase auditUseCase.AuditLogUseCase,
	logger *slog.Logger,
	writer io.Writer,
	days int,
	dryRun bool,
	format string,
) error {
	if days < 0 {
		return fmt.Errorf("days must be a positive number, got: %d", days)
	}

	count, err := auditLogUseCase.DeleteOlderThan(ctx, days, dryRun)
	if err != nil {
		return fmt.Errorf("failed to delete audit logs: %w", err)
	}
	report := auditCleanupReport{Count: count, Days: days, DryRun: dryRun}

	logger.Info("audit log cleanup finished",
		slog.Int64("count", report.Count),
		slog.Int("days", report.Days),
		slog.Bool("dry_run", report.DryRun),
	)

	if format == formatJSON {
		return writeJSON(writer, report)
	}
	_, err = fmt.Fprintln(writer, report.text())
	return err
}
