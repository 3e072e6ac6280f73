package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	sessionUseCase "github.com/allisson/pseudonymizer/internal/session/usecase"
)

// RunCleanExpiredSessions purges every expired session together with its mappings.
// With dryRun it only reports how many sessions would be purged.
func RunCleanExpiredSessions(
	ctx context.Context,
	sessionUseCase sessionUseCase.SessionUseCase,
	logger *slog.Logger,
	writer io.Writer,
	dryRun bool,
	format string,
) error {
	logger.Info("cleaning expired sessions", slog.Bool("dry_run", dryRun))

	var expired, deleted int64
	if dryRun {
		count, err := sessionUseCase.CountExpired(ctx)
		if err != nil {
			return fmt.Errorf("failed to count expired sessions: %w", err)
		}
		expired = count
	} else {
		result, err := sessionUseCase.ExpireNow(ctx)
		if err != nil {
			return fmt.Errorf("failed to clean expired sessions: %w", err)
		}
		expired = int64(result.Expired)
		deleted = int64(result.Deleted)
	}

	if format == formatJSON {
		result := map[string]any{
			"expired": expired,
			"dry_run": dryRun,
		}
		if !dryRun {
			result["deleted"] = deleted
		}
		if err := writeJSON(writer, result); err != nil {
			return err
		}
	} else if dryRun {
		_, _ = fmt.Fprintf(writer, "Dry-run mode: Would purge %d expired session(s)\n", expired)
	} else {
		_, _ = fmt.Fprintf(writer,
			"Successfully expired %d session(s) and purged %d session(s) with their mappings\n",
			expired,
			deleted,
		)
	}

	logger.Info("session cleanup completed",
		slog.Int64("expired", expired),
		slog.Int64("deleted", deleted),
		slog.Bool("dry_run", dryRun),
	)
	return nil
}
