// Package usecase records, lists, verifies and prunes audit entries.
package usecase

import (
	"context"
	"time"

	auditDomain "github.com/allisson/pseudonymizer/internal/audit/domain"
)

// AuditLogRepository persists audit entries.
type AuditLogRepository interface {
	Create(ctx context.Context, log *auditDomain.AuditLog) error
	List(
		ctx context.Context,
		offset, limit int,
		createdAtFrom, createdAtTo *time.Time,
	) ([]*auditDomain.AuditLog, error)
	CountOlderThan(ctx context.Context, before time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// AuditLogUseCase is the Audit Log.
type AuditLogUseCase interface {
	// Record assigns an ID and timestamp, signs and stores entry.
	Record(ctx context.Context, entry *auditDomain.AuditLog) error

	// RecordBatch stores every entry in one transaction.
	RecordBatch(ctx context.Context, entries []*auditDomain.AuditLog) error

	List(
		ctx context.Context,
		offset, limit int,
		createdAtFrom, createdAtTo *time.Time,
	) ([]*auditDomain.AuditLog, error)

	// VerifyBatch checks the signature of every entry in the time range.
	VerifyBatch(ctx context.Context, createdAtFrom, createdAtTo *time.Time) (*auditDomain.VerifyReport, error)

	// DeleteOlderThan removes entries older than days. With dryRun it only counts them.
	DeleteOlderThan(ctx context.Context, days int, dryRun bool) (int64, error)
}
