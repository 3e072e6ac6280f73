package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/pseudonymizer/internal/audit/domain"
	auditService "github.com/allisson/pseudonymizer/internal/audit/service"
	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	"github.com/allisson/pseudonymizer/internal/database"
	apperrors "github.com/allisson/pseudonymizer/internal/errors"
)

const verifyPageSize = 500

type auditLogUseCase struct {
	txManager    database.TxManager
	auditLogRepo AuditLogRepository
	signer       auditService.Signer
	kekChain     *cryptoDomain.KekChain
}

func (a *auditLogUseCase) prepare(ctx context.Context, entry *auditDomain.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.Must(uuid.NewV7())
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	// both backends store microseconds
	entry.CreatedAt = entry.CreatedAt.Truncate(time.Microsecond)
	if entry.RequestID == "" {
		entry.RequestID = auditDomain.RequestIDFromContext(ctx)
	}

	if a.kekChain == nil {
		return nil
	}
	kek, ok := a.kekChain.Active()
	if !ok {
		return nil
	}

	signature, err := a.signer.Sign(kek.Key, entry)
	if err != nil {
		return apperrors.Wrap(err, "failed to sign audit log")
	}
	kekID := kek.ID
	entry.Signature = signature
	entry.KekID = &kekID
	return nil
}

func (a *auditLogUseCase) Record(ctx context.Context, entry *auditDomain.AuditLog) error {
	if err := a.prepare(ctx, entry); err != nil {
		return err
	}
	if err := a.auditLogRepo.Create(ctx, entry); err != nil {
		return apperrors.Wrap(err, "failed to create audit log")
	}
	return nil
}

func (a *auditLogUseCase) RecordBatch(ctx context.Context, entries []*auditDomain.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	return a.txManager.WithTx(ctx, func(ctx context.Context) error {
		for _, entry := range entries {
			if err := a.Record(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// List retrieves audit logs ordered by created_at descending. Both time boundaries are
// inclusive and nil means no filter.
func (a *auditLogUseCase) List(
	ctx context.Context,
	offset, limit int,
	createdAtFrom, createdAtTo *time.Time,
) ([]*auditDomain.AuditLog, error) {
	logs, err := a.auditLogRepo.List(ctx, offset, limit, createdAtFrom, createdAtTo)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit logs")
	}
	return logs, nil
}

func (a *auditLogUseCase) VerifyBatch(
	ctx context.Context,
	createdAtFrom, createdAtTo *time.Time,
) (*auditDomain.VerifyReport, error) {
	report := &auditDomain.VerifyReport{}

	for offset := 0; ; offset += verifyPageSize {
		logs, err := a.List(ctx, offset, verifyPageSize, createdAtFrom, createdAtTo)
		if err != nil {
			return nil, err
		}

		for _, log := range logs {
			report.Total++
			if !log.IsSigned() {
				report.Unsigned++
				continue
			}

			var kek *cryptoDomain.Kek
			ok := false
			if a.kekChain != nil {
				kek, ok = a.kekChain.Get(*log.KekID)
			}
			if !ok {
				return nil, apperrors.Wrapf(auditDomain.ErrSigningKekNotFound, "kek %s", *log.KekID)
			}

			if err := a.signer.Verify(kek.Key, log); err != nil {
				report.Invalid++
				report.InvalidIDs = append(report.InvalidIDs, log.ID)
				continue
			}
			report.Valid++
		}

		if len(logs) < verifyPageSize {
			return report, nil
		}
	}
}

func (a *auditLogUseCase) DeleteOlderThan(ctx context.Context, days int, dryRun bool) (int64, error) {
	if days < 0 {
		return 0, apperrors.Wrap(apperrors.ErrInvalidInput, "days must be zero or positive")
	}
	before := time.Now().UTC().AddDate(0, 0, -days)

	if dryRun {
		return a.auditLogRepo.CountOlderThan(ctx, before)
	}
	return a.auditLogRepo.DeleteOlderThan(ctx, before)
}

// NewAuditLogUseCase creates an AuditLogUseCase. Entries are signed with the active KEK of
// kekChain; a nil or empty chain stores them unsigned.
func NewAuditLogUseCase(
	txManager database.TxManager,
	auditLogRepo AuditLogRepository,
	signer auditService.Signer,
	kekChain *cryptoDomain.KekChain,
) AuditLogUseCase {
	return &auditLogUseCase{
		txManager:    txManager,
		auditLogRepo: auditLogRepo,
		signer:       signer,
		kekChain:     kekChain,
	}
}
