package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/pseudonymizer/internal/audit/domain"
	"github.com/allisson/pseudonymizer/internal/database"
	apperrors "github.com/allisson/pseudonymizer/internal/errors"
)

// MySQLAuditLogRepository implements audit log persistence for MySQL. UUIDs are BINARY(16).
type MySQLAuditLogRepository struct {
	db *sql.DB
}

func marshalOptionalUUID(id *uuid.UUID) ([]byte, error) {
	if id == nil {
		return nil, nil
	}
	return id.MarshalBinary()
}

func unmarshalOptionalUUID(data []byte) (*uuid.UUID, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var id uuid.UUID
	if err := id.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &id, nil
}

func (m *MySQLAuditLogRepository) Create(ctx context.Context, log *auditDomain.AuditLog) error {
	querier := database.GetTx(ctx, m.db)

	metadataJSON, err := marshalMetadata(log.Metadata)
	if err != nil {
		return err
	}

	id, err := log.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit log id")
	}
	sessionID, err := marshalOptionalUUID(log.SessionID)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit log session_id")
	}
	kekID, err := marshalOptionalUUID(log.KekID)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit log kek_id")
	}

	query := `INSERT INTO audit_logs (` + auditLogColumns + `)
			  VALUES (?, ?, ?, (SELECT id FROM sessions WHERE id = ?), ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		string(log.Operation),
		log.CallerID,
		sessionID,
		nullString(log.Pseudonym),
		nullString(log.ValueType),
		log.Success,
		nullString(log.ErrorDetail),
		nullString(log.RequestID),
		metadataJSON,
		log.CreatedAt,
		log.Signature,
		kekID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit log")
	}
	return nil
}

func (m *MySQLAuditLogRepository) List(
	ctx context.Context,
	offset, limit int,
	createdAtFrom, createdAtTo *time.Time,
) ([]*auditDomain.AuditLog, error) {
	querier := database.GetTx(ctx, m.db)

	var conditions []string
	var args []any

	if createdAtFrom != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, *createdAtFrom)
	}
	if createdAtTo != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, *createdAtTo)
	}

	query := `SELECT ` + auditLogColumns + ` FROM audit_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit logs")
	}
	defer func() {
		_ = rows.Close()
	}()

	logs := make([]*auditDomain.AuditLog, 0)
	for rows.Next() {
		var log auditDomain.AuditLog
		var idBinary, sessionIDBinary, kekIDBinary []byte
		var operation string
		var pseudonym, valueType, errorDetail, requestID sql.NullString
		var metadataJSON []byte

		err := rows.Scan(
			&idBinary,
			&operation,
			&log.CallerID,
			&sessionIDBinary,
			&pseudonym,
			&valueType,
			&log.Success,
			&errorDetail,
			&requestID,
			&metadataJSON,
			&log.CreatedAt,
			&log.Signature,
			&kekIDBinary,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit log")
		}

		if err := log.ID.UnmarshalBinary(idBinary); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit log id")
		}
		if log.SessionID, err = unmarshalOptionalUUID(sessionIDBinary); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit log session_id")
		}
		if log.KekID, err = unmarshalOptionalUUID(kekIDBinary); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit log kek_id")
		}

		log.Operation = auditDomain.Operation(operation)
		log.Pseudonym = pseudonym.String
		log.ValueType = valueType.String
		log.ErrorDetail = errorDetail.String
		log.RequestID = requestID.String
		log.CreatedAt = log.CreatedAt.UTC()
		if log.Metadata, err = unmarshalMetadata(metadataJSON); err != nil {
			return nil, err
		}

		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate audit logs")
	}
	return logs, nil
}

func (m *MySQLAuditLogRepository) CountOlderThan(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	var count int64
	err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs WHERE created_at < ?`, before).
		Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count audit logs")
	}
	return count, nil
}

func (m *MySQLAuditLogRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < ?`, before)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete audit logs")
	}
	return result.RowsAffected()
}

// NewMySQLAuditLogRepository creates a new MySQL audit log repository.
func NewMySQLAuditLogRepository(db *sql.DB) *MySQLAuditLogRepository {
	return &MySQLAuditLogRepository{db: db}
}
