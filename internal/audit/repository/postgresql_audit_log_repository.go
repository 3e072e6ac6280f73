// Package repository persists audit entries in PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/pseudonymizer/internal/audit/domain"
	"github.com/allisson/pseudonymizer/internal/database"
	apperrors "github.com/allisson/pseudonymizer/internal/errors"
)

const auditLogColumns = `id, operation, caller_id, session_id, pseudonym, value_type, success,
	error_detail, request_id, metadata, created_at, signature, kek_id`

// PostgreSQLAuditLogRepository implements audit log persistence for PostgreSQL.
type PostgreSQLAuditLogRepository struct {
	db *sql.DB
}

// Create inserts an entry. session_id is resolved against the sessions table so an entry about
// an unknown or already purged session is stored with a NULL reference.
func (p *PostgreSQLAuditLogRepository) Create(ctx context.Context, log *auditDomain.AuditLog) error {
	querier := database.GetTx(ctx, p.db)

	metadataJSON, err := marshalMetadata(log.Metadata)
	if err != nil {
		return err
	}

	var sessionID uuid.NullUUID
	if log.SessionID != nil {
		sessionID = uuid.NullUUID{UUID: *log.SessionID, Valid: true}
	}
	var kekID uuid.NullUUID
	if log.KekID != nil {
		kekID = uuid.NullUUID{UUID: *log.KekID, Valid: true}
	}

	query := `INSERT INTO audit_logs (` + auditLogColumns + `)
			  VALUES ($1, $2, $3, (SELECT id FROM sessions WHERE id = $4), $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = querier.ExecContext(
		ctx,
		query,
		log.ID,
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

// List retrieves audit logs ordered by created_at descending with pagination and optional
// inclusive time filters.
func (p *PostgreSQLAuditLogRepository) List(
	ctx context.Context,
	offset, limit int,
	createdAtFrom, createdAtTo *time.Time,
) ([]*auditDomain.AuditLog, error) {
	querier := database.GetTx(ctx, p.db)

	var conditions []string
	var args []any

	if createdAtFrom != nil {
		args = append(args, *createdAtFrom)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if createdAtTo != nil {
		args = append(args, *createdAtTo)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := `SELECT ` + auditLogColumns + ` FROM audit_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
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
		var operation string
		var sessionID, kekID uuid.NullUUID
		var pseudonym, valueType, errorDetail, requestID sql.NullString
		var metadataJSON []byte

		err := rows.Scan(
			&log.ID,
			&operation,
			&log.CallerID,
			&sessionID,
			&pseudonym,
			&valueType,
			&log.Success,
			&errorDetail,
			&requestID,
			&metadataJSON,
			&log.CreatedAt,
			&log.Signature,
			&kekID,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit log")
		}

		log.Operation = auditDomain.Operation(operation)
		log.Pseudonym = pseudonym.String
		log.ValueType = valueType.String
		log.ErrorDetail = errorDetail.String
		log.RequestID = requestID.String
		log.CreatedAt = log.CreatedAt.UTC()
		if sessionID.Valid {
			log.SessionID = &sessionID.UUID
		}
		if kekID.Valid {
			log.KekID = &kekID.UUID
		}
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

func (p *PostgreSQLAuditLogRepository) CountOlderThan(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	var count int64
	err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs WHERE created_at < $1`, before).
		Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count audit logs")
	}
	return count, nil
}

func (p *PostgreSQLAuditLogRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete audit logs")
	}
	return result.RowsAffected()
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal audit log metadata")
	}
	return data, nil
}

func unmarshalMetadata(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal audit log metadata")
	}
	return metadata, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NewPostgreSQLAuditLogRepository creates a new PostgreSQL audit log repository.
func NewPostgreSQLAuditLogRepository(db *sql.DB) *PostgreSQLAuditLogRepository {
	return &PostgreSQLAuditLogRepository{db: db}
}
