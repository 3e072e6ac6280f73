// Package repository persists sessions in PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/pseudonymizer/internal/database"
	apperrors "github.com/allisson/pseudonymizer/internal/errors"
	sessionDomain "github.com/allisson/pseudonymizer/internal/session/domain"
)

const sessionColumns = `id, caller_id, purpose, created_at, expires_at, active, metadata,
	lookup_key_ciphertext, lookup_key_version`

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgreSQLSessionRepository implements session persistence for PostgreSQL.
type PostgreSQLSessionRepository struct {
	db *sql.DB
}

func (p *PostgreSQLSessionRepository) Create(ctx context.Context, session *sessionDomain.Session) error {
	querier := database.GetTx(ctx, p.db)

	metadataJSON, err := marshalMetadata(session.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO sessions (` + sessionColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = querier.ExecContext(
		ctx,
		query,
		session.ID,
		session.CallerID,
		string(session.Purpose),
		session.CreatedAt,
		session.ExpiresAt,
		session.Active,
		metadataJSON,
		session.LookupKeyCiphertext,
		session.LookupKeyVersion,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create session")
	}
	return nil
}

func (p *PostgreSQLSessionRepository) Get(ctx context.Context, id uuid.UUID) (*sessionDomain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return scanPostgreSQLSession(database.GetTx(ctx, p.db).QueryRowContext(ctx, query, id))
}

func (p *PostgreSQLSessionRepository) GetForShare(
	ctx context.Context,
	id uuid.UUID,
) (*sessionDomain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1 FOR SHARE`
	return scanPostgreSQLSession(database.GetTx(ctx, p.db).QueryRowContext(ctx, query, id))
}

func (p *PostgreSQLSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete session")
	}
	return requireRow(result)
}

func (p *PostgreSQLSessionRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	var count int64
	err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE expires_at <= $1`, now).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count expired sessions")
	}
	return count, nil
}

func (p *PostgreSQLSessionRepository) ListExpired(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*sessionDomain.Session, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + sessionColumns + `
			  FROM sessions
			  WHERE expires_at <= $1
			  ORDER BY expires_at ASC
			  LIMIT $2
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list expired sessions")
	}
	defer func() {
		_ = rows.Close()
	}()

	sessions := make([]*sessionDomain.Session, 0)
	for rows.Next() {
		session, err := scanPostgreSQLSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate expired sessions")
	}
	return sessions, nil
}

func (p *PostgreSQLSessionRepository) MarkInactive(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	querier := database.GetTx(ctx, p.db)

	placeholders, args := postgreSQLInList(ids, 1)
	query := `UPDATE sessions SET active = FALSE WHERE active AND id IN (` + placeholders + `)`

	if _, err := querier.ExecContext(ctx, query, args...); err != nil {
		return apperrors.Wrap(err, "failed to mark sessions inactive")
	}
	return nil
}

func (p *PostgreSQLSessionRepository) DeleteExpired(
	ctx context.Context,
	id uuid.UUID,
	now time.Time,
) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1 AND expires_at <= $2`, id, now)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to delete expired session")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read affected rows")
	}
	return affected > 0, nil
}

func scanPostgreSQLSession(row rowScanner) (*sessionDomain.Session, error) {
	var session sessionDomain.Session
	var purpose string
	var metadataJSON []byte

	err := row.Scan(
		&session.ID,
		&session.CallerID,
		&purpose,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.Active,
		&metadataJSON,
		&session.LookupKeyCiphertext,
		&session.LookupKeyVersion,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sessionDomain.ErrSessionNotFound
		}
		return nil, apperrors.Wrap(err, "failed to scan session")
	}

	session.Purpose = sessionDomain.Purpose(purpose)
	session.CreatedAt = session.CreatedAt.UTC()
	session.ExpiresAt = session.ExpiresAt.UTC()
	if session.Metadata, err = unmarshalMetadata(metadataJSON); err != nil {
		return nil, err
	}
	return &session, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return sessionDomain.ErrSessionNotFound
	}
	return nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal session metadata")
	}
	return data, nil
}

func unmarshalMetadata(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal session metadata")
	}
	return metadata, nil
}

// NewPostgreSQLSessionRepository creates a new PostgreSQL session repository.
func NewPostgreSQLSessionRepository(db *sql.DB) *PostgreSQLSessionRepository {
	return &PostgreSQLSessionRepository{db: db}
}
