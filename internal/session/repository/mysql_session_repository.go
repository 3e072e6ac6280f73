package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/pseudonymizer/internal/database"
	apperrors "github.com/allisson/pseudonymizer/internal/errors"
	sessionDomain "github.com/allisson/pseudonymizer/internal/session/domain"
)

// MySQLSessionRepository implements session persistence for MySQL. UUIDs are BINARY(16).
type MySQLSessionRepository struct {
	db *sql.DB
}

func (m *MySQLSessionRepository) Create(ctx context.Context, session *sessionDomain.Session) error {
	querier := database.GetTx(ctx, m.db)

	metadataJSON, err := marshalMetadata(session.Metadata)
	if err != nil {
		return err
	}
	id, err := session.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal session id")
	}

	query := `INSERT INTO sessions (` + sessionColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
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

func (m *MySQLSessionRepository) get(ctx context.Context, id uuid.UUID, suffix string) (*sessionDomain.Session, error) {
	idBinary, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal session id")
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?` + suffix
	return scanMySQLSession(database.GetTx(ctx, m.db).QueryRowContext(ctx, query, idBinary))
}

func (m *MySQLSessionRepository) Get(ctx context.Context, id uuid.UUID) (*sessionDomain.Session, error) {
	return m.get(ctx, id, "")
}

func (m *MySQLSessionRepository) GetForShare(ctx context.Context, id uuid.UUID) (*sessionDomain.Session, error) {
	return m.get(ctx, id, " FOR SHARE")
}

func (m *MySQLSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	idBinary, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal session id")
	}
	result, err := querier.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, idBinary)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete session")
	}
	return requireRow(result)
}

func (m *MySQLSessionRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	var count int64
	err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE expires_at <= ?`, now).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count expired sessions")
	}
	return count, nil
}

func (m *MySQLSessionRepository) ListExpired(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*sessionDomain.Session, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + sessionColumns + `
			  FROM sessions
			  WHERE expires_at <= ?
			  ORDER BY expires_at ASC
			  LIMIT ?
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
		session, err := scanMySQLSession(rows)
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

func (m *MySQLSessionRepository) MarkInactive(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	querier := database.GetTx(ctx, m.db)

	placeholders, args, err := mySQLInList(ids)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal session ids")
	}
	query := `UPDATE sessions SET active = FALSE WHERE active AND id IN (` + placeholders + `)`

	if _, err := querier.ExecContext(ctx, query, args...); err != nil {
		return apperrors.Wrap(err, "failed to mark sessions inactive")
	}
	return nil
}

func (m *MySQLSessionRepository) DeleteExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	idBinary, err := id.MarshalBinary()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal session id")
	}
	result, err := querier.ExecContext(ctx, `DELETE FROM sessions WHERE id = ? AND expires_at <= ?`, idBinary, now)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to delete expired session")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read affected rows")
	}
	return affected > 0, nil
}

func scanMySQLSession(row rowScanner) (*sessionDomain.Session, error) {
	var session sessionDomain.Session
	var idBinary []byte
	var purpose string
	var metadataJSON []byte

	err := row.Scan(
		&idBinary,
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

	if err := session.ID.UnmarshalBinary(idBinary); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal session id")
	}
	session.Purpose = sessionDomain.Purpose(purpose)
	session.CreatedAt = session.CreatedAt.UTC()
	session.ExpiresAt = session.ExpiresAt.UTC()
	if session.Metadata, err = unmarshalMetadata(metadataJSON); err != nil {
		return nil, err
	}
	return &session, nil
}

// NewMySQLSessionRepository creates a new MySQL session repository.
func NewMySQLSessionRepository(db *sql.DB) *MySQLSessionRepository {
	return &MySQLSessionRepository{db: db}
}
