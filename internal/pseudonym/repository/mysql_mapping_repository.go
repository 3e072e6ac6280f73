package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/pseudonymizer/internal/database"
	"github.com/allisson/pseudonymizer/internal/detection"
	apperrors "github.com/allisson/pseudonymizer/internal/errors"
	pseudonymDomain "github.com/allisson/pseudonymizer/internal/pseudonym/domain"
)

// MySQLMappingRepository implements the Mapping Store for MySQL. UUIDs are BINARY(16).
type MySQLMappingRepository struct {
	db *sql.DB
}

// CreateOrGet inserts the mapping. A duplicate key is resolved by reading the session's
// mapping for the same value hash; when there is none the duplicate was the pseudonym.
func (m *MySQLMappingRepository) CreateOrGet(
	ctx context.Context,
	mapping *pseudonymDomain.Mapping,
) (*pseudonymDomain.Mapping, bool, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := mapping.ID.MarshalBinary()
	if err != nil {
		return nil, false, apperrors.Wrap(err, "failed to marshal mapping id")
	}
	sessionID, err := mapping.SessionID.MarshalBinary()
	if err != nil {
		return nil, false, apperrors.Wrap(err, "failed to marshal session id")
	}

	query := `INSERT INTO mappings (` + mappingColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		sessionID,
		mapping.Pseudonym,
		mapping.ValueHash,
		string(mapping.ValueType),
		mapping.Ciphertext,
		mapping.KeyVersion,
		mapping.CreatedAt,
		mapping.AccessCount,
		mapping.LastAccessedAt,
	)
	if err == nil {
		return mapping, true, nil
	}
	if !database.IsUniqueViolation(err) {
		return nil, false, apperrors.Wrap(err, "failed to create mapping")
	}

	stored, getErr := m.GetByValueHash(ctx, mapping.SessionID, mapping.ValueHash)
	if getErr != nil {
		if errors.Is(getErr, pseudonymDomain.ErrMappingNotFound) {
			return nil, false, pseudonymDomain.ErrPseudonymCollision
		}
		return nil, false, getErr
	}
	return stored, false, nil
}

func (m *MySQLMappingRepository) GetByValueHash(
	ctx context.Context,
	sessionID uuid.UUID,
	valueHash []byte,
) (*pseudonymDomain.Mapping, error) {
	querier := database.GetTx(ctx, m.db)

	sessionIDBinary, err := sessionID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal session id")
	}

	query := `SELECT ` + mappingColumns + ` FROM mappings WHERE session_id = ? AND value_hash = ?`

	mapping, err := scanMySQLMapping(querier.QueryRowContext(ctx, query, sessionIDBinary, valueHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pseudonymDomain.ErrMappingNotFound
		}
		return nil, err
	}
	return mapping, nil
}

func (m *MySQLMappingRepository) ListByPseudonyms(
	ctx context.Context,
	sessionID uuid.UUID,
	pseudonyms []string,
) ([]*pseudonymDomain.Mapping, error) {
	if len(pseudonyms) == 0 {
		return nil, nil
	}
	querier := database.GetTx(ctx, m.db)

	sessionIDBinary, err := sessionID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal session id")
	}
	args := make([]any, 0, len(pseudonyms)+1)
	args = append(args, sessionIDBinary)
	for _, pseudonym := range pseudonyms {
		args = append(args, pseudonym)
	}

	query := `SELECT ` + mappingColumns + ` FROM mappings
			  WHERE session_id = ? AND pseudonym IN (` + mySQLPlaceholders(len(pseudonyms)) + `)`

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list mappings")
	}
	defer func() {
		_ = rows.Close()
	}()

	var mappings []*pseudonymDomain.Mapping
	for rows.Next() {
		mapping, err := scanMySQLMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, mapping)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate mappings")
	}
	return mappings, nil
}

func (m *MySQLMappingRepository) PseudonymExists(ctx context.Context, pseudonym string) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM mappings WHERE pseudonym = ?)`
	if err := querier.QueryRowContext(ctx, query, pseudonym).Scan(&exists); err != nil {
		return false, apperrors.Wrap(err, "failed to check pseudonym")
	}
	return exists, nil
}

func (m *MySQLMappingRepository) IncrementAccess(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	querier := database.GetTx(ctx, m.db)

	args := make([]any, 0, len(ids)+1)
	args = append(args, at)
	for _, id := range ids {
		data, err := id.MarshalBinary()
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal mapping id")
		}
		args = append(args, data)
	}

	query := `UPDATE mappings
			  SET access_count = access_count + 1, last_accessed_at = ?
			  WHERE id IN (` + mySQLPlaceholders(len(ids)) + `)`

	if _, err := querier.ExecContext(ctx, query, args...); err != nil {
		return apperrors.Wrap(err, "failed to increment mapping access")
	}
	return nil
}

func (m *MySQLMappingRepository) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	querier := database.GetTx(ctx, m.db)

	sessionIDBinary, err := sessionID.MarshalBinary()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to marshal session id")
	}

	var count int
	query := `SELECT COUNT(*) FROM mappings WHERE session_id = ?`
	if err := querier.QueryRowContext(ctx, query, sessionIDBinary).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count mappings")
	}
	return count, nil
}

func mySQLPlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func scanMySQLMapping(row rowScanner) (*pseudonymDomain.Mapping, error) {
	var mapping pseudonymDomain.Mapping
	var id, sessionID []byte
	var valueType string
	var lastAccessedAt sql.NullTime

	err := row.Scan(
		&id,
		&sessionID,
		&mapping.Pseudonym,
		&mapping.ValueHash,
		&valueType,
		&mapping.Ciphertext,
		&mapping.KeyVersion,
		&mapping.CreatedAt,
		&mapping.AccessCount,
		&lastAccessedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, "failed to scan mapping")
	}

	if err := mapping.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal mapping id")
	}
	if err := mapping.SessionID.UnmarshalBinary(sessionID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal session id")
	}
	mapping.ValueType = detection.ValueType(valueType)
	mapping.CreatedAt = mapping.CreatedAt.UTC()
	if lastAccessedAt.Valid {
		accessed := lastAccessedAt.Time.UTC()
		mapping.LastAccessedAt = &accessed
	}
	return &mapping, nil
}

// NewMySQLMappingRepository creates a MySQL mapping repository.
func NewMySQLMappingRepository(db *sql.DB) *MySQLMappingRepository {
	return &MySQLMappingRepository{db: db}
}
