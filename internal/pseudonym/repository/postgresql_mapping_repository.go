// Package repository persists pseudonym mappings in PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/pseudonymizer/internal/database"
	"github.com/allisson/pseudonymizer/internal/detection"
	apperrors "github.com/allisson/pseudonymizer/internal/errors"
	pseudonymDomain "github.com/allisson/pseudonymizer/internal/pseudonym/domain"
)

const mappingColumns = `id, session_id, pseudonym, value_hash, value_type, ciphertext, key_version, ` +
	`created_at, access_count, last_accessed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgreSQLMappingRepository implements the Mapping Store for PostgreSQL.
type PostgreSQLMappingRepository struct {
	db *sql.DB
}

// CreateOrGet relies on ON CONFLICT over (session_id, value_hash): a concurrent call that
// inserted the same value first wins and its mapping is returned.
func (p *PostgreSQLMappingRepository) CreateOrGet(
	ctx context.Context,
	mapping *pseudonymDomain.Mapping,
) (*pseudonymDomain.Mapping, bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO mappings (` + mappingColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  ON CONFLICT (session_id, value_hash) DO NOTHING`

	result, err := querier.ExecContext(
		ctx,
		query,
		mapping.ID,
		mapping.SessionID,
		mapping.Pseudonym,
		mapping.ValueHash,
		string(mapping.ValueType),
		mapping.Ciphertext,
		mapping.KeyVersion,
		mapping.CreatedAt,
		mapping.AccessCount,
		mapping.LastAccessedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, false, pseudonymDomain.ErrPseudonymCollision
		}
		return nil, false, apperrors.Wrap(err, "failed to create mapping")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 1 {
		return mapping, true, nil
	}

	stored, err := p.GetByValueHash(ctx, mapping.SessionID, mapping.ValueHash)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

func (p *PostgreSQLMappingRepository) GetByValueHash(
	ctx context.Context,
	sessionID uuid.UUID,
	valueHash []byte,
) (*pseudonymDomain.Mapping, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + mappingColumns + ` FROM mappings WHERE session_id = $1 AND value_hash = $2`

	mapping, err := scanPostgreSQLMapping(querier.QueryRowContext(ctx, query, sessionID, valueHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pseudonymDomain.ErrMappingNotFound
		}
		return nil, err
	}
	return mapping, nil
}

func (p *PostgreSQLMappingRepository) ListByPseudonyms(
	ctx context.Context,
	sessionID uuid.UUID,
	pseudonyms []string,
) ([]*pseudonymDomain.Mapping, error) {
	if len(pseudonyms) == 0 {
		return nil, nil
	}
	querier := database.GetTx(ctx, p.db)

	placeholders := make([]string, len(pseudonyms))
	args := make([]any, 0, len(pseudonyms)+1)
	args = append(args, sessionID)
	for i, pseudonym := range pseudonyms {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, pseudonym)
	}

	query := `SELECT ` + mappingColumns + ` FROM mappings
			  WHERE session_id = $1 AND pseudonym IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list mappings")
	}
	defer func() {
		_ = rows.Close()
	}()

	var mappings []*pseudonymDomain.Mapping
	for rows.Next() {
		mapping, err := scanPostgreSQLMapping(rows)
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

func (p *PostgreSQLMappingRepository) PseudonymExists(ctx context.Context, pseudonym string) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM mappings WHERE pseudonym = $1)`
	if err := querier.QueryRowContext(ctx, query, pseudonym).Scan(&exists); err != nil {
		return false, apperrors.Wrap(err, "failed to check pseudonym")
	}
	return exists, nil
}

func (p *PostgreSQLMappingRepository) IncrementAccess(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	querier := database.GetTx(ctx, p.db)

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, at)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := `UPDATE mappings
			  SET access_count = access_count + 1, last_accessed_at = $1
			  WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	if _, err := querier.ExecContext(ctx, query, args...); err != nil {
		return apperrors.Wrap(err, "failed to increment mapping access")
	}
	return nil
}

func (p *PostgreSQLMappingRepository) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	querier := database.GetTx(ctx, p.db)

	var count int
	query := `SELECT COUNT(*) FROM mappings WHERE session_id = $1`
	if err := querier.QueryRowContext(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count mappings")
	}
	return count, nil
}

func scanPostgreSQLMapping(row rowScanner) (*pseudonymDomain.Mapping, error) {
	var mapping pseudonymDomain.Mapping
	var valueType string
	var lastAccessedAt sql.NullTime

	err := row.Scan(
		&mapping.ID,
		&mapping.SessionID,
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

	mapping.ValueType = detection.ValueType(valueType)
	mapping.CreatedAt = mapping.CreatedAt.UTC()
	if lastAccessedAt.Valid {
		accessed := lastAccessedAt.Time.UTC()
		mapping.LastAccessedAt = &accessed
	}
	return &mapping, nil
}

// NewPostgreSQLMappingRepository creates a PostgreSQL mapping repository.
func NewPostgreSQLMappingRepository(db *sql.DB) *PostgreSQLMappingRepository {
	return &PostgreSQLMappingRepository{db: db}
}
