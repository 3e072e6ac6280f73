package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	"github.com/allisson/pseudonymizer/internal/database"
	apperrors "github.com/allisson/pseudonymizer/internal/errors"
)

const encryptionKeyColumns = `id, name, version, dek_id, created_at, destroyed_at`

// PostgreSQLEncryptionKeyRepository stores encryption key versions in PostgreSQL.
type PostgreSQLEncryptionKeyRepository struct {
	db *sql.DB
}

func (p *PostgreSQLEncryptionKeyRepository) Create(ctx context.Context, key *cryptoDomain.EncryptionKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO encryption_keys (` + encryptionKeyColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	var dekID uuid.NullUUID
	if key.DekID != uuid.Nil {
		dekID = uuid.NullUUID{UUID: key.DekID, Valid: true}
	}

	_, err := querier.ExecContext(ctx, query, key.ID, key.Name, key.Version, dekID, key.CreatedAt, key.DestroyedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return cryptoDomain.ErrEncryptionKeyExists
		}
		return apperrors.Wrap(err, "failed to create encryption key")
	}
	return nil
}

// GetLatest returns the highest live version of name.
func (p *PostgreSQLEncryptionKeyRepository) GetLatest(
	ctx context.Context,
	name string,
) (*cryptoDomain.EncryptionKey, error) {
	query := `SELECT ` + encryptionKeyColumns + `
			  FROM encryption_keys
			  WHERE name = $1 AND destroyed_at IS NULL
			  ORDER BY version DESC
			  LIMIT 1`

	return p.getOne(ctx, query, name)
}

// GetByVersion returns one version of name, destroyed or not.
func (p *PostgreSQLEncryptionKeyRepository) GetByVersion(
	ctx context.Context,
	name string,
	version uint,
) (*cryptoDomain.EncryptionKey, error) {
	query := `SELECT ` + encryptionKeyColumns + `
			  FROM encryption_keys
			  WHERE name = $1 AND version = $2`

	return p.getOne(ctx, query, name, version)
}

// List returns every version of name ordered by version descending.
func (p *PostgreSQLEncryptionKeyRepository) List(
	ctx context.Context,
	name string,
) ([]*cryptoDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + encryptionKeyColumns + `
			  FROM encryption_keys
			  WHERE name = $1
			  ORDER BY version DESC`

	rows, err := querier.QueryContext(ctx, query, name)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list encryption keys")
	}
	defer func() {
		_ = rows.Close()
	}()

	var keys []*cryptoDomain.EncryptionKey
	for rows.Next() {
		key, err := scanPostgreSQLEncryptionKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate encryption keys")
	}
	return keys, nil
}

// MarkDestroyed stamps destroyed_at and detaches the DEK.
func (p *PostgreSQLEncryptionKeyRepository) MarkDestroyed(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE encryption_keys
			  SET destroyed_at = $1, dek_id = NULL
			  WHERE id = $2 AND destroyed_at IS NULL`

	result, err := querier.ExecContext(ctx, query, at, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to destroy encryption key")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to destroy encryption key")
	}
	if affected == 0 {
		return cryptoDomain.ErrEncryptionKeyNotFound
	}
	return nil
}

func (p *PostgreSQLEncryptionKeyRepository) getOne(
	ctx context.Context,
	query string,
	args ...any,
) (*cryptoDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, p.db)

	key, err := scanPostgreSQLEncryptionKey(querier.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cryptoDomain.ErrEncryptionKeyNotFound
		}
		return nil, err
	}
	return key, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgreSQLEncryptionKey(row rowScanner) (*cryptoDomain.EncryptionKey, error) {
	var key cryptoDomain.EncryptionKey
	var dekID uuid.NullUUID

	if err := row.Scan(&key.ID, &key.Name, &key.Version, &dekID, &key.CreatedAt, &key.DestroyedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, "failed to scan encryption key")
	}
	if dekID.Valid {
		key.DekID = dekID.UUID
	}
	return &key, nil
}

func NewPostgreSQLEncryptionKeyRepository(db *sql.DB) *PostgreSQLEncryptionKeyRepository {
	return &PostgreSQLEncryptionKeyRepository{db: db}
}
