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

// MySQLEncryptionKeyRepository stores encryption key versions in MySQL.
type MySQLEncryptionKeyRepository struct {
	db *sql.DB
}

func (m *MySQLEncryptionKeyRepository) Create(ctx context.Context, key *cryptoDomain.EncryptionKey) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO encryption_keys (` + encryptionKeyColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?)`

	id, err := key.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal encryption key id")
	}
	var dekID []byte
	if key.DekID != uuid.Nil {
		if dekID, err = key.DekID.MarshalBinary(); err != nil {
			return apperrors.Wrap(err, "failed to marshal dek id")
		}
	}

	_, err = querier.ExecContext(ctx, query, id, key.Name, key.Version, dekID, key.CreatedAt, key.DestroyedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return cryptoDomain.ErrEncryptionKeyExists
		}
		return apperrors.Wrap(err, "failed to create encryption key")
	}
	return nil
}

func (m *MySQLEncryptionKeyRepository) GetLatest(
	ctx context.Context,
	name string,
) (*cryptoDomain.EncryptionKey, error) {
	query := `SELECT ` + encryptionKeyColumns + `
			  FROM encryption_keys
			  WHERE name = ? AND destroyed_at IS NULL
			  ORDER BY version DESC
			  LIMIT 1`

	return m.getOne(ctx, query, name)
}

func (m *MySQLEncryptionKeyRepository) GetByVersion(
	ctx context.Context,
	name string,
	version uint,
) (*cryptoDomain.EncryptionKey, error) {
	query := `SELECT ` + encryptionKeyColumns + `
			  FROM encryption_keys
			  WHERE name = ? AND version = ?`

	return m.getOne(ctx, query, name, version)
}

func (m *MySQLEncryptionKeyRepository) List(
	ctx context.Context,
	name string,
) ([]*cryptoDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + encryptionKeyColumns + `
			  FROM encryption_keys
			  WHERE name = ?
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
		key, err := scanMySQLEncryptionKey(rows)
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

func (m *MySQLEncryptionKeyRepository) MarkDestroyed(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal encryption key id")
	}

	query := `UPDATE encryption_keys
			  SET destroyed_at = ?, dek_id = NULL
			  WHERE id = ? AND destroyed_at IS NULL`

	result, err := querier.ExecContext(ctx, query, at, idBytes)
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

func (m *MySQLEncryptionKeyRepository) getOne(
	ctx context.Context,
	query string,
	args ...any,
) (*cryptoDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, m.db)

	key, err := scanMySQLEncryptionKey(querier.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cryptoDomain.ErrEncryptionKeyNotFound
		}
		return nil, err
	}
	return key, nil
}

func scanMySQLEncryptionKey(row rowScanner) (*cryptoDomain.EncryptionKey, error) {
	var key cryptoDomain.EncryptionKey
	var id, dekID []byte

	if err := row.Scan(&id, &key.Name, &key.Version, &dekID, &key.CreatedAt, &key.DestroyedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, "failed to scan encryption key")
	}
	if err := key.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal encryption key id")
	}
	if len(dekID) > 0 {
		if err := key.DekID.UnmarshalBinary(dekID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal dek id")
		}
	}
	return &key, nil
}

func NewMySQLEncryptionKeyRepository(db *sql.DB) *MySQLEncryptionKeyRepository {
	return &MySQLEncryptionKeyRepository{db: db}
}
