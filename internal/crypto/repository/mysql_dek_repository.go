package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	"github.com/allisson/pseudonymizer/internal/database"
	apperrors "github.com/allisson/pseudonymizer/internal/errors"
)

// MySQLDekRepository stores wrapped DEKs in MySQL.
type MySQLDekRepository struct {
	db *sql.DB
}

func (m *MySQLDekRepository) Create(ctx context.Context, dek *cryptoDomain.Dek) error {
	_, err := database.GetTx(ctx, m.db).ExecContext(ctx,
		`INSERT INTO deks (`+dekColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		dek.ID[:], dek.KekID[:], dek.Algorithm, dek.EncryptedKey, dek.Nonce, dek.CreatedAt,
	)
	return apperrors.Wrap(err, "failed to create dek")
}

func (m *MySQLDekRepository) Get(ctx context.Context, dekID uuid.UUID) (*cryptoDomain.Dek, error) {
	var dek cryptoDomain.Dek
	var id, kekID []byte
	err := database.GetTx(ctx, m.db).
		QueryRowContext(ctx, `SELECT `+dekColumns+` FROM deks WHERE id = ?`, dekID[:]).
		Scan(&id, &kekID, &dek.Algorithm, &dek.EncryptedKey, &dek.Nonce, &dek.CreatedAt)
	if err != nil {
		return nil, dekLookupError(err)
	}

	if err := dek.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal dek id")
	}
	if err := dek.KekID.UnmarshalBinary(kekID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal kek id")
	}
	return &dek, nil
}

func (m *MySQLDekRepository) Update(ctx context.Context, dek *cryptoDomain.Dek) error {
	_, err := database.GetTx(ctx, m.db).ExecContext(ctx,
		`UPDATE deks SET kek_id = ?, encrypted_key = ?, nonce = ? WHERE id = ?`,
		dek.KekID[:], dek.EncryptedKey, dek.Nonce, dek.ID[:],
	)
	return apperrors.Wrap(err, "failed to update dek")
}

func (m *MySQLDekRepository) Delete(ctx context.Context, dekID uuid.UUID) error {
	_, err := database.GetTx(ctx, m.db).ExecContext(ctx, `DELETE FROM deks WHERE id = ?`, dekID[:])
	return apperrors.Wrap(err, "failed to delete dek")
}

func NewMySQLDekRepository(db *sql.DB) *MySQLDekRepository {
	return &MySQLDekRepository{db: db}
}
