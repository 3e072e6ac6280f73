package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	"github.com/allisson/pseudonymizer/internal/database"
	apperrors "github.com/allisson/pseudonymizer/internal/errors"
)

const dekColumns = `id, kek_id, algorithm, encrypted_key, nonce, created_at`

// PostgreSQLDekRepository stores wrapped DEKs in PostgreSQL.
type PostgreSQLDekRepository struct {
	db *sql.DB
}

func (p *PostgreSQLDekRepository) Create(ctx context.Context, dek *cryptoDomain.Dek) error {
	_, err := database.GetTx(ctx, p.db).ExecContext(ctx,
		`INSERT INTO deks (`+dekColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		dek.ID, dek.KekID, dek.Algorithm, dek.EncryptedKey, dek.Nonce, dek.CreatedAt,
	)
	return apperrors.Wrap(err, "failed to create dek")
}

func (p *PostgreSQLDekRepository) Get(ctx context.Context, dekID uuid.UUID) (*cryptoDomain.Dek, error) {
	var dek cryptoDomain.Dek
	err := database.GetTx(ctx, p.db).
		QueryRowContext(ctx, `SELECT `+dekColumns+` FROM deks WHERE id = $1`, dekID).
		Scan(&dek.ID, &dek.KekID, &dek.Algorithm, &dek.EncryptedKey, &dek.Nonce, &dek.CreatedAt)
	if err != nil {
		return nil, dekLookupError(err)
	}
	return &dek, nil
}

// Update stores a DEK re-wrapped under another KEK.
func (p *PostgreSQLDekRepository) Update(ctx context.Context, dek *cryptoDomain.Dek) error {
	_, err := database.GetTx(ctx, p.db).ExecContext(ctx,
		`UPDATE deks SET kek_id = $1, encrypted_key = $2, nonce = $3 WHERE id = $4`,
		dek.KekID, dek.EncryptedKey, dek.Nonce, dek.ID,
	)
	return apperrors.Wrap(err, "failed to update dek")
}

// Delete removes a DEK and with it the only copy of the wrapped key.
func (p *PostgreSQLDekRepository) Delete(ctx context.Context, dekID uuid.UUID) error {
	_, err := database.GetTx(ctx, p.db).ExecContext(ctx, `DELETE FROM deks WHERE id = $1`, dekID)
	return apperrors.Wrap(err, "failed to delete dek")
}

func dekLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return cryptoDomain.ErrDekNotFound
	}
	return apperrors.Wrap(err, "failed to get dek")
}

func NewPostgreSQLDekRepository(db *sql.DB) *PostgreSQLDekRepository {
	return &PostgreSQLDekRepository{db: db}
}
