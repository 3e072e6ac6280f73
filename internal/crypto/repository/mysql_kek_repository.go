package repository

import (
	"context"
	"database/sql"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	"github.com/allisson/pseudonymizer/internal/database"
	apperrors "github.com/allisson/pseudonymizer/internal/errors"
)

// MySQLKekRepository stores KEKs in MySQL with BINARY(16) identifiers.
type MySQLKekRepository struct {
	db *sql.DB
}

func (m *MySQLKekRepository) Create(ctx context.Context, kek *cryptoDomain.Kek) error {
	_, err := database.GetTx(ctx, m.db).ExecContext(ctx,
		`INSERT INTO keks (`+kekColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		kek.ID[:], kek.MasterKeyID, kek.Algorithm, kek.EncryptedKey, kek.Nonce, kek.Version, kek.CreatedAt,
	)
	return apperrors.Wrap(err, "failed to create kek")
}

func (m *MySQLKekRepository) Update(ctx context.Context, kek *cryptoDomain.Kek) error {
	_, err := database.GetTx(ctx, m.db).ExecContext(ctx,
		`UPDATE keks SET master_key_id = ?, encrypted_key = ?, nonce = ? WHERE id = ?`,
		kek.MasterKeyID, kek.EncryptedKey, kek.Nonce, kek.ID[:],
	)
	return apperrors.Wrap(err, "failed to update kek")
}

func (m *MySQLKekRepository) List(ctx context.Context) ([]*cryptoDomain.Kek, error) {
	rows, err := database.GetTx(ctx, m.db).QueryContext(ctx,
		`SELECT `+kekColumns+` FROM keks ORDER BY version DESC`)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list keks")
	}
	return collectKeks(rows, func(row rowScanner) (*cryptoDomain.Kek, error) {
		var kek cryptoDomain.Kek
		var id []byte
		if err := row.Scan(
			&id, &kek.MasterKeyID, &kek.Algorithm, &kek.EncryptedKey, &kek.Nonce, &kek.Version, &kek.CreatedAt,
		); err != nil {
			return nil, err
		}
		return &kek, kek.ID.UnmarshalBinary(id)
	})
}

func NewMySQLKekRepository(db *sql.DB) *MySQLKekRepository {
	return &MySQLKekRepository{db: db}
}
