// Package repository persists the key hierarchy for PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	"github.com/allisson/pseudonymizer/internal/database"
	apperrors "github.com/allisson/pseudonymizer/internal/errors"
)

const kekColumns = `id, master_key_id, algorithm, encrypted_key, nonce, version, created_at`

// PostgreSQLKekRepository stores KEKs in PostgreSQL.
type PostgreSQLKekRepository struct {
	db *sql.DB
}

// Create inserts a new wrapped KEK.
func (p *PostgreSQLKekRepository) Create(ctx context.Context, kek *cryptoDomain.Kek) error {
	_, err := database.GetTx(ctx, p.db).ExecContext(ctx,
		`INSERT INTO keks (`+kekColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		kek.ID, kek.MasterKeyID, kek.Algorithm, kek.EncryptedKey, kek.Nonce, kek.Version, kek.CreatedAt,
	)
	return apperrors.Wrap(err, "failed to create kek")
}

// Update stores a KEK re-wrapped under another master key.
func (p *PostgreSQLKekRepository) Update(ctx context.Context, kek *cryptoDomain.Kek) error {
	_, err := database.GetTx(ctx, p.db).ExecContext(ctx,
		`UPDATE keks SET master_key_id = $1, encrypted_key = $2, nonce = $3 WHERE id = $4`,
		kek.MasterKeyID, kek.EncryptedKey, kek.Nonce, kek.ID,
	)
	return apperrors.Wrap(err, "failed to update kek")
}

// List returns every KEK, newest version first.
func (p *PostgreSQLKekRepository) List(ctx context.Context) ([]*cryptoDomain.Kek, error) {
	rows, err := database.GetTx(ctx, p.db).QueryContext(ctx,
		`SELECT `+kekColumns+` FROM keks ORDER BY version DESC`)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list keks")
	}
	return collectKeks(rows, func(row rowScanner) (*cryptoDomain.Kek, error) {
		var kek cryptoDomain.Kek
		err := row.Scan(
			&kek.ID, &kek.MasterKeyID, &kek.Algorithm, &kek.EncryptedKey, &kek.Nonce, &kek.Version, &kek.CreatedAt,
		)
		return &kek, err
	})
}

// collectKeks drains rows through scan and closes them.
func collectKeks(
	rows *sql.Rows,
	scan func(row rowScanner) (*cryptoDomain.Kek, error),
) ([]*cryptoDomain.Kek, error) {
	defer func() {
		_ = rows.Close()
	}()

	var keks []*cryptoDomain.Kek
	for rows.Next() {
		kek, err := scan(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan kek")
		}
		keks = append(keks, kek)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate keks")
	}
	return keks, nil
}

func NewPostgreSQLKekRepository(db *sql.DB) *PostgreSQLKekRepository {
	return &PostgreSQLKekRepository{db: db}
}
