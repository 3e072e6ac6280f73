package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	cryptoService "github.com/allisson/pseudonymizer/internal/crypto/service"
	"github.com/allisson/pseudonymizer/internal/database"
	apperrors "github.com/allisson/pseudonymizer/internal/errors"
)

// EncryptionKeyConfig configures the Encryption Gateway.
type EncryptionKeyConfig struct {
	// Name is the encryption key name, e.g. "pseudonym-encryption-key".
	Name string
	// Timeout bounds each Encrypt, Decrypt and Ready call. Zero disables the bound.
	Timeout time.Duration
}

type encryptionKeyUseCase struct {
	cfg         EncryptionKeyConfig
	txManager   database.TxManager
	keyRepo     EncryptionKeyRepository
	dekRepo     DekRepository
	keyManager  cryptoService.KeyManager
	aeadManager cryptoService.AEADManager
	kekChain    *cryptoDomain.KekChain
}

func (e *encryptionKeyUseCase) activeKek() (*cryptoDomain.Kek, error) {
	kek, ok := e.kekChain.Active()
	if !ok {
		return nil, cryptoDomain.ErrKekNotFound
	}
	return kek, nil
}

func (e *encryptionKeyUseCase) newVersion(
	ctx context.Context,
	alg cryptoDomain.Algorithm,
	version uint,
) (*cryptoDomain.EncryptionKey, error) {
	kek, err := e.activeKek()
	if err != nil {
		return nil, err
	}

	dek, err := e.keyManager.CreateDek(kek, alg)
	if err != nil {
		return nil, err
	}
	if err := e.dekRepo.Create(ctx, &dek); err != nil {
		return nil, err
	}

	key := &cryptoDomain.EncryptionKey{
		ID:        uuid.Must(uuid.NewV7()),
		Name:      e.cfg.Name,
		Version:   version,
		DekID:     dek.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.keyRepo.Create(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Create stores version 1 of the encryption key. It fails if any version already exists.
func (e *encryptionKeyUseCase) Create(
	ctx context.Context,
	alg cryptoDomain.Algorithm,
) (*cryptoDomain.EncryptionKey, error) {
	var key *cryptoDomain.EncryptionKey
	err := e.txManager.WithTx(ctx, func(ctx context.Context) error {
		existing, err := e.keyRepo.List(ctx, e.cfg.Name)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return cryptoDomain.ErrEncryptionKeyExists
		}

		key, err = e.newVersion(ctx, alg, 1)
		return err
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// Rotate stores a new version above every existing one, destroyed versions included, so a
// version number is never reused.
func (e *encryptionKeyUseCase) Rotate(
	ctx context.Context,
	alg cryptoDomain.Algorithm,
) (*cryptoDomain.EncryptionKey, error) {
	var key *cryptoDomain.EncryptionKey
	err := e.txManager.WithTx(ctx, func(ctx context.Context) error {
		existing, err := e.keyRepo.List(ctx, e.cfg.Name)
		if err != nil {
			return err
		}

		version := uint(1)
		if len(existing) > 0 {
			version = existing[0].Version + 1
		}

		key, err = e.newVersion(ctx, alg, version)
		return err
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

func (e *encryptionKeyUseCase) DestroyVersion(ctx context.Context, version uint) error {
	return e.txManager.WithTx(ctx, func(ctx context.Context) error {
		latest, err := e.keyRepo.GetLatest(ctx, e.cfg.Name)
		if err != nil {
			return err
		}
		if latest.Version == version {
			return cryptoDomain.ErrCannotDestroyActiveKey
		}

		key, err := e.keyRepo.GetByVersion(ctx, e.cfg.Name, version)
		if err != nil {
			return err
		}
		if key.Destroyed() {
			return cryptoDomain.ErrEncryptionKeyIsDestroyed
		}

		if err := e.keyRepo.MarkDestroyed(ctx, key.ID, time.Now().UTC()); err != nil {
			return err
		}
		return e.dekRepo.Delete(ctx, key.DekID)
	})
}

func (e *encryptionKeyUseCase) List(ctx context.Context) ([]*cryptoDomain.EncryptionKey, error) {
	return e.keyRepo.List(ctx, e.cfg.Name)
}

func (e *encryptionKeyUseCase) RewrapDeks(ctx context.Context) (int, error) {
	active, err := e.activeKek()
	if err != nil {
		return 0, err
	}

	rewrapped := 0
	err = e.txManager.WithTx(ctx, func(ctx context.Context) error {
		keys, err := e.keyRepo.List(ctx, e.cfg.Name)
		if err != nil {
			return err
		}

		for _, key := range keys {
			if key.Destroyed() {
				continue
			}
			dek, err := e.dekRepo.Get(ctx, key.DekID)
			if err != nil {
				return err
			}
			if dek.KekID == active.ID {
				continue
			}
			from, ok := e.kekChain.Get(dek.KekID)
			if !ok {
				return cryptoDomain.ErrKekNotFound
			}
			updated, err := e.keyManager.RewrapDek(dek, from, active)
			if err != nil {
				return err
			}
			if err := e.dekRepo.Update(ctx, &updated); err != nil {
				return err
			}
			rewrapped++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rewrapped, nil
}

// cipherFor loads the AEAD for key. Any failure to reach key material is reported as
// ErrCryptoUnavailable.
func (e *encryptionKeyUseCase) cipherFor(
	ctx context.Context,
	key *cryptoDomain.EncryptionKey,
) (cryptoService.AEAD, error) {
	dek, err := e.dekRepo.Get(ctx, key.DekID)
	if err != nil {
		return nil, unavailable(ctx, err)
	}

	kek, ok := e.kekChain.Get(dek.KekID)
	if !ok {
		return nil, apperrors.Wrap(cryptoDomain.ErrCryptoUnavailable, "kek not loaded")
	}

	dekKey, err := e.keyManager.DecryptDek(dek, kek)
	if err != nil {
		return nil, unavailable(ctx, err)
	}
	defer cryptoDomain.Zero(dekKey)

	aead, err := e.aeadManager.CreateCipher(dekKey, dek.Algorithm)
	if err != nil {
		return nil, unavailable(ctx, err)
	}
	return aead, nil
}

func (e *encryptionKeyUseCase) Encrypt(
	ctx context.Context,
	plaintext, aad []byte,
) (*cryptoDomain.Sealed, error) {
	ctx, cancel := database.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	key, err := e.keyRepo.GetLatest(ctx, e.cfg.Name)
	if err != nil {
		return nil, unavailable(ctx, err)
	}

	aead, err := e.cipherFor(ctx, key)
	if err != nil {
		return nil, err
	}

	ciphertext, nonce, err := aead.Encrypt(plaintext, aad)
	if err != nil {
		return nil, unavailable(ctx, err)
	}

	sealed := make([]byte, 0, len(nonce)+len(ciphertext))
	sealed = append(sealed, nonce...)
	sealed = append(sealed, ciphertext...)

	return &cryptoDomain.Sealed{Ciphertext: sealed, KeyVersion: key.Version}, nil
}

func (e *encryptionKeyUseCase) Decrypt(
	ctx context.Context,
	ciphertext []byte,
	keyVersion uint,
	aad []byte,
) ([]byte, error) {
	ctx, cancel := database.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	key, err := e.keyRepo.GetByVersion(ctx, e.cfg.Name, keyVersion)
	if err != nil {
		if apperrors.Is(err, cryptoDomain.ErrEncryptionKeyNotFound) {
			return nil, cryptoDomain.ErrKeyVersionUnavailable
		}
		return nil, unavailable(ctx, err)
	}
	if key.Destroyed() {
		return nil, cryptoDomain.ErrKeyVersionUnavailable
	}

	aead, err := e.cipherFor(ctx, key)
	if err != nil {
		return nil, err
	}

	nonceSize := aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, cryptoDomain.ErrCiphertextCorrupted
	}

	plaintext, err := aead.Decrypt(ciphertext[nonceSize:], ciphertext[:nonceSize], aad)
	if err != nil {
		return nil, cryptoDomain.ErrCiphertextCorrupted
	}
	return plaintext, nil
}

func (e *encryptionKeyUseCase) Ready(ctx context.Context) error {
	ctx, cancel := database.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	key, err := e.keyRepo.GetLatest(ctx, e.cfg.Name)
	if err != nil {
		return unavailable(ctx, err)
	}
	_, err = e.cipherFor(ctx, key)
	return err
}

// unavailable maps any backend failure, including a deadline, to ErrCryptoUnavailable.
func unavailable(ctx context.Context, err error) error {
	if apperrors.Is(err, cryptoDomain.ErrCryptoUnavailable) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return apperrors.Join(cryptoDomain.ErrCryptoUnavailable, ctxErr)
	}
	return apperrors.Join(cryptoDomain.ErrCryptoUnavailable, err)
}

// NewEncryptionKeyUseCase creates the Encryption Gateway. kekChain must hold the unwrapped KEKs.
func NewEncryptionKeyUseCase(
	cfg EncryptionKeyConfig,
	txManager database.TxManager,
	keyRepo EncryptionKeyRepository,
	dekRepo DekRepository,
	keyManager cryptoService.KeyManager,
	aeadManager cryptoService.AEADManager,
	kekChain *cryptoDomain.KekChain,
) EncryptionKeyUseCase {
	return &encryptionKeyUseCase{
		cfg:         cfg,
		txManager:   txManager,
		keyRepo:     keyRepo,
		dekRepo:     dekRepo,
		keyManager:  keyManager,
		aeadManager: aeadManager,
		kekChain:    kekChain,
	}
}
