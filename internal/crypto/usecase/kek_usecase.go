package usecase

import (
	"context"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	cryptoService "github.com/allisson/pseudonymizer/internal/crypto/service"
	"github.com/allisson/pseudonymizer/internal/database"
)

type kekUseCase struct {
	txManager  database.TxManager
	kekRepo    KekRepository
	keyManager cryptoService.KeyManager
}

func masterKeyFor(chain *cryptoDomain.MasterKeyChain, id string) (*cryptoDomain.MasterKey, error) {
	if mk, ok := chain.Get(id); ok {
		return mk, nil
	}
	return nil, cryptoDomain.ErrMasterKeyNotFound
}

// Create stores the first KEK. It refuses to run once any KEK exists; use Rotate instead.
func (k *kekUseCase) Create(
	ctx context.Context,
	masterKeyChain *cryptoDomain.MasterKeyChain,
	alg cryptoDomain.Algorithm,
) error {
	return k.addVersion(ctx, masterKeyChain, alg, func(newest *cryptoDomain.Kek) (uint, error) {
		if newest != nil {
			return 0, cryptoDomain.ErrKekAlreadyExists
		}
		return 1, nil
	})
}

// Rotate stores a new KEK one version above the current newest.
func (k *kekUseCase) Rotate(
	ctx context.Context,
	masterKeyChain *cryptoDomain.MasterKeyChain,
	alg cryptoDomain.Algorithm,
) error {
	return k.addVersion(ctx, masterKeyChain, alg, func(newest *cryptoDomain.Kek) (uint, error) {
		if newest == nil {
			return 1, nil
		}
		return newest.Version + 1, nil
	})
}

// addVersion wraps a fresh KEK under the active master key and stores it at the version
// chosen by next, which sees the newest stored KEK or nil.
func (k *kekUseCase) addVersion(
	ctx context.Context,
	masterKeyChain *cryptoDomain.MasterKeyChain,
	alg cryptoDomain.Algorithm,
	next func(newest *cryptoDomain.Kek) (uint, error),
) error {
	masterKey, err := masterKeyFor(masterKeyChain, masterKeyChain.ActiveMasterKeyID())
	if err != nil {
		return err
	}

	return k.txManager.WithTx(ctx, func(ctx context.Context) error {
		keks, err := k.kekRepo.List(ctx)
		if err != nil {
			return err
		}
		var newest *cryptoDomain.Kek
		if len(keks) > 0 {
			newest = keks[0]
		}
		version, err := next(newest)
		if err != nil {
			return err
		}

		kek, err := k.keyManager.CreateKek(masterKey, alg)
		if err != nil {
			return err
		}
		defer cryptoDomain.Zero(kek.Key)

		kek.Version = version
		return k.kekRepo.Create(ctx, &kek)
	})
}

// Unwrap decrypts every stored KEK into a KekChain.
func (k *kekUseCase) Unwrap(
	ctx context.Context,
	masterKeyChain *cryptoDomain.MasterKeyChain,
) (*cryptoDomain.KekChain, error) {
	keks, err := k.kekRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, kek := range keks {
		masterKey, err := masterKeyFor(masterKeyChain, kek.MasterKeyID)
		if err != nil {
			return nil, err
		}
		if kek.Key, err = k.keyManager.DecryptKek(kek, masterKey); err != nil {
			return nil, err
		}
	}
	return cryptoDomain.NewKekChain(keks), nil
}

func (k *kekUseCase) Rewrap(
	ctx context.Context,
	masterKeyChain *cryptoDomain.MasterKeyChain,
) (rewrapped int, err error) {
	activeID := masterKeyChain.ActiveMasterKeyID()
	active, err := masterKeyFor(masterKeyChain, activeID)
	if err != nil {
		return 0, err
	}

	err = k.txManager.WithTx(ctx, func(ctx context.Context) error {
		rewrapped = 0
		keks, err := k.kekRepo.List(ctx)
		if err != nil {
			return err
		}

		for _, kek := range keks {
			if kek.MasterKeyID == activeID {
				continue
			}
			previous, err := masterKeyFor(masterKeyChain, kek.MasterKeyID)
			if err != nil {
				return err
			}
			updated, err := k.keyManager.RewrapKek(kek, previous, active)
			if err != nil {
				return err
			}
			if err := k.kekRepo.Update(ctx, &updated); err != nil {
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

// NewKekUseCase creates a KekUseCase.
func NewKekUseCase(
	txManager database.TxManager,
	kekRepo KekRepository,
	keyManager cryptoService.KeyManager,
) KekUseCase {
	return &kekUseCase{
		txManager:  txManager,
		kekRepo:    kekRepo,
		keyManager: keyManager,
	}
}
