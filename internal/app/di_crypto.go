package app

import (
	"context"
	"fmt"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	cryptoRepository "github.com/allisson/pseudonymizer/internal/crypto/repository"
	cryptoService "github.com/allisson/pseudonymizer/internal/crypto/service"
	cryptoUseCase "github.com/allisson/pseudonymizer/internal/crypto/usecase"
)

// keyBackendProbe is wrapped by the KMS keeper to check the backend is reachable.
var keyBackendProbe = []byte("readiness-probe")

// KMSService returns the KMS service.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// KMSKeeper returns the keeper that unwraps master keys, or nil when KMS_PROVIDER is unset
// and master keys are read as plain base64.
func (c *Container) KMSKeeper() (cryptoDomain.KMSKeeper, error) {
	return lazy(c, &c.kmsKeeperInit, "kmsKeeper", &c.kmsKeeper, c.initKMSKeeper)
}

// MasterKeyChain returns the master key chain loaded from environment variables.
func (c *Container) MasterKeyChain() (*cryptoDomain.MasterKeyChain, error) {
	return lazy(c, &c.masterKeyChainInit, "masterKeyChain", &c.masterKeyChain, c.initMasterKeyChain)
}

// AEADManager returns the AEAD manager service.
func (c *Container) AEADManager() cryptoService.AEADManager {
	c.aeadManagerInit.Do(func() {
		c.aeadManager = cryptoService.NewAEADManager()
	})
	return c.aeadManager
}

// KeyManager returns the key manager service.
func (c *Container) KeyManager() cryptoService.KeyManager {
	c.keyManagerInit.Do(func() {
		c.keyManager = cryptoService.NewKeyManager(c.AEADManager())
	})
	return c.keyManager
}

// KekRepository returns the KEK repository.
func (c *Container) KekRepository() (cryptoUseCase.KekRepository, error) {
	return lazy(c, &c.kekRepositoryInit, "kekRepository", &c.kekRepository, c.initKekRepository)
}

// DekRepository returns the DEK repository.
func (c *Container) DekRepository() (cryptoUseCase.DekRepository, error) {
	return lazy(c, &c.dekRepositoryInit, "dekRepository", &c.dekRepository, c.initDekRepository)
}

// EncryptionKeyRepository returns the encryption key version repository.
func (c *Container) EncryptionKeyRepository() (cryptoUseCase.EncryptionKeyRepository, error) {
	return lazy(
		c,
		&c.encryptionKeyRepositoryInit,
		"encryptionKeyRepository",
		&c.encryptionKeyRepository,
		c.initEncryptionKeyRepository,
	)
}

// KekUseCase returns the KEK use case.
func (c *Container) KekUseCase() (cryptoUseCase.KekUseCase, error) {
	return lazy(c, &c.kekUseCaseInit, "kekUseCase", &c.kekUseCase, c.initKekUseCase)
}

// KekChain returns every KEK unwrapped with the master key chain.
func (c *Container) KekChain() (*cryptoDomain.KekChain, error) {
	return lazy(c, &c.kekChainInit, "kekChain", &c.kekChain, c.initKekChain)
}

// EncryptionKeyUseCase returns the Encryption Gateway with key lifecycle management.
func (c *Container) EncryptionKeyUseCase() (cryptoUseCase.EncryptionKeyUseCase, error) {
	return lazy(
		c,
		&c.encryptionKeyUseCaseInit,
		"encryptionKeyUseCase",
		&c.encryptionKeyUseCase,
		c.initEncryptionKeyUseCase,
	)
}

// EncryptionGateway returns the Encryption Gateway used by sessions and mappings.
func (c *Container) EncryptionGateway() (cryptoUseCase.EncryptionGateway, error) {
	return c.EncryptionKeyUseCase()
}

func (c *Container) initKMSKeeper() (cryptoDomain.KMSKeeper, error) {
	if c.config.KMSProvider == "" {
		return nil, nil
	}
	if c.config.KMSKeyURI == "" {
		return nil, fmt.Errorf("KMS_KEY_URI is required when KMS_PROVIDER is %q", c.config.KMSProvider)
	}
	return c.KMSService().OpenKeeper(context.Background(), c.config.KMSKeyURI)
}

func (c *Container) initMasterKeyChain() (*cryptoDomain.MasterKeyChain, error) {
	keeper, err := c.KMSKeeper()
	if err != nil {
		return nil, fmt.Errorf("failed to open kms keeper: %w", err)
	}

	masterKeyChain, err := cryptoDomain.LoadMasterKeyChain(
		context.Background(),
		c.config.MasterKeys,
		c.config.ActiveMasterKeyID,
		keeper,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key chain: %w", err)
	}

	c.Logger().Info("master key chain loaded",
		"active_master_key_id", masterKeyChain.ActiveMasterKeyID(),
		"kms", keeper != nil,
	)
	return masterKeyChain, nil
}

func (c *Container) initKekRepository() (cryptoUseCase.KekRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for kek repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return cryptoRepository.NewPostgreSQLKekRepository(db), nil
	case "mysql":
		return cryptoRepository.NewMySQLKekRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initDekRepository() (cryptoUseCase.DekRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for dek repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return cryptoRepository.NewPostgreSQLDekRepository(db), nil
	case "mysql":
		return cryptoRepository.NewMySQLDekRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initEncryptionKeyRepository() (cryptoUseCase.EncryptionKeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for encryption key repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return cryptoRepository.NewPostgreSQLEncryptionKeyRepository(db), nil
	case "mysql":
		return cryptoRepository.NewMySQLEncryptionKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initKekUseCase() (cryptoUseCase.KekUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for kek use case: %w", err)
	}

	kekRepository, err := c.KekRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get kek repository for kek use case: %w", err)
	}

	return cryptoUseCase.NewKekUseCase(txManager, kekRepository, c.KeyManager()), nil
}

func (c *Container) initKekChain() (*cryptoDomain.KekChain, error) {
	kekUseCase, err := c.KekUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get kek use case: %w", err)
	}

	masterKeyChain, err := c.MasterKeyChain()
	if err != nil {
		return nil, fmt.Errorf("failed to get master key chain: %w", err)
	}

	kekChain, err := kekUseCase.Unwrap(context.Background(), masterKeyChain)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap keks: %w", err)
	}
	return kekChain, nil
}

func (c *Container) initEncryptionKeyUseCase() (cryptoUseCase.EncryptionKeyUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for encryption key use case: %w", err)
	}

	keyRepository, err := c.EncryptionKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption key repository: %w", err)
	}

	dekRepository, err := c.DekRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get dek repository: %w", err)
	}

	kekChain, err := c.KekChain()
	if err != nil {
		return nil, err
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}

	useCase := cryptoUseCase.NewEncryptionKeyUseCase(
		cryptoUseCase.EncryptionKeyConfig{
			Name:    c.config.EncryptionKeyName,
			Timeout: c.config.CryptoTimeout,
		},
		txManager,
		keyRepository,
		dekRepository,
		c.KeyManager(),
		c.AEADManager(),
		kekChain,
	)
	return cryptoUseCase.NewEncryptionKeyUseCaseWithMetrics(useCase, businessMetrics), nil
}

// keyBackendReady checks the KMS keeper answers, or that the master keys loaded when no KMS
// is configured.
func (c *Container) keyBackendReady(ctx context.Context) error {
	if _, err := c.MasterKeyChain(); err != nil {
		return err
	}

	keeper, err := c.KMSKeeper()
	if err != nil {
		return err
	}
	if keeper == nil {
		return nil
	}

	if _, err := keeper.Encrypt(ctx, keyBackendProbe); err != nil {
		return fmt.Errorf("kms keeper unreachable: %w", err)
	}
	return nil
}
