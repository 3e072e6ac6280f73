package app

import (
	"fmt"

	"github.com/allisson/pseudonymizer/internal/detection"
	pseudonymHTTP "github.com/allisson/pseudonymizer/internal/pseudonym/http"
	pseudonymRepository "github.com/allisson/pseudonymizer/internal/pseudonym/repository"
	pseudonymService "github.com/allisson/pseudonymizer/internal/pseudonym/service"
	pseudonymUseCase "github.com/allisson/pseudonymizer/internal/pseudonym/usecase"
)

// MappingRepository returns the Mapping Store.
func (c *Container) MappingRepository() (pseudonymUseCase.MappingRepository, error) {
	return lazy(c, &c.mappingRepositoryInit, "mappingRepository", &c.mappingRepository, c.initMappingRepository)
}

// DetectionPipeline returns a new detection pipeline built from configuration.
func (c *Container) DetectionPipeline() (*detection.Pipeline, error) {
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}

	return detection.NewDefaultPipeline(
		detection.Config{
			HeaderWindow:    c.config.DetectionHeaderWindow,
			SignatureWindow: c.config.DetectionSignatureWindow,
			SignatureTitles: c.config.DetectionSignatureTitles,
			Acronyms:        c.config.DetectionAcronyms,
		},
		c.Logger(),
		detection.WithEntityRecorder(businessMetrics),
	), nil
}

// PseudonymUseCase returns the Substitution and Reversal Engines.
func (c *Container) PseudonymUseCase() (pseudonymUseCase.PseudonymUseCase, error) {
	return lazy(c, &c.pseudonymUseCaseInit, "pseudonymUseCase", &c.pseudonymUseCase, c.initPseudonymUseCase)
}

// PseudonymHandler returns the HTTP handler of the pseudonymization API.
func (c *Container) PseudonymHandler() (*pseudonymHTTP.PseudonymHandler, error) {
	return lazy(c, &c.pseudonymHandlerInit, "pseudonymHandler", &c.pseudonymHandler, c.initPseudonymHandler)
}

func (c *Container) initMappingRepository() (pseudonymUseCase.MappingRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for mapping repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return pseudonymRepository.NewPostgreSQLMappingRepository(db), nil
	case "mysql":
		return pseudonymRepository.NewMySQLMappingRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initPseudonymUseCase() (pseudonymUseCase.PseudonymUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for pseudonym use case: %w", err)
	}

	mappingRepository, err := c.MappingRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping repository: %w", err)
	}

	sessions, err := c.SessionUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get session use case for pseudonym use case: %w", err)
	}

	pipeline, err := c.DetectionPipeline()
	if err != nil {
		return nil, fmt.Errorf("failed to build detection pipeline: %w", err)
	}

	gateway, err := c.EncryptionGateway()
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption gateway for pseudonym use case: %w", err)
	}

	audit, err := c.AuditLogUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log use case for pseudonym use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}

	useCase := pseudonymUseCase.NewPseudonymUseCase(
		pseudonymUseCase.Config{
			MaxTextLength:           c.config.MaxTextLength,
			MaxPseudonymsPerSession: c.config.MaxPseudonymsPerSession,
			RevealConcurrency:       c.config.RevealConcurrency,
			LazyCleanup:             c.config.SessionLazyCleanup,
			NameVariants:            c.config.DetectionNameVariants,
			Retry:                   c.StorageRetryConfig(),
		},
		txManager,
		mappingRepository,
		sessions,
		pipeline,
		pseudonymService.NewTokenGenerator(),
		pseudonymService.NewValueHasher(),
		gateway,
		audit,
		c.Logger(),
	)
	return pseudonymUseCase.NewPseudonymUseCaseWithMetrics(useCase, businessMetrics), nil
}

func (c *Container) initPseudonymHandler() (*pseudonymHTTP.PseudonymHandler, error) {
	useCase, err := c.PseudonymUseCase()
	if err != nil {
		return nil, err
	}

	sessions, err := c.SessionUseCase()
	if err != nil {
		return nil, err
	}

	return pseudonymHTTP.NewPseudonymHandler(useCase, sessions, c.Logger()), nil
}
