package app

import (
	"fmt"

	auditRepository "github.com/allisson/pseudonymizer/internal/audit/repository"
	auditService "github.com/allisson/pseudonymizer/internal/audit/service"
	auditUseCase "github.com/allisson/pseudonymizer/internal/audit/usecase"
)

// AuditLogRepository returns the audit log repository.
func (c *Container) AuditLogRepository() (auditUseCase.AuditLogRepository, error) {
	return lazy(c, &c.auditLogRepositoryInit, "auditLogRepository", &c.auditLogRepository, c.initAuditLogRepository)
}

// AuditLogUseCase returns the audit log use case. Entries are signed with the active KEK.
func (c *Container) AuditLogUseCase() (auditUseCase.AuditLogUseCase, error) {
	return lazy(c, &c.auditLogUseCaseInit, "auditLogUseCase", &c.auditLogUseCase, c.initAuditLogUseCase)
}

func (c *Container) initAuditLogRepository() (auditUseCase.AuditLogRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for audit log repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return auditRepository.NewPostgreSQLAuditLogRepository(db), nil
	case "mysql":
		return auditRepository.NewMySQLAuditLogRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initAuditLogUseCase() (auditUseCase.AuditLogUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for audit log use case: %w", err)
	}

	repository, err := c.AuditLogRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log repository: %w", err)
	}

	kekChain, err := c.KekChain()
	if err != nil {
		return nil, fmt.Errorf("failed to get kek chain for audit log use case: %w", err)
	}

	return auditUseCase.NewAuditLogUseCase(txManager, repository, auditService.NewSigner(), kekChain), nil
}
