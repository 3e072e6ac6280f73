package app

import (
	"context"
	"fmt"
	"time"

	"github.com/allisson/pseudonymizer/internal/database"
	"github.com/allisson/pseudonymizer/internal/redis"
	sessionRepository "github.com/allisson/pseudonymizer/internal/session/repository"
	sessionUseCase "github.com/allisson/pseudonymizer/internal/session/usecase"
)

// redisLocker adapts the redis client to the cleanup worker's Locker.
type redisLocker struct {
	client *redis.Client
}

func (l redisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (sessionUseCase.Lock, error) {
	lock, err := l.client.TryLock(ctx, key, ttl)
	if err != nil || lock == nil {
		// A typed nil would not compare equal to nil in the worker.
		return nil, err
	}
	return lock, nil
}

// StorageRetryConfig returns the retry policy applied to transient storage errors.
func (c *Container) StorageRetryConfig() database.RetryConfig {
	retry := database.DefaultRetryConfig()
	if c.config.StorageRetryAttempts > 0 {
		retry.Attempts = c.config.StorageRetryAttempts
	}
	if c.config.StorageRetryBaseDelay > 0 {
		retry.BaseDelay = c.config.StorageRetryBaseDelay
	}
	return retry
}

// SessionRepository returns the session repository.
func (c *Container) SessionRepository() (sessionUseCase.SessionRepository, error) {
	return lazy(c, &c.sessionRepositoryInit, "sessionRepository", &c.sessionRepository, c.initSessionRepository)
}

// SessionUseCase returns the Session Manager.
func (c *Container) SessionUseCase() (sessionUseCase.SessionUseCase, error) {
	return lazy(c, &c.sessionUseCaseInit, "sessionUseCase", &c.sessionUseCase, c.initSessionUseCase)
}

// CleanupWorker returns the scheduled purge of expired sessions.
func (c *Container) CleanupWorker() (*sessionUseCase.CleanupWorker, error) {
	return lazy(c, &c.cleanupWorkerInit, "cleanupWorker", &c.cleanupWorker, c.initCleanupWorker)
}

func (c *Container) initSessionRepository() (sessionUseCase.SessionRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for session repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return sessionRepository.NewPostgreSQLSessionRepository(db), nil
	case "mysql":
		return sessionRepository.NewMySQLSessionRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initSessionUseCase() (sessionUseCase.SessionUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for session use case: %w", err)
	}

	repository, err := c.SessionRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get session repository: %w", err)
	}

	gateway, err := c.EncryptionGateway()
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption gateway for session use case: %w", err)
	}

	audit, err := c.AuditLogUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log use case for session use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}

	useCase := sessionUseCase.NewSessionUseCase(
		sessionUseCase.Config{
			DefaultTTL: c.config.SessionTTL,
			MaxTTL:     c.config.SessionMaxTTL,
			BatchSize:  c.config.SessionCleanupBatchSize,
			Retry:      c.StorageRetryConfig(),
		},
		txManager,
		repository,
		gateway,
		audit,
		c.Logger(),
	)
	return sessionUseCase.NewSessionUseCaseWithMetrics(useCase, businessMetrics), nil
}

func (c *Container) initCleanupWorker() (*sessionUseCase.CleanupWorker, error) {
	useCase, err := c.SessionUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get session use case for cleanup worker: %w", err)
	}

	redisClient, err := c.RedisClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get redis client for cleanup worker: %w", err)
	}

	var locker sessionUseCase.Locker
	if redisClient != nil {
		locker = redisLocker{client: redisClient}
	}

	return sessionUseCase.NewCleanupWorker(
		sessionUseCase.CleanupConfig{Interval: c.config.SessionCleanupInterval},
		useCase,
		locker,
		c.Logger(),
	), nil
}
