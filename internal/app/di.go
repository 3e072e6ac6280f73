// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	auditUseCase "github.com/allisson/pseudonymizer/internal/audit/usecase"
	"github.com/allisson/pseudonymizer/internal/config"
	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	cryptoService "github.com/allisson/pseudonymizer/internal/crypto/service"
	cryptoUseCase "github.com/allisson/pseudonymizer/internal/crypto/usecase"
	"github.com/allisson/pseudonymizer/internal/database"
	"github.com/allisson/pseudonymizer/internal/http"
	"github.com/allisson/pseudonymizer/internal/metrics"
	pseudonymHTTP "github.com/allisson/pseudonymizer/internal/pseudonym/http"
	pseudonymUseCase "github.com/allisson/pseudonymizer/internal/pseudonym/usecase"
	"github.com/allisson/pseudonymizer/internal/redis"
	sessionUseCase "github.com/allisson/pseudonymizer/internal/session/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	redisClient     *redis.Client
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Managers
	txManager database.TxManager

	// Crypto
	kmsService              cryptoService.KMSService
	kmsKeeper               cryptoDomain.KMSKeeper
	masterKeyChain          *cryptoDomain.MasterKeyChain
	aeadManager             cryptoService.AEADManager
	keyManager              cryptoService.KeyManager
	kekRepository           cryptoUseCase.KekRepository
	dekRepository           cryptoUseCase.DekRepository
	encryptionKeyRepository cryptoUseCase.EncryptionKeyRepository
	kekUseCase              cryptoUseCase.KekUseCase
	kekChain                *cryptoDomain.KekChain
	encryptionKeyUseCase    cryptoUseCase.EncryptionKeyUseCase

	// Audit
	auditLogRepository auditUseCase.AuditLogRepository
	auditLogUseCase    auditUseCase.AuditLogUseCase

	// Sessions
	sessionRepository sessionUseCase.SessionRepository
	sessionUseCase    sessionUseCase.SessionUseCase
	cleanupWorker     *sessionUseCase.CleanupWorker

	// Pseudonyms
	mappingRepository pseudonymUseCase.MappingRepository
	pseudonymUseCase  pseudonymUseCase.PseudonymUseCase
	pseudonymHandler  *pseudonymHTTP.PseudonymHandler

	// Servers and Workers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                          sync.Mutex
	loggerInit                  sync.Once
	dbInit                      sync.Once
	redisInit                   sync.Once
	metricsProviderInit         sync.Once
	businessMetricsInit         sync.Once
	txManagerInit               sync.Once
	kmsServiceInit              sync.Once
	kmsKeeperInit               sync.Once
	masterKeyChainInit          sync.Once
	aeadManagerInit             sync.Once
	keyManagerInit              sync.Once
	kekRepositoryInit           sync.Once
	dekRepositoryInit           sync.Once
	encryptionKeyRepositoryInit sync.Once
	kekUseCaseInit              sync.Once
	kekChainInit                sync.Once
	encryptionKeyUseCaseInit    sync.Once
	auditLogRepositoryInit      sync.Once
	auditLogUseCaseInit         sync.Once
	sessionRepositoryInit       sync.Once
	sessionUseCaseInit          sync.Once
	cleanupWorkerInit           sync.Once
	mappingRepositoryInit       sync.Once
	pseudonymUseCaseInit        sync.Once
	pseudonymHandlerInit        sync.Once
	httpServerInit              sync.Once
	metricsServerInit           sync.Once
	initErrors                  map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// lazy runs init once, stores its result in target and remembers a failure under name so
// every later call returns the same error.
func lazy[T any](c *Container, once *sync.Once, name string, target *T, init func() (T, error)) (T, error) {
	once.Do(func() {
		value, err := init()
		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.initErrors[name] = err
			return
		}
		*target = value
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if storedErr, exists := c.initErrors[name]; exists {
		var zero T
		return zero, storedErr
	}
	return *target, nil
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	return lazy(c, &c.dbInit, "db", &c.db, c.initDB)
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	return lazy(c, &c.txManagerInit, "txManager", &c.txManager, c.initTxManager)
}

// RedisClient returns the redis client, or nil when REDIS_URL is unset.
func (c *Container) RedisClient() (*redis.Client, error) {
	return lazy(c, &c.redisInit, "redis", &c.redisClient, c.initRedisClient)
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	return lazy(c, &c.metricsProviderInit, "metricsProvider", &c.metricsProvider, c.initMetricsProvider)
}

// BusinessMetrics returns the business metrics recorder. It is a no-op when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	return lazy(c, &c.businessMetricsInit, "businessMetrics", &c.businessMetrics, c.initBusinessMetrics)
}

// HTTPServer returns the HTTP server instance with its router configured.
func (c *Container) HTTPServer() (*http.Server, error) {
	return lazy(c, &c.httpServerInit, "httpServer", &c.httpServer, c.initHTTPServer)
}

// MetricsServer returns the metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	return lazy(c, &c.metricsServerInit, "metricsServer", &c.metricsServer, c.initMetricsServer)
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("redis close: %w", err))
		}
	}

	if c.kmsKeeper != nil {
		if err := c.kmsKeeper.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("kms keeper close: %w", err))
		}
	}

	// Key material is zeroed before the process exits.
	if c.kekChain != nil {
		c.kekChain.Close()
	}
	if c.masterKeyChain != nil {
		c.masterKeyChain.Close()
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	return errors.Join(shutdownErrors...)
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(context.Background(), database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
		PingAttempts:       c.config.StorageRetryAttempts,
		PingInterval:       time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

func (c *Container) initRedisClient() (*redis.Client, error) {
	if c.config.RedisURL == "" {
		return nil, nil
	}

	timeout := 2 * c.config.RedisDialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := redis.New(ctx, redis.Config{
		URL:         c.config.RedisURL,
		PoolSize:    c.config.RedisPoolSize,
		DialTimeout: c.config.RedisDialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	businessMetrics, err := metrics.NewBusinessMetrics(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initHTTPServer creates the HTTP server and registers the readiness components.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	handler, err := c.PseudonymHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get pseudonym handler for http server: %w", err)
	}

	gateway, err := c.EncryptionGateway()
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption gateway for http server: %w", err)
	}

	redisClient, err := c.RedisClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get redis client for http server: %w", err)
	}

	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)
	server.AddReadinessCheck("key_backend", c.keyBackendReady)
	server.AddReadinessCheck("encryption_key", gateway.Ready)
	if redisClient != nil {
		server.AddReadinessCheck("redis", redisClient.Health)
	}

	server.SetupRouter(c.config, handler, metricsProvider)

	return server, nil
}

func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, nil
	}
	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}
