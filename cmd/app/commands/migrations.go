package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// migrationTarget returns the migration source and database URL for driver.
func migrationTarget(driver, connectionString string) (source, databaseURL string, err error) {
	switch driver {
	case "postgres":
		return "file://migrations/postgresql", connectionString, nil
	case "mysql":
		return "file://migrations/mysql", "mysql://" + connectionString, nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// RunMigrations applies all pending migrations for driver. No pending migrations is not an error.
func RunMigrations(logger *slog.Logger, driver, connectionString string) (err error) {
	source, databaseURL, err := migrationTarget(driver, connectionString)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	logger.Info("running database migrations", slog.String("driver", driver), slog.String("source", source))

	m, err := migrate.New(source, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		sourceErr, dbErr := m.Close()
		if closeErr := errors.Join(sourceErr, dbErr); closeErr != nil {
			logger.Error("failed to close migrate", slog.Any("error", closeErr))
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	logger.Info("migrations completed successfully", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	return nil
}
