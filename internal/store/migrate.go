package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/ashureev/bot-console/migrations"
)

// ApplyMigrations runs the embedded migrations for driver against db.
// The migrator is not closed because that would close db.
func ApplyMigrations(db *sql.DB, driver string, logger *slog.Logger) error {
	if db == nil {
		return errors.New("database connection is nil, cannot apply migrations")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var (
		dir      string
		dbDriver database.Driver
		err      error
	)
	switch driver {
	case DriverSQLite:
		dir = "sqlite"
		dbDriver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	case DriverPostgres:
		dir = "postgres"
		dbDriver, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return fmt.Errorf("create %s migration driver: %w", driver, err)
	}

	sourceDriver, err := iofs.New(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("create embed source driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, driver, dbDriver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("No database migrations to apply")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	logger.Info("Database migrations applied", "driver", driver)
	return nil
}
