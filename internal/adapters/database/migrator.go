package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

type migrator struct {
	db *sqlx.DB

	logger *slog.Logger
}

func NewDatabaseMigrator(db *sqlx.DB, logger *slog.Logger) *migrator {
	return &migrator{
		db:     db,
		logger: logger,
	}
}

// withInstance runs f with a migrate instance bound to schemaName, creating the
// schema if needed. search_path is per connection, so everything runs on one.
func (m *migrator) withInstance(ctx context.Context, schemaName string, f func(instance *migrate.Migrate) error) error {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to db: %w", err)
	}
	defer conn.Close()

	if err := useSchema(ctx, conn, schemaName); err != nil {
		return err
	}

	migrationSource, err := iofs.New(embeddedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	defer migrationSource.Close()

	dbDriver, err := postgres.WithConnection(ctx, conn, &postgres.Config{
		DatabaseName: DB_NAME,
		SchemaName:   schemaName,
	})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	instance, err := migrate.NewWithInstance("iofs", migrationSource, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer instance.Close()

	return f(instance)
}

func useSchema(ctx context.Context, conn *sql.Conn, schemaName string) error {
	quoted := pq.QuoteIdentifier(schemaName)

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoted)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", schemaName, err)
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", quoted)); err != nil {
		return fmt.Errorf("failed to set search path to %s: %w", schemaName, err)
	}
	return nil
}

// Migrate applies every pending migration to schemaName
func (m *migrator) Migrate(ctx context.Context, schemaName string) error {
	logger := m.logger.With(slog.String("schema", schemaName))

	err := m.withInstance(ctx, schemaName, func(instance *migrate.Migrate) error {
		logger.InfoContext(ctx, "Starting migrations")

		err := instance.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.InfoContext(ctx, "No migrations to run")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to migrate up: %w", err)
		}

		version, _, err := instance.Version()
		if err != nil {
			return fmt.Errorf("failed to read version: %w", err)
		}
		logger.InfoContext(ctx, "Migrations completed", slog.Uint64("version", uint64(version)))
		return nil
	})
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Version returns the applied migration version of schemaName, 0 if none
func (m *migrator) Version(ctx context.Context, schemaName string) (uint, bool, error) {
	var version uint
	var dirty bool
	err := m.withInstance(ctx, schemaName, func(instance *migrate.Migrate) error {
		var err error
		version, dirty, err = instance.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			version, dirty = 0, false
			return nil
		}
		return err
	})
	if err != nil {
		return 0, false, fmt.Errorf("migrate: failed to read version: %w", err)
	}
	return version, dirty, nil
}

// rollback reverts every migration in schemaName
func (m *migrator) rollback(ctx context.Context, schemaName string) error {
	return m.withInstance(ctx, schemaName, func(instance *migrate.Migrate) error {
		return instance.Down()
	})
}
