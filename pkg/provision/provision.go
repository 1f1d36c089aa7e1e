// Package provision prepares a PostgreSQL database for catalog mirroring: it
// creates the staging schema and the pools of empty holder schemas and holder
// tables the mirror protocol renames into discovered remote identities.
// Provisioning runs at setup time, outside the query hot path.
package provision

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

	"github.com/txn2/trino-materialize/pkg/mirror"
	"github.com/txn2/trino-materialize/pkg/pgexec"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the staging-schema baseline. It is idempotent; already
// applied migrations are skipped.
func Migrate(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("creating postgres driver: %w", err)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}

	slog.Info("staging schema baseline applied", "schema", mirror.StagingSchema)
	return nil
}

// CreateSchemaHolders drops and recreates count empty holder schemas. The
// holder count must cover the number of non-system remote schemas or
// mirroring will run out of holders.
func CreateSchemaHolders(ctx context.Context, exec pgexec.Executor, count int) error {
	for i := 0; i < count; i++ {
		name := mirror.SchemaHolderName(i)
		if err := exec.Exec(ctx, "drop schema if exists "+name+" cascade"); err != nil {
			return fmt.Errorf("dropping schema holder %d: %w", i, err)
		}
		if err := exec.Exec(ctx, "create schema "+name); err != nil {
			return fmt.Errorf("creating schema holder %d: %w", i, err)
		}
	}
	return nil
}

// CreateTableHolders creates count empty holder tables inside the staging
// schema.
func CreateTableHolders(ctx context.Context, exec pgexec.Executor, count int) error {
	for i := 0; i < count; i++ {
		statement := "create table " + mirror.StagingSchema + "." + mirror.TableHolderName(i) + " ()"
		if err := exec.Exec(ctx, statement); err != nil {
			return fmt.Errorf("creating table holder %d: %w", i, err)
		}
	}
	return nil
}
