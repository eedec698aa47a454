package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	log "github.com/sirupsen/logrus"
)

//go:embed migrations
var fs embed.FS

// Migrate runs the database migrations using golang-migrate
func (db *DB) Migrate() error {
	m, err := db.migrator()
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err == nil {
		log.WithFields(log.Fields{
			"version": version,
			"dirty":   dirty,
		}).Debug("Database migrated")
	}

	return nil
}

// Rollback rolls back the last applied migration
func (db *DB) Rollback() error {
	m, err := db.migrator()
	if err != nil {
		return err
	}

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}

	return nil
}

// migrator builds a migrate instance on top of the open connection. The
// instance is never closed since that would close the shared connection.
func (db *DB) migrator() (*migrate.Migrate, error) {
	dir := "migrations/sqlite"
	name := "sqlite"
	if db.postgres {
		dir = "migrations/postgres"
		name = "postgres"
	}

	// Create a new source instance using the embedded migrations
	d, err := iofs.New(fs, dir)
	if err != nil {
		return nil, err
	}

	var driver database.Driver
	if db.postgres {
		driver, err = postgres.WithInstance(db.conn, &postgres.Config{})
	} else {
		driver, err = sqlite.WithInstance(db.conn, &sqlite.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, name, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return m, nil
}
