package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:        "migrate",
		Usage:       "Run database migrations",
		Description: `Runs database migrations on the configured database. Will create the SQLite database if it does not exist.`,
		Action: func(ctx *cli.Context) error {
			database, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.Migrate(); err != nil {
				return err
			}
			log.Info("Database migrated")
			return nil
		},
	}
}

func rollbackCmd() *cli.Command {
	return &cli.Command{
		Name:        "rollback",
		Usage:       "Rollback database migration",
		Description: `Rolls back the last database migration`,
		Action: func(ctx *cli.Context) error {
			database, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.Rollback(); err != nil {
				return err
			}
			log.Info("Rolled back last migration")
			return nil
		},
	}
}
