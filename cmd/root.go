package cmd

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"newsdigest/config"
	"newsdigest/db"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "newsdigest",
		Usage: "Sync RSS/Atom feeds and email new entries as a digest",
		Description: `Fetches every configured feed, stores the entries that were not
		seen before and sends all unsent entries to the subscribers in a
		single email. Meant to be run periodically, e.g. from cron.

		Running newsdigest without a command performs one run.

		Flags can generally be set via environment variables, e.g.:

		--database => NEWSDIGEST_DATABASE=newsdigest.db
		--config => NEWSDIGEST_CONFIG=newsdigest.toml
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Value:   "newsdigest.db",
				Usage:   "SQLite database file or postgres:// connection URL",
				EnvVars: []string{"NEWSDIGEST_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "newsdigest.toml",
				Usage:   "Path to the configuration file",
				EnvVars: []string{"NEWSDIGEST_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"NEWSDIGEST_LOG_LEVEL"},
			},
		},
		Before: func(ctx *cli.Context) error {
			level, err := log.ParseLevel(ctx.String("log-level"))
			if err != nil {
				return err
			}
			log.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			runCmd(),
			migrateCmd(),
			rollbackCmd(),
			feedCmd(),
			subscriberCmd(),
			entryCmd(),
		},
		Action: runAction,
	}
}

// Execute runs the application with a context cancelled on SIGINT/SIGTERM
func Execute() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.WithError(err).Warn("Could not load .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootApp().RunContext(ctx, os.Args); err != nil {
		log.WithError(err).Error("newsdigest failed")
		stop()
		os.Exit(1)
	}
}

func openDB(ctx *cli.Context) (*db.DB, error) {
	database := ctx.String("database")
	log.WithField("database", redact(database)).Debug("Database configured")
	return db.NewDB(database)
}

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	return config.LoadConfig(ctx.String("config"))
}

// redact hides the password of a connection URL
func redact(database string) string {
	if u, err := url.Parse(database); err == nil && u.User != nil {
		return u.Redacted()
	}
	return database
}
