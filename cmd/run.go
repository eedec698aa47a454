package cmd

import (
	"newsdigest/digest"
	"newsdigest/feeds"
	"newsdigest/mailer"
	"newsdigest/metrics"
	"newsdigest/runner"

	"github.com/urfave/cli/v2"
)

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Sync all feeds and send the digest",
		Description: `Fetches every feed, stores new entries and emails all unsent
entries to the subscribers. When the email cannot be sent the entries are
kept as unsent and will be part of the next digest.`,
		Action: runAction,
	}
}

func runAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	location, err := cfg.Location()
	if err != nil {
		return err
	}

	database, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return err
	}

	renderer, err := digest.NewRenderer(cfg.Template)
	if err != nil {
		return err
	}

	parser := feeds.NewGofeedParser(cfg.Fetch.Timeout, cfg.Fetch.UserAgent)
	syncer := feeds.NewSyncer(database, parser, location)

	smtp := mailer.NewSMTPMailer(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		TLS:      cfg.SMTP.TLS,
		Timeout:  cfg.SMTP.Timeout,
	})

	r := runner.New(database, syncer, renderer, smtp, metrics.New(), runner.Options{
		Subject:        cfg.Subject,
		From:           cfg.SMTP.From,
		PushgatewayURL: cfg.Metrics.PushgatewayURL,
		Job:            cfg.Metrics.Job,
	})

	return r.Run(ctx.Context)
}
