package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

func feedCmd() *cli.Command {
	return &cli.Command{
		Name:  "feed",
		Usage: "Manage feeds",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a feed",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Feed name shown in the digest",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "url",
						Aliases:  []string{"u"},
						Usage:    "RSS or Atom feed URL",
						Required: true,
					},
				},
				Action: func(ctx *cli.Context) error {
					database, err := openDB(ctx)
					if err != nil {
						return err
					}
					defer database.Close()

					if err := database.Migrate(); err != nil {
						return err
					}

					feed, err := database.CreateFeed(ctx.Context, ctx.String("name"), ctx.String("url"), time.Now())
					if err != nil {
						return err
					}
					fmt.Printf("Added feed %d: %s\n", feed.Id, feed)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List feeds",
				Action: func(ctx *cli.Context) error {
					database, err := openDB(ctx)
					if err != nil {
						return err
					}
					defer database.Close()

					feeds, err := database.ListFeeds(ctx.Context)
					if err != nil {
						return err
					}
					for _, feed := range feeds {
						fmt.Printf("%d\t%s\t%s\t%s\n", feed.Id, feed.Name, feed.Url, feed.LastUpdate.Format(time.RFC3339))
					}
					return nil
				},
			},
		},
	}
}
