package cmd

import (
	"fmt"

	"newsdigest/db"
	"newsdigest/models"

	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
)

func entryCmd() *cli.Command {
	return &cli.Command{
		Name:  "entry",
		Usage: "Inspect stored entries",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List entries, newest first",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "unsent",
						Usage: "Only list entries that were not sent yet",
					},
					&cli.Int64Flag{
						Name:  "feed",
						Usage: "Only list entries of the feed with this id",
					},
					&cli.IntFlag{
						Name:  "limit",
						Value: 50,
						Usage: "Maximum number of entries, 0 for all",
					},
				},
				Action: func(ctx *cli.Context) error {
					database, err := openDB(ctx)
					if err != nil {
						return err
					}
					defer database.Close()

					var entries []models.EntryWithFeed
					if ctx.IsSet("feed") {
						entries, err = feedEntries(ctx, database, ctx.Int64("feed"))
					} else {
						entries, err = database.ListEntries(ctx.Context, ctx.Bool("unsent"), ctx.Int("limit"))
					}
					if err != nil {
						return err
					}
					for _, e := range entries {
						fmt.Println(e)
					}
					return nil
				},
			},
		},
	}
}

// feedEntries lists the entries of a single feed, honouring --unsent and --limit
func feedEntries(ctx *cli.Context, database *db.DB, feedId int64) ([]models.EntryWithFeed, error) {
	feed, err := database.GetFeed(ctx.Context, feedId)
	if err != nil {
		return nil, err
	}

	entries, err := database.EntriesByFeed(ctx.Context, feed.Id)
	if err != nil {
		return nil, err
	}
	if ctx.Bool("unsent") {
		entries = lo.Reject(entries, func(e models.Entry, _ int) bool { return e.Sent })
	}
	if limit := ctx.Int("limit"); limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return lo.Map(entries, func(e models.Entry, _ int) models.EntryWithFeed {
		return models.EntryWithFeed{Entry: e, FeedName: feed.Name}
	}), nil
}
