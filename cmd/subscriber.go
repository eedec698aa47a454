package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func subscriberCmd() *cli.Command {
	return &cli.Command{
		Name:  "subscriber",
		Usage: "Manage digest subscribers",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a subscriber",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Required: true,
					},
					&cli.StringFlag{
						Name:     "email",
						Aliases:  []string{"e"},
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

					subscriber, err := database.CreateSubscriber(ctx.Context, ctx.String("name"), ctx.String("email"))
					if err != nil {
						return err
					}
					fmt.Printf("Added subscriber %d: %s\n", subscriber.Id, subscriber)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List subscribers",
				Action: func(ctx *cli.Context) error {
					database, err := openDB(ctx)
					if err != nil {
						return err
					}
					defer database.Close()

					subscribers, err := database.ListSubscribers(ctx.Context)
					if err != nil {
						return err
					}
					for _, s := range subscribers {
						fmt.Printf("%d\t%s\n", s.Id, s)
					}
					return nil
				},
			},
		},
	}
}
