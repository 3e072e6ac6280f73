package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/pseudonymizer/cmd/app/commands"
	"github.com/allisson/pseudonymizer/internal/app"
)

func getSessionCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "clean-expired-sessions",
			Usage: "Purge expired sessions together with their mappings",
			Flags: []cli.Flag{
				dryRunFlag("Count the sessions that would be purged without purging"),
				formatFlag(),
			},
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, c *app.Container) error {
				sessionUseCase, err := c.SessionUseCase()
				if err != nil {
					return err
				}
				return commands.RunCleanExpiredSessions(
					ctx, sessionUseCase, c.Logger(), os.Stdout, cmd.Bool("dry-run"), cmd.String("format"),
				)
			}),
		},
	}
}
