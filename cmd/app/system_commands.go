package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/pseudonymizer/cmd/app/commands"
	"github.com/allisson/pseudonymizer/internal/app"
)

const dateFlagUsage = "YYYY-MM-DD or YYYY-MM-DD HH:MM:SS"

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Serve the pseudonymization API, the metrics endpoint and the session cleanup worker",
			Action: func(ctx context.Context, _ *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Apply pending database migrations",
			Action: withContainer(func(_ context.Context, _ *cli.Command, c *app.Container) error {
				cfg := c.Config()
				return commands.RunMigrations(c.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			}),
		},
		{
			Name:  "clean-audit-logs",
			Usage: "Delete audit log entries older than the given number of days",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Required: true, Usage: "Retention in days"},
				dryRunFlag("Count the entries that would be deleted without deleting"),
				formatFlag(),
			},
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, c *app.Container) error {
				auditLogUseCase, err := c.AuditLogUseCase()
				if err != nil {
					return err
				}
				return commands.RunCleanAuditLogs(
					ctx, auditLogUseCase, c.Logger(), os.Stdout,
					int(cmd.Int("days")), cmd.Bool("dry-run"), cmd.String("format"),
				)
			}),
		},
		{
			Name:  "verify-audit-logs",
			Usage: "Check the HMAC signature of every audit log entry in a date range",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "start-date", Aliases: []string{"s"}, Usage: "Range start, " + dateFlagUsage},
				&cli.StringFlag{Name: "end-date", Aliases: []string{"e"}, Usage: "Range end, " + dateFlagUsage},
				formatFlag(),
			},
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, c *app.Container) error {
				auditLogUseCase, err := c.AuditLogUseCase()
				if err != nil {
					return err
				}
				return commands.RunVerifyAuditLogs(
					ctx, auditLogUseCase, c.Logger(), os.Stdout,
					cmd.String("start-date"), cmd.String("end-date"), cmd.String("format"),
				)
			}),
		},
	}
}
