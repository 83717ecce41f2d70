package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"alertbot/internal/config"
)

// New builds the root command. Without a subcommand it runs the daemon.
func New(flags *Flags, version string) *cli.Command {
	root := &cli.Command{
		Name:    "alertbot",
		Usage:   "Schedule and deliver hazard alerts and reminders",
		Version: version,
		Description: `alertbot runs a Telegram bot that schedules weather, seismic, flood and
NDMA alerts plus local reminders, and delivers them at their fire time.

Run 'alertbot' or 'alertbot run' to start the daemon. The other commands
open the configured store directly:

  sqlite, postgres  shared with a running daemon
  file              only while the daemon is stopped
  memory            not available; it lives inside the daemon`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file (json or yaml)",
				Sources:     cli.EnvVars("ALERTBOT_CONFIG"),
				Value:       DefaultConfigPath,
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "env-file",
				Usage:       "dotenv file loaded before the config",
				Sources:     cli.EnvVars("ALERTBOT_ENV_FILE"),
				Value:       ".env",
				Destination: &flags.EnvFile,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level of management commands (trace, debug, info, warn, error)",
				Value:       "warn",
				Destination: &flags.LogLevel,
			},
		},
		Before: func(ctx context.Context, _ *cli.Command) (context.Context, error) {
			if err := config.LoadDotEnv(flags.EnvFile); err != nil {
				return ctx, fmt.Errorf("load env file: %w", err)
			}
			return ctx, nil
		},
	}

	run := NewRunCmd(flags)
	root = run.Register(root)
	root = NewListCmd(flags).Register(root)
	root = NewUnreadCmd(flags).Register(root)
	root = NewReadCmd(flags).Register(root)
	root = NewCancelCmd(flags).Register(root)
	root = NewClearCmd(flags).Register(root)
	root = NewAuditCmd(flags).Register(root)
	root = NewConfigCmd(flags).Register(root)

	root.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'alertbot --help' for usage", c.Args().First())
		}
		return run.run(ctx, c)
	}
	return root
}
