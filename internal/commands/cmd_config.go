package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"alertbot/internal/config"
)

type ConfigCmd struct {
	flags *Flags
}

func NewConfigCmd(flags *Flags) *ConfigCmd {
	return &ConfigCmd{flags: flags}
}

func (cmd *ConfigCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration commands",
		Commands: []*cli.Command{
			{
				Name:        "check",
				Usage:       "Validate the configuration file",
				Description: "Parses the file, applies ALERTBOT_* overrides and defaults, and reports every invalid field.",
				Action:      cmd.check,
			},
		},
	})
	return root
}

func (cmd *ConfigCmd) check(_ context.Context, c *cli.Command) error {
	w := c.Root().Writer
	cfg, err := config.NewManager(cmd.flags.ConfigPath).Load()
	if err != nil {
		var fe criterio.FieldErrors
		if errors.As(err, &fe) {
			for _, e := range fe {
				fmt.Fprintf(w, "✗ %s: %v\n", e.Field, e.Err)
			}
			return fmt.Errorf("%s: %d invalid field(s)", cmd.flags.ConfigPath, len(fe))
		}
		return err
	}
	fmt.Fprintf(w, "✓ %s is valid (platform %s, storage %s)\n", cmd.flags.ConfigPath, cfg.Platform.Driver, cfg.Storage.Driver)
	return nil
}
