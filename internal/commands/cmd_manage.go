package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"
)

type ReadCmd struct {
	flags *Flags
	all   bool
}

func NewReadCmd(flags *Flags) *ReadCmd {
	return &ReadCmd{flags: flags}
}

func (cmd *ReadCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "read",
		Usage:     "Mark notifications as read",
		UsageText: "alertbot read <id>... | alertbot read --all",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Usage: "mark every notification read", Destination: &cmd.all},
		},
		Action: cmd.run,
	})
	return root
}

func (cmd *ReadCmd) run(ctx context.Context, c *cli.Command) error {
	ids := c.Args().Slice()
	if !cmd.all && len(ids) == 0 {
		return errors.New("read: give at least one id or --all")
	}
	off, err := cmd.flags.openOffline()
	if err != nil {
		return err
	}
	defer off.Close()
	ctx = cliActor(ctx)

	if cmd.all {
		n, err := off.Alerts.MarkAllAsRead(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(c.Root().Writer, "marked %d read\n", n)
		return err
	}
	for _, id := range ids {
		if err := off.Alerts.MarkAsRead(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(c.Root().Writer, "read %s\n", id)
	}
	return nil
}

type CancelCmd struct {
	flags *Flags
}

func NewCancelCmd(flags *Flags) *CancelCmd {
	return &CancelCmd{flags: flags}
}

func (cmd *CancelCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "cancel",
		Aliases:   []string{"rm"},
		Usage:     "Cancel notifications by id",
		UsageText: "alertbot cancel <id>...",
		Description: `Removes the notifications from the store. A running daemon still holds
their triggers; a fire for a removed id is a no-op.`,
		Action: cmd.run,
	})
	return root
}

func (cmd *CancelCmd) run(ctx context.Context, c *cli.Command) error {
	ids := c.Args().Slice()
	if len(ids) == 0 {
		return errors.New("cancel: give at least one id")
	}
	off, err := cmd.flags.openOffline()
	if err != nil {
		return err
	}
	defer off.Close()
	ctx = cliActor(ctx)

	for _, id := range ids {
		if err := off.Alerts.CancelNotification(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(c.Root().Writer, "cancelled %s\n", id)
	}
	return nil
}

type ClearCmd struct {
	flags *Flags
	yes   bool
}

func NewClearCmd(flags *Flags) *ClearCmd {
	return &ClearCmd{flags: flags}
}

func (cmd *ClearCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:  "clear",
		Usage: "Remove every notification",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "confirm", Destination: &cmd.yes},
		},
		Action: cmd.run,
	})
	return root
}

func (cmd *ClearCmd) run(ctx context.Context, c *cli.Command) error {
	if !cmd.yes {
		return errors.New("clear removes every notification; rerun with --yes")
	}
	off, err := cmd.flags.openOffline()
	if err != nil {
		return err
	}
	defer off.Close()

	if err := off.Alerts.ClearAllNotifications(cliActor(ctx)); err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.Root().Writer, "cleared")
	return err
}
