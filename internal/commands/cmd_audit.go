package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"
)

type AuditCmd struct {
	flags *Flags
}

func NewAuditCmd(flags *Flags) *AuditCmd {
	return &AuditCmd{flags: flags}
}

func (cmd *AuditCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:  "audit",
		Usage: "Show the operator audit log, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "maximum entries", Value: 20},
		},
		Action: cmd.run,
	})
	return root
}

func (cmd *AuditCmd) run(ctx context.Context, c *cli.Command) error {
	off, err := cmd.flags.openOffline()
	if err != nil {
		return err
	}
	defer off.Close()

	entries, err := off.Store.ListAudit(ctx, int(c.Int("limit")))
	if err != nil {
		return fmt.Errorf("list audit: %w", err)
	}
	tw := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tACTOR\tACTION\tTARGET\tRESULT")
	for _, e := range entries {
		result := "ok"
		if !e.OK {
			result = "error: " + e.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.At.Local().Format(time.DateTime), e.Actor, e.Action, dash(e.Target), result)
	}
	return tw.Flush()
}
