package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"alertbot/internal/alerts"
)

type ListCmd struct {
	flags *Flags

	unread     bool
	jsonOutput bool
	category   string
}

func NewListCmd(flags *Flags) *ListCmd {
	return &ListCmd{flags: flags}
}

func (cmd *ListCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "list",
		Aliases:   []string{"ls"},
		Usage:     "List notifications, most recent first",
		UsageText: "alertbot list [--unread] [--category weather] [--limit N] [--json]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "unread", Usage: "only unread notifications", Destination: &cmd.unread},
			&cli.StringFlag{Name: "category", Usage: "filter by category", Destination: &cmd.category},
			&cli.IntFlag{Name: "limit", Usage: "maximum rows, 0 for all"},
			&cli.BoolFlag{Name: "json", Usage: "output as JSON lines", Destination: &cmd.jsonOutput},
		},
		Action: cmd.run,
	})
	return root
}

func (cmd *ListCmd) run(ctx context.Context, c *cli.Command) error {
	var cat alerts.Category
	if cmd.category != "" {
		parsed, err := alerts.ParseCategory(cmd.category)
		if err != nil {
			return err
		}
		cat = parsed
	}

	off, err := cmd.flags.openOffline()
	if err != nil {
		return err
	}
	defer off.Close()

	list, err := off.Alerts.Notifications(ctx)
	if err != nil {
		return fmt.Errorf("list notifications: %w", err)
	}
	filtered := list[:0]
	for _, n := range list {
		if cmd.unread && n.Read {
			continue
		}
		if cat != "" && n.Category != cat {
			continue
		}
		filtered = append(filtered, n)
	}
	if limit := int(c.Int("limit")); limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}

	w := c.Root().Writer
	if cmd.jsonOutput {
		enc := json.NewEncoder(w)
		for _, n := range filtered {
			if err := enc.Encode(n); err != nil {
				return err
			}
		}
		return nil
	}
	if len(filtered) == 0 {
		_, err := fmt.Fprintln(w, "No notifications")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tSEVERITY\tSTATE\tREAD\tWHEN\tTITLE")
	now := time.Now()
	for _, n := range filtered {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			n.ID, n.Category, dash(string(n.Severity)), n.State,
			strconv.FormatBool(n.Read), when(n, now), n.Title)
	}
	return tw.Flush()
}

func when(n alerts.Notification, now time.Time) string {
	if n.State == alerts.StateDelivered && !n.DeliveredAt.IsZero() {
		return humanize.RelTime(n.DeliveredAt, now, "ago", "from now")
	}
	return humanize.RelTime(n.FireAt, now, "ago", "from now")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

type UnreadCmd struct {
	flags *Flags
}

func NewUnreadCmd(flags *Flags) *UnreadCmd {
	return &UnreadCmd{flags: flags}
}

func (cmd *UnreadCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:   "unread",
		Usage:  "Print the unread notification count",
		Action: cmd.run,
	})
	return root
}

func (cmd *UnreadCmd) run(ctx context.Context, c *cli.Command) error {
	off, err := cmd.flags.openOffline()
	if err != nil {
		return err
	}
	defer off.Close()

	n, err := off.Alerts.UnreadCount(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.Root().Writer, n)
	return err
}
