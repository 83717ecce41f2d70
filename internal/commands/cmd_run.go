package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"alertbot/internal/app"
)

type RunCmd struct {
	flags       *Flags
	stopTimeout time.Duration
}

func NewRunCmd(flags *Flags) *RunCmd {
	return &RunCmd{flags: flags}
}

func (cmd *RunCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:  "run",
		Usage: "Run the alert daemon (default)",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:        "stop-timeout",
				Usage:       "upper bound for graceful shutdown",
				Value:       10 * time.Second,
				Destination: &cmd.stopTimeout,
			},
		},
		Action: cmd.run,
	})
	return root
}

func (cmd *RunCmd) run(ctx context.Context, _ *cli.Command) error {
	a, err := app.NewApp(cmd.flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	reason := app.StopAppStop
	select {
	case sig := <-sigCh:
		reason = app.StopSIGINT
		if sig == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		if a.Err() != nil {
			reason = app.StopFatalError
		}
	case <-ctx.Done():
	}

	timeout := cmd.stopTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = a.Stop(stopCtx, reason)

	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}
