// Package commands implements the alertbot command line.
package commands

import (
	"context"
	"io"
	"os"

	"alertbot/internal/alerts"
	"alertbot/internal/app"
	logx "alertbot/pkg/logx"
)

type Flags struct {
	ConfigPath string
	EnvFile    string
	LogLevel   string

	// Stderr receives logs of the offline commands. Nil means os.Stderr.
	Stderr io.Writer
}

const DefaultConfigPath = "./config.json"

func (f *Flags) logger() logx.Logger {
	w := f.Stderr
	if w == nil {
		w = os.Stderr
	}
	return logx.NewWriter(w, f.LogLevel)
}

// openOffline opens the configured store for the management commands.
func (f *Flags) openOffline() (*app.Offline, error) {
	return app.OpenOffline(f.ConfigPath, f.logger())
}

func cliActor(ctx context.Context) context.Context {
	return alerts.WithActor(ctx, "cli")
}
