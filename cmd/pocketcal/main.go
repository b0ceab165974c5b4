package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/pocketcal/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logOutput  io.Writer
}

// load reads the configuration and builds the process logger from it.
func (o *rootOptions) load() (config.Config, *slog.Logger, error) {
	path := o.configPath
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, newLogger(o.logOutput, cfg.Log.Level), nil
}

func newRootCommand(logOutput io.Writer) *cobra.Command {
	opts := &rootOptions{logOutput: logOutput}
	root := &cobra.Command{
		Use:           "pocketcal",
		Short:         "Personal calendar with recurring events, sync and text extraction",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration file (default "+config.DefaultPath+")")

	root.AddCommand(
		newServeCommand(opts),
		newSyncCommand(opts),
		newInstancesCommand(opts),
		newImportCommand(opts),
		newExportCommand(opts),
		newMigrateCommand(opts),
	)
	return root
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
