package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/dynresp/config"
)

type rootFlags struct {
	config string
	env    string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "dynresp",
		Short:         "HTTP API whose responses follow the client: JSON, HTML, text, PNG or PDF",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&f.config, "config", "c", "", "config file (default $XDG_CONFIG_HOME/dynresp/config.yaml)")
	cmd.PersistentFlags().StringVar(&f.env, "env", "", "environment name; \"local\" enables debug logging")

	cmd.AddCommand(newRunCmd(f), newRoutesCmd(f), newEventsCmd(f), newVersionCmd(), newHashPasswordCmd())
	return cmd
}

func (f *rootFlags) load() (*config.Config, error) {
	if f.env != "" {
		os.Setenv("DYNRESP_ENV", f.env)
	}
	return config.Load(f.config)
}

func newLogger(cfg *config.Config) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if cfg.Env == config.EnvLocal {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dynresp %s\n", version)
		},
	}
}
