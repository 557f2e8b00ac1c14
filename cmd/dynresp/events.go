package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/dynresp/audit"
)

func newEventsCmd(f *rootFlags) *cobra.Command {
	var (
		filter audit.Filter
		since  time.Duration
		prune  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent pipeline events from the audit database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load()
			if err != nil {
				return err
			}
			if cfg.Audit.DBPath == "" {
				return errors.New("audit.db_path is not set")
			}
			db, err := audit.Open(cfg.Audit.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			store := audit.NewSQLiteLogger(db)
			defer store.Close()
			if err := store.Init(); err != nil {
				return err
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if prune > 0 {
				n, err := store.Cleanup(ctx, prune)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "pruned %d events older than %s\n", n, prune)
				return nil
			}

			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			entries, err := store.Query(ctx, filter)
			if err != nil {
				return err
			}
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("TIME", "REQUEST", "METHOD", "PATH", "STATE", "REPR", "STATUS", "MS", "ERROR")
			for _, e := range entries {
				t.Row(
					time.UnixMilli(e.Timestamp).Format(time.RFC3339),
					shortID(e.RequestID), e.Method, e.Path, e.State, e.Representation,
					strconv.Itoa(e.Status), strconv.FormatInt(e.DurationMs, 10), e.Error,
				)
			}
			fmt.Fprintln(out, t.Render())
			return nil
		},
	}
	fl := cmd.Flags()
	fl.IntVarP(&filter.Limit, "limit", "n", 50, "maximum rows")
	fl.StringVar(&filter.Path, "path", "", "only this request path")
	fl.StringVar(&filter.State, "state", "", "only this state (rendered, not_found, internal_error, ...)")
	fl.StringVar(&filter.RequestID, "request", "", "only this request id")
	fl.IntVar(&filter.MinStatus, "min-status", 0, "only statuses at or above this value")
	fl.DurationVar(&since, "since", 0, "only events newer than this")
	fl.DurationVar(&prune, "prune", 0, "delete events older than this instead of listing")
	return cmd
}

func shortID(id string) string {
	if len(id) > 13 {
		return id[len(id)-12:]
	}
	return id
}
