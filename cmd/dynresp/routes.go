package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/dynresp/render"
	"github.com/hazyhaar/dynresp/server"
)

func newRoutesCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the routes and the registry used for suggestions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load()
			if err != nil {
				return err
			}
			cfg.Browser.Disabled = true
			views, err := render.NewTemplates(cfg.Templates.Dir)
			if err != nil {
				return err
			}
			srv, err := server.New(cfg, render.New(views), server.WithLogger(newLogger(cfg)))
			if err != nil {
				return err
			}
			if err := srv.MarkReady(); err != nil {
				return err
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("METHOD", "PATH", "ACCESS", "SUMMARY")
			for _, rt := range srv.Routes() {
				t.Row(rt.Method, rt.Pattern, rt.Requires.String(), rt.Summary)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, t.Render())
			fmt.Fprintln(out, "\nRegistry:")
			for _, p := range srv.Registry().Snapshot() {
				fmt.Fprintln(out, "  "+p)
			}
			fmt.Fprintln(out, "\nViews:")
			for _, v := range views.Names() {
				fmt.Fprintln(out, "  "+v)
			}
			return nil
		},
	}
}
