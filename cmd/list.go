package cmd

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/farfarfun/funinstall/internal/config"
	"github.com/farfarfun/funinstall/internal/installer"
	"github.com/farfarfun/funinstall/internal/logger"
	"github.com/farfarfun/funinstall/internal/packages"
)

// listCmd shows catalog packages together with what is installed right now.
var listCmd = &cobra.Command{
	Use:   "list [package...]",
	Short: "List packages and their installed versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		recipes := a.catalog.Recipes()
		if len(args) > 0 {
			recipes = recipes[:0]
			for _, name := range args {
				r, err := packages.Lookup(a.catalog, name)
				if err != nil {
					return err
				}
				recipes = append(recipes, r)
			}
		}

		rows := probeAll(cmd.Context(), recipes, a.env)
		return writeList(cmd.OutOrStdout(), rows)
	},
}

// listRow is one line of `funinstall list`.
type listRow struct {
	recipe config.Recipe
	state  installer.InstalledState
	err    error
}

// probeAll probes every recipe concurrently; rows keep the order of recipes.
func probeAll(ctx context.Context, recipes []config.Recipe, env packages.Env) []listRow {
	rows := make([]listRow, len(recipes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, r := range recipes {
		g.Go(func() error {
			rows[i].recipe = r
			inst, err := packages.New(r, env)
			if err != nil {
				rows[i].err = err
				return nil
			}
			rows[i].state, rows[i].err = inst.ProbePresence(gctx)
			if rows[i].err != nil {
				logger.Debug("[DEBUG] Probing %s failed: %v\n", r.Name, rows[i].err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return rows
}

func writeList(w io.Writer, rows []listRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tSTATUS\tVERSION\tDESCRIPTION")
	for _, row := range rows {
		version := row.state.Version
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", row.recipe.Name, row.recipe.Kind, status(row), version, row.recipe.Description)
	}
	return tw.Flush()
}

func status(row listRow) string {
	switch {
	case row.err != nil:
		return "error"
	case !row.state.Present:
		return "not installed"
	case row.state.Managed:
		return "installed"
	default:
		return "external"
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
}
