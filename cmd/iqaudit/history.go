package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"iqaudit/internal/config"
	"iqaudit/internal/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent audit runs",
		Long: `Lists recorded audit runs, newest first. By default only runs of the
configured application are shown; use --all for every application.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got: %d", limit)
			}
			sc, ok := config.HistoryConfig(a.v)
			if !ok {
				return errors.New("run history is disabled (history.type is none)")
			}

			store, err := history.NewStore(sc)
			if err != nil {
				return err
			}
			defer store.Close()

			appID := a.v.GetString(config.KeyApplication)
			if all {
				appID = ""
			}
			runs, err := store.RecentRuns(cmd.Context(), appID, limit)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if runs == nil {
					runs = []history.Run{}
				}
				return enc.Encode(runs)
			}
			printRuns(cmd, runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&all, "all", false, "show runs of every application")
	return cmd
}

func printRuns(cmd *cobra.Command, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No audit runs recorded.")
		return
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tAPPLICATION\tSTAGE\tDEPS\tOUTCOME\tACTION\tREPORT")
	for _, r := range runs {
		action := r.PolicyAction
		if action == "" {
			action = "-"
		}
		report := r.ReportURL
		if report == "" {
			report = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.PublicAppID, r.Stage, r.Components, r.Outcome, action, report)
	}
	w.Flush()
}
