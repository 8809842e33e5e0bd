package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"fluxmedia/internal/backend"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the backend activity log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			sess.history.Restore(cmd.Context())
			entries := sess.history.Refresh(cmd.Context())

			if !cmd.Flags().Changed("limit") {
				limit = sess.cfg.History.Limit
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			if jsonOut {
				return writeJSON(cmd, entries)
			}

			out := cmd.OutOrStdout()
			if fetchedAt, restored := sess.history.FetchedAt(); restored {
				fmt.Fprintf(out, "History refresh failed; showing snapshot from %s\n", fetchedAt.Local().Format(time.DateTime))
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No history yet")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "ID", "FORMAT", "URL", "OUTPUT"},
				historyRows(entries),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many entries (0 = all); defaults to config")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func historyRows(entries []backend.HistoryEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for i, entry := range entries {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			valueOrDash(string(entry.ID)),
			formatLabel(entry.Format),
			valueOrDash(entry.URL),
			valueOrDash(entry.OutputHint),
		})
	}
	return rows
}
