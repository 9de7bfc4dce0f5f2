package main

import (
	"errors"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapetech/epgmerge/internal/store"
)

var historyHeaders = []string{"Started", "Took", "Primary ch", "Secondary ch", "Matched", "Merged", "Dropped", "Drift ok", "Drift rej", "Error"}

var historyAligns = []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}

func historyRows(runs []store.Run, loc *time.Location) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.StartedAt.In(loc).Format("2006-01-02 15:04:05"),
			r.Duration.Round(time.Millisecond).String(),
			strconv.Itoa(r.PrimaryChannels),
			strconv.Itoa(r.SecondaryChannels),
			strconv.Itoa(r.Matched),
			strconv.Itoa(r.Merged),
			strconv.Itoa(r.Dropped),
			strconv.Itoa(r.DriftAccepted),
			strconv.Itoa(r.DriftRejected),
			r.Error,
		})
	}
	return rows
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent reconciliation runs from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.DBPath == "" {
				return errors.New("no store configured: set EPGMERGE_DB")
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			st, err := store.Open(cmd.Context(), cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()
			runs, err := st.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeRows(cmd.OutOrStdout(), historyHeaders, historyRows(runs, loc), historyAligns)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	return cmd
}
