package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"consentlake/internal/export"
)

func newStatsCmd(e *env) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize raw data held in the lake",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := e.openStore(ctx, e.cfg.Lake)
			if err != nil {
				return err
			}
			cfg := export.DefaultConfig()
			cfg.RequestTimeout = e.cfg.Lake.RequestTimeout
			exp, err := e.exporter(ctx, store, nil, cfg)
			if err != nil {
				return err
			}
			report, err := exp.LakeStats(ctx, days)
			if err != nil {
				return err
			}
			printLakeReport(e.out, days, report)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days to analyze, today included")
	return cmd
}

func printLakeReport(w io.Writer, days int, r *export.LakeReport) {
	fmt.Fprintln(w, "=== Data Lake Statistics ===")
	fmt.Fprintf(w, "Period: Last %d days\n", days)
	fmt.Fprintf(w, "Date Range: %s to %s\n", r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
	fmt.Fprintln(w, "\nService Breakdown:")
	for _, name := range slices.Sorted(maps.Keys(r.Services)) {
		s := r.Services[name]
		fmt.Fprintf(w, "  %s:\n", name)
		fmt.Fprintf(w, "    Files: %d\n", s.Files)
		fmt.Fprintf(w, "    Size: %.2f MB\n", float64(s.Bytes)/1024/1024)
	}
	fmt.Fprintln(w, "\nTotals:")
	fmt.Fprintf(w, "  Files: %d\n", r.Files)
	fmt.Fprintf(w, "  Size: %.2f MB\n", float64(r.Bytes)/1024/1024)
}
