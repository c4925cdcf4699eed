package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"consentlake/internal/export"
	"consentlake/internal/lake"
	platformstrings "consentlake/pkg/platform/strings"
)

// Export modes.
const (
	modeDaily   = "daily"
	modeWeekly  = "weekly"
	modeMonthly = "monthly"
	modeCustom  = "custom"
)

// lookbackDays is how far before the end of yesterday each preset starts.
var lookbackDays = map[string]int{
	modeDaily:   6,
	modeWeekly:  13,
	modeMonthly: 29,
}

type exportFlags struct {
	mode             string
	startDate        string
	endDate          string
	services         string
	qualityThreshold float64
	maxTokens        int
	anonymize        bool
	filterCrisis     bool
	outputFormat     string
	compress         bool
	outputPath       string
}

func newExportCmd(e *env) *cobra.Command {
	var f exportFlags
	defaults := export.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export training data from the data lake",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, e, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.mode, "mode", "m", modeDaily, "export mode: daily, weekly, monthly, custom")
	fl.StringVarP(&f.startDate, "start-date", "s", "", "start date (YYYY-MM-DD), custom mode only")
	fl.StringVarP(&f.endDate, "end-date", "e", "", "end date (YYYY-MM-DD), custom mode only")
	fl.StringVar(&f.services, "services", strings.Join(defaults.Services, ","), "comma-separated services")
	fl.Float64VarP(&f.qualityThreshold, "quality-threshold", "q", defaults.QualityThreshold, "quality threshold (0.0-1.0)")
	fl.IntVar(&f.maxTokens, "max-tokens", defaults.MaxTokens, "maximum tokens per training pair")
	fl.BoolVar(&f.anonymize, "anonymize-data", false, "omit user ids from exported records")
	fl.BoolVar(&f.filterCrisis, "filter-crisis-content", defaults.FilterCrisisContent, "drop conversations flagged as crisis")
	fl.StringVar(&f.outputFormat, "output-format", "jsonl", "output format; only jsonl is supported")
	fl.BoolVar(&f.compress, "compress", true, "gzip the artifact; uncompressed output is not supported")
	fl.StringVar(&f.outputPath, "output-path", defaults.OutputPath, "output prefix in the bucket")
	return cmd
}

func runExport(cmd *cobra.Command, e *env, f exportFlags) error {
	ctx := cmd.Context()
	if f.outputFormat != "jsonl" {
		return fmt.Errorf("unsupported output format %q: only jsonl is available", f.outputFormat)
	}
	if !f.compress {
		return errors.New("uncompressed output is not supported")
	}
	start, end, err := resolveRange(f.mode, f.startDate, f.endDate, e.now())
	if err != nil {
		return err
	}

	cfg := export.DefaultConfig()
	cfg.Services = platformstrings.SplitList(f.services)
	cfg.Start, cfg.End = start, end
	cfg.QualityThreshold = f.qualityThreshold
	cfg.MaxTokens = f.maxTokens
	cfg.AnonymizeData = f.anonymize
	cfg.FilterCrisisContent = f.filterCrisis
	cfg.OutputPath = f.outputPath
	cfg.RequestTimeout = e.cfg.Lake.RequestTimeout

	store, err := e.openStore(ctx, e.cfg.Lake)
	if err != nil {
		return err
	}
	eligible, closer, err := e.openEligibility(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer closer.Close() //nolint:errcheck // process is exiting

	exp, err := e.exporter(ctx, store, eligible, cfg)
	if err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "export configuration",
		"start", start.Format(time.DateOnly),
		"end", end.Format(time.DateOnly),
		"services", cfg.Services,
		"quality_threshold", cfg.QualityThreshold,
	)
	stats, err := exp.Export(ctx)
	if err != nil {
		return err
	}
	printExportSummary(e.out, stats)
	return nil
}

// resolveRange turns a mode into an inclusive UTC day range. Presets end at
// the end of yesterday.
func resolveRange(mode, startDate, endDate string, now time.Time) (time.Time, time.Time, error) {
	if mode == modeCustom {
		if startDate == "" || endDate == "" {
			return time.Time{}, time.Time{}, errors.New("start date and end date are required for custom mode")
		}
		start, err := time.Parse(time.DateOnly, startDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", startDate, err)
		}
		end, err := time.Parse(time.DateOnly, endDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", endDate, err)
		}
		if start.After(end) {
			return time.Time{}, time.Time{}, errors.New("start date must be before end date")
		}
		return lake.StartOfDay(start), lake.EndOfDay(end), nil
	}

	days, ok := lookbackDays[mode]
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid mode %q", mode)
	}
	end := lake.EndOfDay(now.AddDate(0, 0, -1))
	start := lake.StartOfDay(end.AddDate(0, 0, -days))
	return start, end, nil
}

func printExportSummary(w io.Writer, s *export.Stats) {
	fmt.Fprintln(w, "=== Export Summary ===")
	fmt.Fprintf(w, "Date Range: %s to %s\n", s.DateRange.Start, s.DateRange.End)
	fmt.Fprintf(w, "Services Processed: %s\n", strings.Join(s.ServicesProcessed, ", "))
	fmt.Fprintf(w, "Total Logs Processed: %d\n", s.TotalLogsProcessed)
	fmt.Fprintf(w, "Valid Training Pairs: %d\n", s.ValidTrainingPairs)
	fmt.Fprintf(w, "Filtered Out: %d\n", s.FilteredOut)
	fmt.Fprintf(w, "Average Quality Score: %.3f\n", s.QualityScoreAverage)
	fmt.Fprintf(w, "Output File: %s\n", s.OutputKey)
	fmt.Fprintf(w, "Output File Size: %.2f MB\n", float64(s.OutputFileSize)/1024/1024)
	fmt.Fprintf(w, "Processing Time: %.2fs\n", float64(s.ProcessingTimeMs)/1000)
}
