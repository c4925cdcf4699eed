package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"consentlake/internal/export"
)

func newValidateCmd(e *env) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check an exported training data file for format errors and residual PII",
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
			report, err := exp.ValidateArtifact(ctx, file)
			if err != nil {
				return err
			}
			printValidation(e.out, report)
			if !report.OK() {
				return errors.New("training data failed validation")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "object key of the exported training data file")
	_ = cmd.MarkFlagRequired("file") //nolint:errcheck // flag is defined above
	return cmd
}

func printValidation(w io.Writer, r *export.ValidationReport) {
	fmt.Fprintln(w, "=== Validation Report ===")
	fmt.Fprintf(w, "File: %s\n", r.Key)
	fmt.Fprintf(w, "Records: %d\n", r.Records)
	fmt.Fprintf(w, "Invalid Records: %d\n", r.Invalid)
	fmt.Fprintf(w, "PII Findings: %d\n", r.PIIFindings)
	fmt.Fprintf(w, "Average Quality Score: %.3f\n", r.ScoreAverage)
	for _, issue := range r.Issues {
		fmt.Fprintf(w, "  - %s\n", issue)
	}
}
