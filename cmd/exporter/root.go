package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"consentlake/internal/platform/config"
)

func newRootCmd(e *env) *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "exporter",
		Short:         "Export AI training data from the consentlake data lake",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}
			if cfg.Lake.Backend != config.BackendMemory && cfg.Lake.Bucket == "" {
				return errors.New("bucket name is required (use --bucket or set DATA_LAKE_BUCKET_NAME)")
			}
			e.init(cfg)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("bucket", "", "data lake bucket name (env DATA_LAKE_BUCKET_NAME)")
	flags.String("region", "", "AWS region (env AWS_REGION, default us-east-1)")
	flags.String("backend", "", "object store backend: s3, gcs or memory (env DATA_LAKE_BACKEND, default s3)")
	bindFlag(v, "DATA_LAKE_BUCKET_NAME", root, "bucket")
	bindFlag(v, "AWS_REGION", root, "region")
	bindFlag(v, "DATA_LAKE_BACKEND", root, "backend")

	root.AddCommand(newExportCmd(e), newStatsCmd(e), newValidateCmd(e))
	return root
}

// bindFlag lets a persistent flag override its environment variable. An
// unset flag never shadows the environment.
func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	// BindPFlag only fails for a nil flag, which is a programming error.
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(name)); err != nil {
		panic(err)
	}
}
