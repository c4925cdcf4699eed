package lake

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"consentlake/internal/platform/config"
)

// Open builds the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.Lake) (ObjectStore, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendGCS:
		if cfg.Bucket == "" {
			return nil, errors.New("lake: bucket is required")
		}
		return NewGCS(ctx, cfg.Bucket, cfg.GCSCredentialsFile)
	case config.BackendS3, "":
		if cfg.Bucket == "" {
			return nil, errors.New("lake: bucket is required")
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewS3(s3.NewFromConfig(awsCfg), cfg.Bucket), nil
	default:
		return nil, fmt.Errorf("lake: unknown backend %q", cfg.Backend)
	}
}
