package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"consentlake/internal/consent"
	"consentlake/internal/export"
	"consentlake/internal/lake"
	"consentlake/internal/lake/envelope"
	"consentlake/internal/pii"
	"consentlake/internal/platform/config"
	"consentlake/internal/platform/logger"
	"consentlake/internal/platform/tracing"
)

// env holds the process dependencies commands reach through. Tests replace
// the open functions to run commands against in-memory stores.
type env struct {
	out    io.Writer
	errOut io.Writer
	now    func() time.Time

	cfg    *config.Config
	logger *slog.Logger

	openStore       func(ctx context.Context, cfg config.Lake) (lake.ObjectStore, error)
	openEligibility func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (export.EligibilitySource, io.Closer, error)
	openOpener      func(ctx context.Context, cfg *config.Config) (export.Opener, error)
}

func newEnv() *env {
	return &env{
		out:             os.Stdout,
		errOut:          os.Stderr,
		now:             time.Now,
		openStore:       lake.Open,
		openEligibility: openConsent,
		openOpener:      openEnvelope,
	}
}

func (e *env) init(cfg *config.Config) {
	e.cfg = cfg
	e.logger = logger.NewWithWriter(e.errOut, cfg.LogLevel)
}

// exporter builds an Exporter over the configured store. eligible may be nil
// for commands that never run an export.
func (e *env) exporter(ctx context.Context, store lake.ObjectStore, eligible export.EligibilitySource, cfg export.Config) (*export.Exporter, error) {
	opts := []export.Option{
		export.WithLogger(e.logger),
		export.WithClock(e.now),
		export.WithTracer(tracing.NewOTel()),
	}
	opener, err := e.openOpener(ctx, e.cfg)
	if err != nil {
		return nil, err
	}
	if opener != nil {
		opts = append(opts, export.WithOpener(opener))
	}
	scanner, err := newScanner(e.cfg.PIIPatternsFile)
	if err != nil {
		return nil, err
	}
	opts = append(opts, export.WithScanner(scanner))
	return export.New(store, eligible, cfg, opts...), nil
}

func openConsent(ctx context.Context, cfg *config.Config, logger *slog.Logger) (export.EligibilitySource, io.Closer, error) {
	m, err := consent.Open(ctx, cfg, consent.Deps{Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	return m, m, nil
}

// openEnvelope returns a KMS opener when lake encryption is on. Opening needs
// no key id; KMS resolves it from the wrapped key.
func openEnvelope(ctx context.Context, cfg *config.Config) (export.Opener, error) {
	if !cfg.Lake.EnableEncryption || cfg.Lake.Backend == config.BackendMemory {
		return nil, nil
	}
	return envelope.NewKMSSealerForRegion(ctx, cfg.Lake.Region, cfg.Lake.KMSKeyID)
}

func newScanner(patternsFile string) (*pii.Detector, error) {
	cfg := pii.DefaultConfig()
	if patternsFile != "" {
		rules, err := pii.LoadPatternsFile(patternsFile)
		if err != nil {
			return nil, err
		}
		cfg.Custom = rules
	}
	return pii.NewDetector(cfg), nil
}
