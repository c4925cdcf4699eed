package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"consentlake/internal/consent"
	consentHandler "consentlake/internal/consent/handler"
	"consentlake/internal/ingest"
	"consentlake/internal/ingest/deadletter"
	ingestHandler "consentlake/internal/ingest/handler"
	ingestmetrics "consentlake/internal/ingest/metrics"
	"consentlake/internal/lake"
	"consentlake/internal/lake/envelope"
	"consentlake/internal/pii"
	"consentlake/internal/platform/config"
	"consentlake/internal/platform/health"
	"consentlake/internal/platform/kafka/producer"
	"consentlake/internal/platform/tracing"
	"consentlake/pkg/platform/httputil"
	request "consentlake/pkg/platform/middleware/request"
)

type app struct {
	router   http.Handler
	ingestor *ingest.Ingestor
	producer *producer.Producer
	consent  *consent.Manager
	store    lake.ObjectStore
	logger   *slog.Logger
}

// close releases clients in reverse dependency order. Failures are logged.
func (a *app) close(kafkaTimeout time.Duration) {
	if a.producer != nil {
		a.producer.Close(kafkaTimeout)
	}
	if a.consent != nil {
		if err := a.consent.Close(); err != nil {
			a.logger.Error("close consent manager", "error", err)
		}
	}
	if c, ok := a.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.logger.Error("close lake store", "error", err)
		}
	}
}

func build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &app{logger: log}
	ok := false
	defer func() {
		if !ok {
			a.close(kafkaCloseTimeout)
		}
	}()

	if cfg.Kafka.Brokers != "" {
		p, err := producer.New(cfg.Kafka, log)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		a.producer = p
		log.Info("kafka producer initialized", "brokers", cfg.Kafka.Brokers)
	}

	deps := consent.Deps{Logger: log, Registerer: reg}
	if a.producer != nil {
		deps.Producer = a.producer
	}
	m, err := consent.Open(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}
	a.consent = m

	store, err := lake.Open(ctx, cfg.Lake)
	if err != nil {
		return nil, err
	}
	a.store = store

	opts, err := ingestOptions(ctx, cfg, a.producer, reg, log)
	if err != nil {
		return nil, err
	}
	a.ingestor = ingest.New(store, m, ingest.ConfigFrom(cfg), opts...)

	hh := health.New(cfg.Environment)
	hh.RegisterCheck("data_lake", a.ingestor.Check)
	if m.DB != nil {
		hh.RegisterCheck("database", m.DB.Health)
	}
	if m.Redis != nil {
		hh.RegisterCheck("redis", m.Redis.Health)
	}
	if a.producer != nil {
		hh.RegisterCheck("kafka", a.producer.Health)
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(request.Instrument(request.NewMetrics(reg)))

	hh.Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Group(func(r chi.Router) {
		r.Use(request.BodyLimit(httputil.MaxBodyBytes))
		r.Use(request.ContentTypeJSON)
		ingestHandler.New(a.ingestor, log).Register(r)
		consentHandler.New(m, log).Register(r)
	})
	a.router = r

	ok = true
	return a, nil
}

// ingestOptions assembles the optional ingestor collaborators from config.
func ingestOptions(ctx context.Context, cfg *config.Config, prod *producer.Producer, reg prometheus.Registerer, log *slog.Logger) ([]ingest.Option, error) {
	detectorCfg := pii.DefaultConfig()
	if cfg.PIIPatternsFile != "" {
		rules, err := pii.LoadPatternsFile(cfg.PIIPatternsFile)
		if err != nil {
			return nil, err
		}
		detectorCfg.Custom = rules
	}

	opts := []ingest.Option{
		ingest.WithAnonymizer(pii.NewDetector(detectorCfg)),
		ingest.WithMetrics(ingestmetrics.New(reg)),
		ingest.WithTracer(tracing.NewOTel()),
		ingest.WithLogger(log),
	}

	if prod != nil && cfg.Lake.DeadLetterTopic != "" {
		opts = append(opts, ingest.WithDeadLetter(deadletter.NewKafkaSink(prod, cfg.Lake.DeadLetterTopic)))
	} else {
		opts = append(opts, ingest.WithDeadLetter(deadletter.NewLogSink(log)))
	}

	if cfg.EncryptionEnabled() {
		sealer, err := envelope.NewKMSSealerForRegion(ctx, cfg.Lake.Region, cfg.Lake.KMSKeyID)
		if err != nil {
			return nil, fmt.Errorf("kms sealer: %w", err)
		}
		opts = append(opts, ingest.WithSealer(sealer))
	}
	return opts, nil
}
