// Package export turns raw lake partitions into a gzipped JSONL artifact of
// prompt/completion pairs for model training.
//
// A run re-reads AI-training eligibility at start, so a user who revoked
// consent after ingestion is excluded even though their logs remain in the
// lake. Object and line failures are skipped; listing, eligibility and
// artifact upload failures abort the run and nothing is written.
package export

import (
	"bytes"
	"cmp"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"consentlake/internal/lake"
	"consentlake/internal/lake/envelope"
	"consentlake/internal/logentry"
	"consentlake/internal/platform/tracing"
	dErrors "consentlake/pkg/domain-errors"
)

const maxParallelFetches = 8

// EligibilitySource lists users whose current consent allows AI training.
type EligibilitySource interface {
	GetEligibleUsersForAITraining(ctx context.Context) ([]string, error)
}

// Opener decrypts envelope-sealed lake objects.
type Opener interface {
	Open(ctx context.Context, blob []byte) ([]byte, error)
}

// Stats summarizes a run.
type Stats struct {
	TotalLogsProcessed  int       `json:"totalLogsProcessed"`
	ValidTrainingPairs  int       `json:"validTrainingPairs"`
	FilteredOut         int       `json:"filteredOut"`
	QualityScoreAverage float64   `json:"qualityScoreAverage"`
	OutputFileSize      int64     `json:"outputFileSize"`
	ProcessingTimeMs    int64     `json:"processingTimeMs"`
	ServicesProcessed   []string  `json:"servicesProcessed"`
	DateRange           DateRange `json:"dateRange"`

	OutputKey         string `json:"outputKey"`
	ObjectsRead       int    `json:"objectsRead"`
	ObjectsSkipped    int    `json:"objectsSkipped"`
	LinesSkipped      int    `json:"linesSkipped"`
	IneligibleDropped int    `json:"ineligibleDropped"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Option configures an Exporter.
type Option func(*Exporter)

func WithOpener(o Opener) Option {
	return func(e *Exporter) { e.opener = o }
}

// WithScanner sets the PII scanner ValidateArtifact re-checks records with.
func WithScanner(s Scanner) Option {
	return func(e *Exporter) { e.scanner = s }
}

func WithTracer(t tracing.Tracer) Option {
	return func(e *Exporter) { e.tracer = t }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// Exporter runs training-data exports against one object store.
type Exporter struct {
	store    lake.ObjectStore
	eligible EligibilitySource
	cfg      Config

	opener  Opener
	scanner Scanner
	tracer  tracing.Tracer
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an Exporter. eligible may be nil for stats and validation only.
func New(store lake.ObjectStore, eligible EligibilitySource, cfg Config, opts ...Option) *Exporter {
	e := &Exporter{
		store:    store,
		eligible: eligible,
		cfg:      cfg,
		tracer:   tracing.NewNoop(),
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// job is one (service, day prefix) listing.
type job struct {
	service  string
	svcIdx   int
	prefix   string
	prefixIx int
}

// batch is the parsed content of one object, tagged for ordering.
type batch struct {
	job     job
	key     string
	entries []*logentry.Entry
}

// Export runs the whole pipeline and uploads the artifact. Errors carry
// export_failed, or invalid_input for a bad configuration.
func (e *Exporter) Export(ctx context.Context) (*Stats, error) {
	started := e.now()
	if err := e.cfg.validate(); err != nil {
		return nil, err
	}
	if e.eligible == nil {
		return nil, dErrors.New(dErrors.CodeExportFailed, "no eligibility source configured")
	}

	ctx, span := e.tracer.Start(ctx, tracing.SpanExportRun,
		tracing.String(tracing.AttrService, strings.Join(e.cfg.Services, ",")),
	)
	stats, err := e.run(ctx, started)
	if err != nil {
		span.End(err)
		e.logger.ErrorContext(ctx, "training data export failed", "error", err)
		return nil, dErrors.Rewrap(err, dErrors.CodeExportFailed, fmt.Sprintf("export training data: %v", err))
	}
	span.SetAttributes(tracing.Int(tracing.AttrRecords, stats.ValidTrainingPairs))
	span.End(nil)
	e.logger.InfoContext(ctx, "training data export completed",
		"key", stats.OutputKey,
		"records", stats.ValidTrainingPairs,
		"filtered_out", stats.FilteredOut,
		"duration_ms", stats.ProcessingTimeMs,
	)
	return stats, nil
}

func (e *Exporter) run(ctx context.Context, started time.Time) (*Stats, error) {
	e.logger.InfoContext(ctx, "starting training data export",
		"services", e.cfg.Services,
		"start", e.cfg.Start.UTC().Format(time.RFC3339),
		"end", e.cfg.End.UTC().Format(time.RFC3339),
		"output_path", e.cfg.OutputPath,
	)

	users, err := e.eligible.GetEligibleUsersForAITraining(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch eligible users: %w", err)
	}
	eligible := make(map[string]struct{}, len(users))
	for _, u := range users {
		eligible[u] = struct{}{}
	}
	e.logger.InfoContext(ctx, "loaded eligible users", "count", len(users))

	stats := &Stats{
		DateRange: DateRange{
			Start: e.cfg.Start.UTC().Format(time.RFC3339Nano),
			End:   e.cfg.End.UTC().Format(time.RFC3339Nano),
		},
	}
	batches, err := e.fetchAll(ctx, stats)
	if err != nil {
		return nil, err
	}

	var kept []*TrainingEntry
	var scoreSum float64
	for _, b := range batches {
		for _, entry := range b.entries {
			stats.TotalLogsProcessed++
			if userID := entry.UserID(); userID != "" {
				if _, ok := eligible[userID]; !ok {
					stats.IneligibleDropped++
					continue
				}
			}
			candidate, ok := e.extract(b.job.service, entry)
			if !ok {
				continue
			}
			if !e.passes(candidate) {
				stats.FilteredOut++
				continue
			}
			kept = append(kept, candidate)
			scoreSum += candidate.QualityScore
		}
	}
	stats.ValidTrainingPairs = len(kept)
	if len(kept) > 0 {
		stats.QualityScoreAverage = scoreSum / float64(len(kept))
	}
	stats.ServicesProcessed = slices.Clone(e.cfg.Services)

	key, size, err := e.writeArtifact(ctx, kept)
	if err != nil {
		return nil, err
	}
	stats.OutputKey = key
	stats.OutputFileSize = size
	stats.ProcessingTimeMs = e.now().Sub(started).Milliseconds()
	return stats, nil
}

func (e *Exporter) passes(c *TrainingEntry) bool {
	if e.cfg.MaxTokens > 0 && tokenCount(c.Prompt, c.Completion) > e.cfg.MaxTokens {
		return false
	}
	if e.cfg.EnableQualityScoring && c.QualityScore < e.cfg.QualityThreshold {
		return false
	}
	return true
}

// fetchAll lists and downloads every object in range, in parallel, and
// returns the batches in service, prefix and key order.
func (e *Exporter) fetchAll(ctx context.Context, stats *Stats) ([]batch, error) {
	var jobs []job
	for i, svc := range e.cfg.Services {
		for j, prefix := range lake.DayPrefixes(svc, e.cfg.Start, e.cfg.End) {
			jobs = append(jobs, job{service: svc, svcIdx: i, prefix: prefix, prefixIx: j})
		}
	}

	var (
		mu      sync.Mutex
		batches []batch
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)
	for _, j := range jobs {
		g.Go(func() error {
			var objects []lake.ObjectInfo
			err := lake.WithRequestTimeout(gctx, e.cfg.RequestTimeout, func(ctx context.Context) error {
				var err error
				objects, err = e.store.List(ctx, j.prefix)
				return err
			})
			if err != nil {
				return fmt.Errorf("list %s: %w", j.prefix, err)
			}
			e.logger.DebugContext(gctx, "listed partition", "prefix", j.prefix, "objects", len(objects))

			for _, obj := range objects {
				entries, skipped, err := e.fetch(gctx, obj.Key)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					e.logger.WarnContext(gctx, "skipping unreadable object", "key", obj.Key, "error", err)
					mu.Lock()
					stats.ObjectsSkipped++
					mu.Unlock()
					continue
				}
				mu.Lock()
				stats.ObjectsRead++
				stats.LinesSkipped += skipped
				batches = append(batches, batch{job: j, key: obj.Key, entries: entries})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(batches, func(a, b batch) int {
		return cmp.Or(
			cmp.Compare(a.job.svcIdx, b.job.svcIdx),
			cmp.Compare(a.job.prefixIx, b.job.prefixIx),
			cmp.Compare(a.key, b.key),
		)
	})
	return batches, nil
}

var errSealed = errors.New("object is envelope-encrypted and no opener is configured")

// fetch downloads one object and parses its lines. Lines that do not parse
// are logged, counted and skipped.
func (e *Exporter) fetch(ctx context.Context, key string) (entries []*logentry.Entry, skipped int, err error) {
	ctx, span := e.tracer.Start(ctx, tracing.SpanExportFetch, tracing.String(tracing.AttrKey, key))
	defer func() { span.End(err) }()

	var obj *lake.Object
	err = lake.WithRequestTimeout(ctx, e.cfg.RequestTimeout, func(ctx context.Context) error {
		var err error
		obj, err = e.store.Get(ctx, key)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("get %s: %w", key, err)
	}

	body, err := e.decode(ctx, key, obj)
	if err != nil {
		return nil, 0, err
	}

	for n, line := range bytes.Split(body, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal(line, &fields); err != nil {
			e.logger.WarnContext(ctx, "skipping unparseable log line", "key", key, "line", n+1, "error", err)
			skipped++
			continue
		}
		entries = append(entries, logentry.FromFields(fields))
	}
	return entries, skipped, nil
}

// decode opens an envelope when the object is sealed, then gunzips .gz keys.
func (e *Exporter) decode(ctx context.Context, key string, obj *lake.Object) ([]byte, error) {
	body := obj.Body
	if obj.Metadata[lake.MetaEncryption] == lake.EncryptionEnvelope || envelope.IsEnvelope(body) {
		if e.opener == nil {
			return nil, errSealed
		}
		opened, err := e.opener.Open(ctx, body)
		if err != nil {
			return nil, fmt.Errorf("open envelope %s: %w", key, err)
		}
		body = opened
	}
	if lake.IsCompressed(key) {
		return gunzip(body)
	}
	return body, nil
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	return out, nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("gzip artifact: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip artifact: %w", err)
	}
	return buf.Bytes(), nil
}
