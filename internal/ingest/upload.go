package ingest

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"consentlake/internal/lake"
	"consentlake/internal/logentry"
	"consentlake/internal/platform/tracing"
)

const maxParallelUploads = 4

// partition is one lake object's worth of entries.
type partition struct {
	service string
	day     time.Time
	entries []*logentry.Entry
}

// send uploads entries as one object per (service, UTC day). Every
// partition is attempted; the entries of failed partitions are returned in
// their original order along with the first failure.
func (in *Ingestor) send(ctx context.Context, entries []*logentry.Entry) ([]*logentry.Entry, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	ctx, span := in.tracer.Start(ctx, tracing.SpanIngestFlush,
		tracing.Int(tracing.AttrEntries, len(entries)),
		tracing.Bool(tracing.AttrBreakerOn, in.breaker.IsOpen()),
	)

	parts, owner := in.partition(entries)
	failed := make([]bool, len(parts))
	var g errgroup.Group
	g.SetLimit(maxParallelUploads)
	for i, p := range parts {
		g.Go(func() error {
			err := in.upload(ctx, p)
			failed[i] = err != nil
			return err
		})
	}
	err := g.Wait()
	span.End(err)
	if err == nil {
		return nil, nil
	}

	var retry []*logentry.Entry
	for i, e := range entries {
		if failed[owner[i]] {
			retry = append(retry, e)
		}
	}
	return retry, err
}

// partition groups by service and the calendar day of each entry's own
// timestamp, in first-seen order. owner[i] is the index of the partition
// holding entries[i]. Entries without a parseable timestamp land on
// today's partition.
func (in *Ingestor) partition(entries []*logentry.Entry) (parts []*partition, owner []int) {
	index := make(map[string]int)
	owner = make([]int, len(entries))
	for i, e := range entries {
		ts, ok := e.Timestamp()
		if !ok {
			ts = in.now()
		}
		day := lake.StartOfDay(ts)
		id := string(e.Service) + "/" + day.Format(time.DateOnly)
		n, ok := index[id]
		if !ok {
			n = len(parts)
			index[id] = n
			parts = append(parts, &partition{service: string(e.Service), day: day})
		}
		parts[n].entries = append(parts[n].entries, e)
		owner[i] = n
	}
	return parts, owner
}

func (in *Ingestor) upload(ctx context.Context, p *partition) error {
	body, opts, err := in.encode(ctx, p.entries)
	if err != nil {
		return err
	}
	key := lake.Key(p.service, p.day, p.entries[0].UserID(), in.cfg.EnableCompression, in.now())

	ctx, span := in.tracer.Start(ctx, tracing.SpanIngestUpload,
		tracing.String(tracing.AttrService, p.service),
		tracing.String(tracing.AttrKey, key),
		tracing.Int(tracing.AttrEntries, len(p.entries)),
		tracing.Int(tracing.AttrBytes, len(body)),
	)
	start := time.Now()
	err = in.putWithRetry(ctx, key, body, opts)
	in.metrics.UploadDuration.Observe(time.Since(start).Seconds())
	span.End(err)
	if err != nil {
		return err
	}
	in.metrics.UploadBytes.Observe(float64(len(body)))
	in.logger.DebugContext(ctx, "uploaded lake object", "key", key, "entries", len(p.entries))
	return nil
}

// encode renders entries as JSON lines, then gzips and seals as configured.
func (in *Ingestor) encode(ctx context.Context, entries []*logentry.Entry) ([]byte, lake.PutOptions, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return nil, lake.PutOptions{}, fmt.Errorf("encode %s entry: %w", e.Service, err)
		}
	}
	data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	opts := lake.PutOptions{
		ContentType: lake.ContentTypeJSON,
		SSEKMSKeyID: in.cfg.KMSKeyID,
		Metadata: map[string]string{
			lake.MetaDataLake:        "true",
			lake.MetaUploadTimestamp: in.now().UTC().Format(time.RFC3339Nano),
			lake.MetaCompression:     lake.CompressionNone,
			lake.MetaEncryption:      lake.EncryptionNone,
		},
	}

	if in.cfg.EnableCompression {
		compressed, err := gzipBytes(data)
		if err != nil {
			return nil, lake.PutOptions{}, err
		}
		data = compressed
		opts.ContentType = lake.ContentTypeGzip
		opts.Metadata[lake.MetaCompression] = lake.CompressionGzip
	}
	if in.sealer != nil {
		sealed, err := in.sealer.Seal(ctx, data)
		if err != nil {
			return nil, lake.PutOptions{}, fmt.Errorf("seal batch: %w", err)
		}
		data = sealed
		opts.ContentType = lake.ContentTypeBlob
		opts.Metadata[lake.MetaEncryption] = lake.EncryptionEnvelope
	}
	return data, opts, nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("gzip batch: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip batch: %w", err)
	}
	return buf.Bytes(), nil
}

// putWithRetry makes up to RetryAttempts calls, each bounded by the request
// timeout, waiting RetryDelay*attempt between them.
func (in *Ingestor) putWithRetry(ctx context.Context, key string, body []byte, opts lake.PutOptions) error {
	var lastErr error
	for attempt := 1; attempt <= in.cfg.RetryAttempts; attempt++ {
		err := lake.WithRequestTimeout(ctx, in.cfg.RequestTimeout, func(ctx context.Context) error {
			return in.store.Put(ctx, key, body, opts)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		in.logger.WarnContext(ctx, "upload attempt failed", "key", key, "attempt", attempt, "error", err)

		if attempt < in.cfg.RetryAttempts {
			if err := in.sleep(ctx, in.cfg.RetryDelay*time.Duration(attempt)); err != nil {
				return fmt.Errorf("upload %s: %w", key, err)
			}
		}
	}
	return fmt.Errorf("upload %s after %d attempts: %w", key, in.cfg.RetryAttempts, lastErr)
}

// Health is the result of a synthetic write.
type Health struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details"`
}

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthCheck writes a small object under health-check/ through the retry
// path, so a healthy result means the lake accepted a real write.
func (in *Ingestor) HealthCheck(ctx context.Context) Health {
	now := in.now().UTC()
	body, _ := json.Marshal(map[string]any{"test": true, "timestamp": now.Format(time.RFC3339Nano)}) //nolint:errcheck // static shape
	key := lake.HealthCheckPrefix + uuid.NewString() + ".json"

	status := in.BufferStatus()
	details := map[string]any{
		"buffer_size":     status.Size,
		"max_buffer_size": status.MaxSize,
		"buffer_cap":      status.Cap,
		"breaker_open":    status.BreakerOpen,
	}
	if err := in.putWithRetry(ctx, key, body, lake.PutOptions{ContentType: lake.ContentTypeJSON}); err != nil {
		details["error"] = err.Error()
		return Health{Status: StatusUnhealthy, Details: details}
	}
	details["storage_connectivity"] = "ok"
	details["checked_at"] = now.Format(time.RFC3339Nano)
	return Health{Status: StatusHealthy, Details: details}
}

// Check adapts HealthCheck to the platform health handler.
func (in *Ingestor) Check(ctx context.Context) error {
	h := in.HealthCheck(ctx)
	if h.Status == StatusHealthy {
		return nil
	}
	return fmt.Errorf("%w: %v", errUnhealthy, h.Details["error"])
}
