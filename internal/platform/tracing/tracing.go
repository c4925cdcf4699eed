// Package tracing is a thin span abstraction over OpenTelemetry. Components
// depend on Tracer so tests can run with NewNoop and production wires NewOTel
// against the global provider.
package tracing

import (
	"context"
	"time"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span and marks it failed when err is non-nil.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations are safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: int64(value)}
}

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanIngestFlush  = "ingest.flush"
	SpanIngestUpload = "ingest.upload"
	SpanExportRun    = "export.run"
	SpanExportFetch  = "export.fetch"
)

// Attribute keys.
const (
	AttrService   = "service"
	AttrKey       = "lake.key"
	AttrEntries   = "entries"
	AttrAttempt   = "attempt"
	AttrBytes     = "bytes"
	AttrPrefix    = "lake.prefix"
	AttrRecords   = "records"
	AttrBreakerOn = "breaker.open"
)
