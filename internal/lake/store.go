// Package lake is the object storage layer of the data lake: the partition
// key layout and the S3, GCS and in-memory stores behind one interface.
package lake

import (
	"context"
	"errors"
	"time"
)

// Object metadata keys written by the ingestor and the exporter.
const (
	MetaDataLake        = "data-lake"
	MetaUploadTimestamp = "upload-timestamp"
	MetaCompression     = "compression"
	MetaEncryption      = "encryption"

	MetaExportSource    = "export-source"
	MetaExportTimestamp = "export-timestamp"
	MetaRecordCount     = "record-count"
	MetaServices        = "services"
)

// Metadata values.
const (
	CompressionGzip    = "gzip"
	CompressionNone    = "none"
	EncryptionEnvelope = "kms-envelope"
	EncryptionNone     = "none"
)

// Content types.
const (
	ContentTypeJSON = "application/json"
	ContentTypeGzip = "application/gzip"
	ContentTypeBlob = "application/octet-stream"
)

var (
	// ErrNotFound is returned by Get and Stat for a missing key.
	ErrNotFound = errors.New("lake: object not found")
	// ErrRequestTimeout marks a store call that ran past its request
	// timeout. It is retryable, unlike validation failures.
	ErrRequestTimeout = errors.New("lake: request timed out")
)

// PutOptions carries per-object attributes.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
	// SSEKMSKeyID requests server-side KMS encryption where the backend
	// supports it.
	SSEKMSKeyID string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	Metadata     map[string]string
}

// Object is a downloaded object.
type Object struct {
	ObjectInfo
	Body []byte
}

// ObjectStore is the storage surface the ingestor and exporter share.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, opts PutOptions) error
	Get(ctx context.Context, key string) (*Object, error)
	// List returns every object under prefix, following pagination to the end.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
}

// WithRequestTimeout runs fn under a child context bounded by timeout. A
// deadline hit by the child (not the parent) is reported as ErrRequestTimeout.
func WithRequestTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return errors.Join(ErrRequestTimeout, err)
	}
	return err
}
