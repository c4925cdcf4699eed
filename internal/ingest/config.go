package ingest

import (
	"time"

	"consentlake/internal/platform/config"
)

// Config holds the ingestor's tunables. Non-positive sizes, intervals and
// breaker thresholds fall back to DefaultConfig, and RetryAttempts below one
// means a single attempt. EnableBuffer and EnableCompression are used as
// given, so a zero Config writes each entry immediately and uncompressed;
// start from DefaultConfig for buffered gzip uploads.
type Config struct {
	EnableBuffer      bool
	BufferSize        int
	BufferCap         int
	FlushInterval     time.Duration
	EnableCompression bool
	// KMSKeyID is requested as server-side encryption on uploads. Client-side
	// envelope encryption is enabled separately with WithSealer.
	KMSKeyID       string
	RetryAttempts  int
	RetryDelay     time.Duration
	RequestTimeout time.Duration

	BreakerFailureThreshold int
	BreakerSuccessThreshold int
}

// DefaultConfig mirrors the documented defaults.
func DefaultConfig() Config {
	return Config{
		EnableBuffer:            true,
		BufferSize:              100,
		BufferCap:               1000,
		FlushInterval:           30 * time.Second,
		EnableCompression:       true,
		RetryAttempts:           3,
		RetryDelay:              time.Second,
		RequestTimeout:          30 * time.Second,
		BreakerFailureThreshold: 5,
		BreakerSuccessThreshold: 1,
	}
}

// ConfigFrom maps the environment view onto Config.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	l := cfg.Lake
	c.EnableBuffer = l.EnableBuffer
	c.BufferSize = l.BufferSize
	c.BufferCap = l.BufferCap
	c.FlushInterval = l.FlushInterval
	c.EnableCompression = l.EnableCompression
	if cfg.EncryptionEnabled() {
		c.KMSKeyID = l.KMSKeyID
	}
	c.RetryAttempts = l.RetryAttempts
	c.RetryDelay = l.RetryDelay
	c.RequestTimeout = l.RequestTimeout
	return c.withDefaults()
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	if c.BufferCap < c.BufferSize {
		c.BufferCap = c.BufferSize * 10
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	if c.RetryAttempts < 1 {
		c.RetryAttempts = 1
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.BreakerFailureThreshold <= 0 {
		c.BreakerFailureThreshold = d.BreakerFailureThreshold
	}
	if c.BreakerSuccessThreshold <= 0 {
		c.BreakerSuccessThreshold = d.BreakerSuccessThreshold
	}
	return c
}
