package ingest

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"consentlake/internal/ingest/metrics"
	"consentlake/internal/lake"
	"consentlake/internal/logentry"
	"consentlake/internal/pii"
	dErrors "consentlake/pkg/domain-errors"
	"consentlake/pkg/testutil"
)

type fakeConsent struct {
	mu      sync.Mutex
	allowed map[string]bool
	checks  []string
}

func (f *fakeConsent) CheckConsent(_ context.Context, userID, purpose string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, userID+":"+purpose)
	return f.allowed[userID]
}

type recordingDeadLetter struct {
	mu      sync.Mutex
	entries []*logentry.Entry
}

func (r *recordingDeadLetter) Send(_ context.Context, entries []*logentry.Entry, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
	return nil
}

type prefixSealer struct{}

func (prefixSealer) Seal(_ context.Context, plaintext []byte) ([]byte, error) {
	return append([]byte("SEALED"), plaintext...), nil
}

// blockingStore lets a test hold an upload open until ctx ends.
type blockingStore struct {
	*lake.MemoryStore
}

func (b blockingStore) Put(ctx context.Context, _ string, _ []byte, _ lake.PutOptions) error {
	<-ctx.Done()
	return ctx.Err()
}

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type IngestorSuite struct {
	suite.Suite
	store   *lake.MemoryStore
	consent *fakeConsent
	metrics *metrics.Metrics
	dlq     *recordingDeadLetter
}

func TestIngestorSuite(t *testing.T) {
	suite.Run(t, new(IngestorSuite))
}

func (s *IngestorSuite) SetupTest() {
	s.store = lake.NewMemory()
	s.consent = &fakeConsent{allowed: map[string]bool{"u1": true}}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.dlq = &recordingDeadLetter{}
}

func (s *IngestorSuite) newIngestor(cfg Config, opts ...Option) *Ingestor {
	opts = append([]Option{
		WithMetrics(s.metrics),
		WithDeadLetter(s.dlq),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	in := New(s.store, s.consent, cfg, opts...)
	in.sleep = func(context.Context, time.Duration) error { return nil }
	return in
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.FlushInterval = time.Hour
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func (s *IngestorSuite) objects(prefix string) []map[string]any {
	var out []map[string]any
	for _, key := range s.store.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		obj, err := s.store.Get(context.Background(), key)
		s.Require().NoError(err)
		lines, err := testutil.JSONLines(obj.Body, lake.IsCompressed(key))
		s.Require().NoError(err)
		out = append(out, lines...)
	}
	return out
}

func (s *IngestorSuite) TestConsentedEntryIsBufferedThenWritten() {
	ctx := context.Background()
	in := s.newIngestor(testConfig(), WithAnonymizer(pii.NewDetector(pii.DefaultConfig())))

	raw := testutil.NewChatBotEntry().WithUser("u1").Build()
	s.Require().NoError(in.Log(ctx, raw, LogOptions{}))
	s.Equal(1, in.BufferStatus().Size)
	s.Zero(s.store.Len())

	s.Require().NoError(in.Flush(ctx))
	s.Zero(in.BufferStatus().Size)

	keys := s.store.Keys()
	s.Require().Len(keys, 1)
	s.True(strings.HasPrefix(keys[0], "raw/chat-bot/2025/03/10/u1_120000_"), keys[0])
	s.True(strings.HasSuffix(keys[0], ".json.gz"))

	lines := s.objects("raw/chat-bot/")
	s.Require().Len(lines, 1)
	s.Equal("Hi", lines[0]["prompt"])
	s.Equal("I understand, I can help.", lines[0]["response"])
	s.Equal("2025-03-10T12:00:00.000Z", lines[0]["timestamp"], "missing timestamp is stamped")

	obj, err := s.store.Get(ctx, keys[0])
	s.Require().NoError(err)
	s.Equal("true", obj.Metadata[lake.MetaDataLake])
	s.Equal(lake.CompressionGzip, obj.Metadata[lake.MetaCompression])
	s.Equal(lake.EncryptionNone, obj.Metadata[lake.MetaEncryption])
	s.Equal([]string{"u1:consent_analytics"}, s.consent.checks)
}

func (s *IngestorSuite) TestEntryWithoutConsentIsDropped() {
	ctx := context.Background()
	in := s.newIngestor(testConfig())

	raw := testutil.NewChatBotEntry().WithUser("u2").Build()
	s.NoError(in.Log(ctx, raw, LogOptions{}), "denied consent is not an error")
	s.Zero(in.BufferStatus().Size)

	s.NoError(in.Flush(ctx))
	s.Zero(s.store.Len())
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.EntriesDropped.WithLabelValues(metrics.ReasonNoConsent)))
}

func (s *IngestorSuite) TestCustomUserIDIsGated() {
	in := s.newIngestor(testConfig())
	err := in.Log(context.Background(), testutil.NewChatBotEntry().Build(), LogOptions{
		CustomFields: map[string]any{"user_id": "u2", "service": "payment-service"},
	})
	s.NoError(err)
	s.Zero(in.BufferStatus().Size)
}

func (s *IngestorSuite) TestAnonymousEntriesSkipConsent() {
	in := s.newIngestor(testConfig())
	s.NoError(in.Log(context.Background(), testutil.NewChatBotEntry().Build(), LogOptions{}))
	s.Equal(1, in.BufferStatus().Size)
	s.Empty(s.consent.checks)
}

func (s *IngestorSuite) TestInvalidEntryIsRejected() {
	in := s.newIngestor(testConfig())

	err := in.Log(context.Background(), testutil.NewChatBotEntry().Without("prompt").Build(), LogOptions{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	err = in.Log(context.Background(), map[string]any{"service": "fax-service"}, LogOptions{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.NoError(in.Log(context.Background(), map[string]any{"service": "fax-service"}, LogOptions{SkipValidation: true}))
	err = in.Log(context.Background(), map[string]any{"prompt": "x"}, LogOptions{SkipValidation: true})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Equal(1, in.BufferStatus().Size)
}

func (s *IngestorSuite) TestReachingBufferSizeFlushesOnce() {
	cfg := testConfig()
	cfg.BufferSize = 3
	in := s.newIngestor(cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		s.Require().NoError(in.Log(ctx, testutil.NewChatBotEntry().Build(), LogOptions{}))
	}
	s.Zero(s.store.Len())

	s.Require().NoError(in.Log(ctx, testutil.NewChatBotEntry().Build(), LogOptions{}))
	s.Equal(1, s.store.Len())
	s.Zero(in.BufferStatus().Size)
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.Flushes.WithLabelValues(metrics.ResultSuccess)))
	s.Len(s.objects(lake.RawPrefix), 3)
}

func (s *IngestorSuite) TestFlushGroupsByServiceAndEntryDay() {
	in := s.newIngestor(testConfig())
	ctx := context.Background()
	day1 := time.Date(2025, 3, 8, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 9, 0, 1, 0, 0, time.UTC)

	s.Require().NoError(in.Log(ctx, testutil.NewChatBotEntry().WithTimestamp(day1).Build(), LogOptions{}))
	s.Require().NoError(in.Log(ctx, testutil.NewChatBotEntry().WithTimestamp(day2).Build(), LogOptions{}))
	s.Require().NoError(in.Log(ctx, testutil.NewChatBotEntry().WithTimestamp(day2).Build(), LogOptions{}))
	s.Require().NoError(in.Log(ctx, testutil.NewAIEntry().WithTimestamp(day2).Build(), LogOptions{}))
	s.Require().NoError(in.Flush(ctx))

	s.Len(s.objects("raw/chat-bot/2025/03/08/"), 1)
	s.Len(s.objects("raw/chat-bot/2025/03/09/"), 2)
	s.Len(s.objects("raw/ai-service/2025/03/09/"), 1)
	s.Equal(3, s.store.Len())
}

func (s *IngestorSuite) TestFailedFlushRequeuesAtFront() {
	cfg := testConfig()
	cfg.RetryAttempts = 2
	in := s.newIngestor(cfg)
	ctx := context.Background()

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	s.store.SetPutHook(func(string) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return errors.New("s3 unavailable")
	})

	s.Require().NoError(in.Log(ctx, testutil.NewChatBotEntry().With("prompt", "first").Build(), LogOptions{}))

	done := make(chan error, 1)
	go func() { done <- in.Flush(ctx) }()
	<-entered

	s.True(in.BufferStatus().Flushing)
	s.Require().NoError(in.Log(ctx, testutil.NewChatBotEntry().With("prompt", "second").Build(), LogOptions{}))
	s.Equal(1, in.BufferStatus().Size, "new entries accumulate while a batch uploads")
	s.NoError(in.Flush(ctx), "concurrent flush is a no-op")

	close(release)
	err := <-done
	s.Require().Error(err)
	s.Contains(err.Error(), "after 2 attempts")

	s.store.SetPutHook(nil)
	s.Equal(2, in.BufferStatus().Size)
	s.Require().NoError(in.Flush(ctx))

	lines := s.objects(lake.RawPrefix)
	s.Require().Len(lines, 2)
	s.Equal("first", lines[0]["prompt"])
	s.Equal("second", lines[1]["prompt"])
}

func (s *IngestorSuite) TestCapEvictsOldestToDeadLetter() {
	cfg := testConfig()
	cfg.BufferSize = 2
	cfg.BufferCap = 3
	cfg.RetryAttempts = 1
	cfg.BreakerFailureThreshold = 1
	in := s.newIngestor(cfg)
	ctx := context.Background()
	s.store.SetPutHook(func(string) error { return errors.New("s3 unavailable") })

	log := func(prompt string) error {
		return in.Log(ctx, testutil.NewChatBotEntry().With("prompt", prompt).Build(), LogOptions{})
	}
	s.Require().NoError(log("e1"))
	err := log("e2")
	s.True(dErrors.HasCode(err, dErrors.CodeLogError), "size-triggered failure surfaces as LOG_ERROR")
	s.True(in.BufferStatus().BreakerOpen)

	s.NoError(log("e3"), "open breaker skips the inline flush")
	s.NoError(log("e4"))

	status := in.BufferStatus()
	s.Equal(3, status.Size)
	s.Require().Len(s.dlq.entries, 1)
	s.Equal("e1", s.dlq.entries[0].String("prompt"))
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.DeadLettered))
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.BreakerOpen))
	s.GreaterOrEqual(promtestutil.ToFloat64(s.metrics.Flushes.WithLabelValues(metrics.ResultSkipped)), 1.0)

	s.store.SetPutHook(nil)
	s.Require().NoError(in.Flush(ctx), "explicit flush bypasses the breaker")
	s.False(in.BufferStatus().BreakerOpen)
	s.Equal(0.0, promtestutil.ToFloat64(s.metrics.BreakerOpen))
}

func (s *IngestorSuite) TestRetryBacksOffLinearly() {
	cfg := testConfig()
	cfg.RetryAttempts = 3
	cfg.RetryDelay = 10 * time.Millisecond
	in := s.newIngestor(cfg)

	var waits []time.Duration
	in.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	calls := 0
	s.store.SetPutHook(func(string) error {
		calls++
		if calls < 3 {
			return errors.New("throttled")
		}
		return nil
	})

	s.Require().NoError(in.Log(context.Background(), testutil.NewChatBotEntry().Build(), LogOptions{}))
	s.Require().NoError(in.Flush(context.Background()))
	s.Equal(3, calls)
	s.Equal([]time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, waits)
}

func (s *IngestorSuite) TestRequestTimeoutIsRetryableFailure() {
	cfg := testConfig()
	cfg.RetryAttempts = 2
	cfg.RequestTimeout = 5 * time.Millisecond
	cfg.EnableBuffer = false
	in := New(blockingStore{lake.NewMemory()}, s.consent, cfg, WithMetrics(s.metrics))
	in.sleep = func(context.Context, time.Duration) error { return nil }

	err := in.Log(context.Background(), testutil.NewChatBotEntry().Build(), LogOptions{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeLogError))
	s.ErrorIs(err, lake.ErrRequestTimeout)
}

func (s *IngestorSuite) TestUnbufferedWritesImmediately() {
	cfg := testConfig()
	cfg.EnableBuffer = false
	cfg.EnableCompression = false
	in := s.newIngestor(cfg)

	s.Require().NoError(in.Log(context.Background(), testutil.NewChatBotEntry().WithUser("u1").Build(), LogOptions{}))
	keys := s.store.Keys()
	s.Require().Len(keys, 1)
	s.True(strings.HasSuffix(keys[0], ".json"))
	s.Len(s.objects(lake.RawPrefix), 1)
}

func (s *IngestorSuite) TestSealedUploads() {
	cfg := testConfig()
	cfg.KMSKeyID = "alias/lake"
	in := s.newIngestor(cfg, WithSealer(prefixSealer{}))
	ctx := context.Background()

	s.Require().NoError(in.Log(ctx, testutil.NewChatBotEntry().Build(), LogOptions{}))
	s.Require().NoError(in.Flush(ctx))

	obj, err := s.store.Get(ctx, s.store.Keys()[0])
	s.Require().NoError(err)
	s.True(bytes.HasPrefix(obj.Body, []byte("SEALED")))
	s.Equal(lake.EncryptionEnvelope, obj.Metadata[lake.MetaEncryption])

	lines, err := testutil.JSONLines(bytes.TrimPrefix(obj.Body, []byte("SEALED")), true)
	s.Require().NoError(err)
	s.Len(lines, 1)
}

func (s *IngestorSuite) TestAnonymizationCanBeDisabled() {
	in := s.newIngestor(testConfig(), WithAnonymizer(pii.NewDetector(pii.DefaultConfig())))
	ctx := context.Background()
	custom := map[string]any{"contact_email": "jane.doe@example.com"}

	s.Require().NoError(in.Log(ctx, testutil.NewChatBotEntry().Build(), LogOptions{CustomFields: custom}))
	s.Require().NoError(in.Log(ctx, testutil.NewChatBotEntry().Build(), LogOptions{CustomFields: custom, DisablePII: true}))
	s.Require().NoError(in.Flush(ctx))

	lines := s.objects(lake.RawPrefix)
	s.Require().Len(lines, 2)
	s.NotEqual("jane.doe@example.com", lines[0]["contact_email"])
	s.Contains(lines[0]["contact_email"], "@example.com")
	s.Equal("jane.doe@example.com", lines[1]["contact_email"])
}

func (s *IngestorSuite) TestLogBatchStopsAtFirstError() {
	in := s.newIngestor(testConfig())
	err := in.LogBatch(context.Background(), []map[string]any{
		testutil.NewChatBotEntry().Build(),
		{"service": "nope"},
		testutil.NewChatBotEntry().Build(),
	}, LogOptions{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Contains(err.Error(), "entry 1")
	s.Equal(1, in.BufferStatus().Size)
}

func (s *IngestorSuite) TestHealthCheckWritesProbeObject() {
	in := s.newIngestor(testConfig())
	h := in.HealthCheck(context.Background())
	s.Equal(StatusHealthy, h.Status)
	s.Len(s.store.Keys(), 1)
	s.True(strings.HasPrefix(s.store.Keys()[0], lake.HealthCheckPrefix))
	s.NoError(in.Check(context.Background()))

	s.store.SetPutHook(func(string) error { return errors.New("access denied") })
	h = in.HealthCheck(context.Background())
	s.Equal(StatusUnhealthy, h.Status)
	s.Contains(h.Details["error"], "access denied")
	s.Error(in.Check(context.Background()))
}

func (s *IngestorSuite) TestShutdownFlushesRemainder() {
	in := s.newIngestor(testConfig())
	in.Start()
	s.Require().NoError(in.Log(context.Background(), testutil.NewChatBotEntry().Build(), LogOptions{}))

	in.Shutdown(context.Background())
	s.Equal(1, s.store.Len())
	in.Shutdown(context.Background())
}

func (s *IngestorSuite) TestShutdownKeepsEntriesOnFailure() {
	cfg := testConfig()
	cfg.RetryAttempts = 1
	in := s.newIngestor(cfg)
	s.store.SetPutHook(func(string) error { return errors.New("down") })
	s.Require().NoError(in.Log(context.Background(), testutil.NewChatBotEntry().Build(), LogOptions{}))

	in.Shutdown(context.Background())
	s.Equal(1, in.BufferStatus().Size)
}

func (s *IngestorSuite) TestShutdownWaitsForInFlightFlush() {
	cfg := testConfig()
	cfg.BufferSize = 1
	in := s.newIngestor(cfg)
	ctx := context.Background()

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	s.store.SetPutHook(func(string) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	})

	logged := make(chan error, 1)
	go func() {
		logged <- in.Log(ctx, testutil.NewChatBotEntry().With("prompt", "a").Build(), LogOptions{})
	}()
	<-entered

	s.Require().NoError(in.Log(ctx, testutil.NewChatBotEntry().With("prompt", "b").Build(), LogOptions{}))
	s.Equal(1, in.BufferStatus().Size, "the second entry waits behind the running upload")

	stopped := make(chan struct{})
	go func() {
		in.Shutdown(ctx)
		close(stopped)
	}()
	s.Eventually(func() bool {
		in.mu.Lock()
		defer in.mu.Unlock()
		return in.stopped
	}, time.Second, time.Millisecond)
	err := in.Log(ctx, testutil.NewChatBotEntry().Build(), LogOptions{})
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable), "producers are turned away once shutdown starts")

	select {
	case <-stopped:
		s.FailNow("shutdown returned while an upload was still running")
	default:
	}

	close(release)
	s.Require().NoError(<-logged)
	<-stopped

	s.Zero(in.BufferStatus().Size)
	lines := s.objects(lake.RawPrefix)
	s.Require().Len(lines, 2)
	prompts := []any{lines[0]["prompt"], lines[1]["prompt"]}
	s.ElementsMatch([]any{"a", "b"}, prompts)
}

func (s *IngestorSuite) TestLogAfterShutdownIsUnavailable() {
	for _, enableBuffer := range []bool{true, false} {
		cfg := testConfig()
		cfg.EnableBuffer = enableBuffer
		in := s.newIngestor(cfg)
		in.Start()
		in.Shutdown(context.Background())

		err := in.Log(context.Background(), testutil.NewChatBotEntry().Build(), LogOptions{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Zero(in.BufferStatus().Size)

		err = in.LogBatch(context.Background(), []map[string]any{testutil.NewChatBotEntry().Build()}, LogOptions{})
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	}
	s.Zero(s.store.Len())
}

func (s *IngestorSuite) TestFailedFlushRequeuesOnlyFailedPartitions() {
	cfg := testConfig()
	cfg.RetryAttempts = 1
	in := s.newIngestor(cfg)
	ctx := context.Background()
	s.store.SetPutHook(func(key string) error {
		if strings.Contains(key, "/ai-service/") {
			return errors.New("s3 unavailable")
		}
		return nil
	})

	s.Require().NoError(in.Log(ctx, testutil.NewChatBotEntry().With("prompt", "kept").Build(), LogOptions{}))
	s.Require().NoError(in.Log(ctx, testutil.NewAIEntry().Build(), LogOptions{}))
	s.Require().NoError(in.Log(ctx, testutil.NewChatBotEntry().With("prompt", "kept too").Build(), LogOptions{}))

	s.Require().Error(in.Flush(ctx))
	s.Equal(1, in.BufferStatus().Size, "only the failed partition is requeued")
	s.Len(s.objects("raw/chat-bot/"), 2)

	s.store.SetPutHook(nil)
	s.Require().NoError(in.Flush(ctx))
	s.Len(s.objects("raw/chat-bot/"), 2, "uploaded partitions are not written twice")
	s.Len(s.objects("raw/ai-service/"), 1)
	s.Equal(2, s.store.Len())
}

func TestTimerFlushesOnce(t *testing.T) {
	store := lake.NewMemory()
	m := metrics.New(prometheus.NewRegistry())
	cfg := DefaultConfig()
	cfg.FlushInterval = 20 * time.Millisecond
	in := New(store, &fakeConsent{}, cfg, WithMetrics(m))
	in.Start()
	defer in.Shutdown(context.Background())

	require.NoError(t, in.Log(context.Background(), testutil.NewChatBotEntry().Build(), LogOptions{}))
	require.Eventually(t, func() bool { return store.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	time.Sleep(5 * cfg.FlushInterval)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.Flushes.WithLabelValues(metrics.ResultSuccess)))
}

func TestConcurrentLogsAreNotLost(t *testing.T) {
	store := lake.NewMemory()
	cfg := DefaultConfig()
	cfg.BufferSize = 7
	cfg.FlushInterval = 5 * time.Millisecond
	in := New(store, &fakeConsent{}, cfg)
	in.Start()

	result := testutil.RunConcurrent(50, func(int) error {
		return in.Log(context.Background(), testutil.NewChatBotEntry().Build(), LogOptions{})
	})
	require.EqualValues(t, 50, result.Successes)
	in.Shutdown(context.Background())

	total := 0
	for _, key := range store.Keys() {
		obj, err := store.Get(context.Background(), key)
		require.NoError(t, err)
		lines, err := testutil.JSONLines(obj.Body, lake.IsCompressed(key))
		require.NoError(t, err)
		total += len(lines)
	}
	assert.Equal(t, 50, total)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BufferSize: 5}.withDefaults()
	assert.Equal(t, 50, cfg.BufferCap)
	assert.Equal(t, 1, cfg.RetryAttempts)
	assert.Equal(t, 30*time.Second, cfg.FlushInterval)
	assert.Equal(t, 5, cfg.BreakerFailureThreshold)
	assert.False(t, cfg.EnableBuffer, "booleans are taken as given")
	assert.False(t, cfg.EnableCompression)

	store := lake.NewMemory()
	in := New(store, &fakeConsent{}, Config{})
	require.NoError(t, in.Log(context.Background(), testutil.NewChatBotEntry().Build(), LogOptions{}))
	require.Equal(t, 1, store.Len(), "a zero Config writes each entry immediately")
	for _, key := range store.Keys() {
		assert.False(t, lake.IsCompressed(key))
	}
}
