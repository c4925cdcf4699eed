// Package ingest is the data lake writer: it admits producer events, gates
// them on analytics consent, de-identifies them and buffers them into
// date/service partitioned lake objects.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"consentlake/internal/ingest/deadletter"
	"consentlake/internal/ingest/metrics"
	"consentlake/internal/lake"
	"consentlake/internal/logentry"
	"consentlake/internal/platform/tracing"
	dErrors "consentlake/pkg/domain-errors"
	"consentlake/pkg/platform/circuit"
)

// ConsentPurpose gates every entry that names a user.
const ConsentPurpose = "consent_analytics"

// ConsentChecker answers purpose checks. Implementations fail closed.
type ConsentChecker interface {
	CheckConsent(ctx context.Context, userID, purpose string) bool
}

// Anonymizer rewrites sensitive values and returns a new entry.
type Anonymizer interface {
	DetectAndAnonymize(entry *logentry.Entry) *logentry.Entry
}

// Sealer encrypts a whole upload body.
type Sealer interface {
	Seal(ctx context.Context, plaintext []byte) ([]byte, error)
}

// DeadLetter receives entries evicted from a full buffer.
type DeadLetter interface {
	Send(ctx context.Context, entries []*logentry.Entry, reason string) error
}

// LogOptions adjusts a single Log call.
type LogOptions struct {
	SkipValidation bool
	DisablePII     bool
	CustomFields   map[string]any
}

// BufferStatus is a point-in-time view of the buffer.
type BufferStatus struct {
	Size        int  `json:"size"`
	MaxSize     int  `json:"max_size"`
	Cap         int  `json:"cap"`
	Flushing    bool `json:"flushing"`
	BreakerOpen bool `json:"breaker_open"`
}

type trigger int

const (
	triggerManual trigger = iota
	triggerSize
	triggerTimer
)

func (t trigger) String() string {
	switch t {
	case triggerSize:
		return "size"
	case triggerTimer:
		return "timer"
	default:
		return "manual"
	}
}

type Option func(*Ingestor)

// Ingestor owns one buffer, one flush loop and one breaker. Instances are
// independent of each other.
type Ingestor struct {
	store      lake.ObjectStore
	consent    ConsentChecker
	cfg        Config
	anonymizer Anonymizer
	sealer     Sealer
	deadLetter DeadLetter
	breaker    *circuit.Breaker
	metrics    *metrics.Metrics
	tracer     tracing.Tracer
	logger     *slog.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	buffer    []*logentry.Entry
	flushing  bool
	flushDone chan struct{}
	stopped   bool

	ctx       context.Context
	cancel    context.CancelFunc
	stop      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// WithAnonymizer enables de-identification. Without it entries are stored
// as admitted.
func WithAnonymizer(a Anonymizer) Option {
	return func(in *Ingestor) {
		in.anonymizer = a
	}
}

// WithSealer enables client-side envelope encryption of every upload.
func WithSealer(s Sealer) Option {
	return func(in *Ingestor) {
		in.sealer = s
	}
}

// WithDeadLetter replaces the log-only eviction sink.
func WithDeadLetter(d DeadLetter) Option {
	return func(in *Ingestor) {
		in.deadLetter = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(in *Ingestor) {
		in.metrics = m
	}
}

func WithTracer(t tracing.Tracer) Option {
	return func(in *Ingestor) {
		in.tracer = t
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(in *Ingestor) {
		in.logger = logger
	}
}

// WithClock overrides time.Now for timestamps, keys and the breaker.
func WithClock(now func() time.Time) Option {
	return func(in *Ingestor) {
		in.now = now
	}
}

// New builds an ingestor. Call Start to run the flush timer.
func New(store lake.ObjectStore, consent ConsentChecker, cfg Config, opts ...Option) *Ingestor {
	ctx, cancel := context.WithCancel(context.Background())
	in := &Ingestor{
		store:   store,
		consent: consent,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		sleep:   sleepContext,
		ctx:     ctx,
		cancel:  cancel,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.logger == nil {
		in.logger = slog.New(slog.DiscardHandler)
	}
	if in.metrics == nil {
		in.metrics = metrics.New(prometheus.NewRegistry())
	}
	if in.tracer == nil {
		in.tracer = tracing.NewNoop()
	}
	if in.deadLetter == nil {
		in.deadLetter = deadletter.NewLogSink(in.logger)
	}
	in.breaker = circuit.New("lake-upload",
		circuit.WithFailureThreshold(in.cfg.BreakerFailureThreshold),
		circuit.WithSuccessThreshold(in.cfg.BreakerSuccessThreshold),
		circuit.WithCooldown(in.cfg.FlushInterval),
		circuit.WithClock(in.now),
	)
	return in
}

// Start runs the periodic flush loop when buffering is enabled.
func (in *Ingestor) Start() {
	if !in.cfg.EnableBuffer {
		return
	}
	in.startOnce.Do(func() {
		in.wg.Add(1)
		go in.run()
	})
}

func (in *Ingestor) run() {
	defer in.wg.Done()

	ticker := time.NewTicker(in.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-in.stop:
			return
		case <-ticker.C:
			_ = in.flush(in.ctx, triggerTimer) //nolint:errcheck // logged in flush
		}
	}
}

// Shutdown stops the timer, rejects further Log calls, waits for a flush
// already uploading and then makes one best-effort final flush. A failed
// final flush is logged, not returned.
func (in *Ingestor) Shutdown(ctx context.Context) {
	in.logger.InfoContext(ctx, "shutting down ingestor")
	in.mu.Lock()
	in.stopped = true
	in.mu.Unlock()
	in.stopOnce.Do(func() { close(in.stop) })

	done := make(chan struct{})
	go func() {
		in.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		in.cancel()
		<-done
	}
	in.cancel()

	if err := in.waitForFlush(ctx); err != nil {
		in.logger.ErrorContext(ctx, "in-flight flush still running at shutdown deadline", "error", err)
	}
	if in.BufferStatus().Size > 0 {
		if err := in.flush(ctx, triggerManual); err != nil {
			in.logger.ErrorContext(ctx, "failed to flush during shutdown", "error", err)
		}
	}
	if remaining := in.BufferStatus().Size; remaining > 0 {
		in.logger.ErrorContext(ctx, "ingestor stopped with unflushed entries", "remaining", remaining)
		return
	}
	in.logger.InfoContext(ctx, "ingestor shutdown complete")
}

// waitForFlush blocks until no flush is uploading or ctx ends.
func (in *Ingestor) waitForFlush(ctx context.Context) error {
	for {
		in.mu.Lock()
		if !in.flushing {
			in.mu.Unlock()
			return nil
		}
		done := in.flushDone
		in.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// errStopped marks Log calls made after Shutdown.
var errStopped = errors.New("ingestor is shut down")

func stoppedError() error {
	return dErrors.Wrap(errStopped, dErrors.CodeUnavailable, "ingestor is shut down")
}

// Log admits one raw event. Validation failures are returned as
// validation_failed; storage failures surface as LOG_ERROR. An entry whose
// user has not consented to analytics is dropped and Log returns nil.
// After Shutdown every call fails with unavailable.
func (in *Ingestor) Log(ctx context.Context, raw map[string]any, opts LogOptions) error {
	in.mu.Lock()
	stopped := in.stopped
	in.mu.Unlock()
	if stopped {
		return stoppedError()
	}

	entry, err := in.admit(raw, opts)
	if err != nil {
		in.metrics.EntriesDropped.WithLabelValues(metrics.ReasonValidation).Inc()
		in.logger.WarnContext(ctx, "rejected log entry", "service", raw[logentry.FieldService], "error", err)
		return err
	}

	if userID := entry.UserID(); userID != "" && !in.consent.CheckConsent(ctx, userID, ConsentPurpose) {
		in.metrics.EntriesDropped.WithLabelValues(metrics.ReasonNoConsent).Inc()
		in.logger.WarnContext(ctx, "user has not consented to analytics logging",
			"user_id", userID,
			"service", entry.Service,
		)
		return nil
	}

	if !opts.DisablePII && in.anonymizer != nil {
		entry = in.anonymizer.DetectAndAnonymize(entry)
	}

	if in.cfg.EnableBuffer {
		err = in.enqueue(ctx, entry)
	} else {
		_, err = in.send(ctx, []*logentry.Entry{entry})
		if err == nil {
			in.metrics.EntriesLogged.WithLabelValues(string(entry.Service)).Inc()
		}
	}
	if errors.Is(err, errStopped) {
		return err
	}
	if err != nil {
		in.logger.ErrorContext(ctx, "failed to log entry to data lake",
			"code", dErrors.CodeLogError,
			"service", entry.Service,
			"error", err,
		)
		return dErrors.Rewrap(err, dErrors.CodeLogError, fmt.Sprintf("log %s entry: %v", entry.Service, err))
	}
	return nil
}

// LogBatch logs entries in order and stops at the first error.
func (in *Ingestor) LogBatch(ctx context.Context, raws []map[string]any, opts LogOptions) error {
	for i, raw := range raws {
		if err := in.Log(ctx, raw, opts); err != nil {
			return dErrors.Wrap(err, dErrors.CodeLogError, fmt.Sprintf("entry %d: %v", i, err))
		}
	}
	return nil
}

// admit validates raw and applies enrichment: a missing timestamp is
// stamped and custom fields are merged. The consent gate runs on the
// enriched entry, so a custom user_id is gated too.
func (in *Ingestor) admit(raw map[string]any, opts LogOptions) (*logentry.Entry, error) {
	var entry *logentry.Entry
	if opts.SkipValidation {
		if raw == nil {
			return nil, dErrors.New(dErrors.CodeValidation, "log entry is required")
		}
		entry = logentry.FromFields(raw)
		if entry.Service == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "service is required")
		}
	} else {
		var err error
		if entry, err = logentry.Validate(raw); err != nil {
			return nil, err
		}
	}

	entry = entry.Clone()
	if entry.String(logentry.FieldTimestamp) == "" {
		entry.SetTimestamp(in.now())
	}
	entry.Merge(opts.CustomFields)
	return entry, nil
}

func (in *Ingestor) enqueue(ctx context.Context, entry *logentry.Entry) error {
	in.mu.Lock()
	if in.stopped {
		in.mu.Unlock()
		return stoppedError()
	}
	in.buffer = append(in.buffer, entry)
	evicted := in.trimLocked()
	size := len(in.buffer)
	in.mu.Unlock()

	in.metrics.EntriesLogged.WithLabelValues(string(entry.Service)).Inc()
	in.metrics.BufferSize.Set(float64(size))
	in.evict(ctx, evicted)

	if size >= in.cfg.BufferSize {
		return in.flush(ctx, triggerSize)
	}
	return nil
}

// trimLocked drops the oldest entries beyond the buffer cap and returns them.
func (in *Ingestor) trimLocked() []*logentry.Entry {
	over := len(in.buffer) - in.cfg.BufferCap
	if over <= 0 {
		return nil
	}
	evicted := slices.Clone(in.buffer[:over])
	in.buffer = slices.Clone(in.buffer[over:])
	return evicted
}

func (in *Ingestor) evict(ctx context.Context, entries []*logentry.Entry) {
	if len(entries) == 0 {
		return
	}
	in.metrics.EntriesDropped.WithLabelValues(metrics.ReasonOverflow).Add(float64(len(entries)))
	in.metrics.DeadLettered.Add(float64(len(entries)))
	in.logger.WarnContext(ctx, "buffer cap reached, evicting oldest entries",
		"evicted", len(entries),
		"cap", in.cfg.BufferCap,
	)
	if err := in.deadLetter.Send(ctx, entries, metrics.ReasonOverflow); err != nil {
		in.logger.ErrorContext(ctx, "dead-letter send failed", "error", err, "entries", len(entries))
	}
}

// Flush uploads everything buffered. It is a no-op while another flush is in
// progress. Explicit flushes bypass the breaker. When some partitions fail,
// only their entries go back to the front of the buffer.
func (in *Ingestor) Flush(ctx context.Context) error {
	return in.flush(ctx, triggerManual)
}

func (in *Ingestor) flush(ctx context.Context, t trigger) error {
	in.mu.Lock()
	if in.flushing || len(in.buffer) == 0 {
		in.mu.Unlock()
		return nil
	}
	if t != triggerManual && !in.breaker.Allow() {
		in.mu.Unlock()
		in.metrics.Flushes.WithLabelValues(metrics.ResultSkipped).Inc()
		return nil
	}
	batch := in.buffer
	in.buffer = nil
	in.flushing = true
	in.flushDone = make(chan struct{})
	in.mu.Unlock()
	in.metrics.BufferSize.Set(0)

	failed, err := in.send(ctx, batch)

	in.mu.Lock()
	in.flushing = false
	close(in.flushDone)
	var evicted []*logentry.Entry
	if err != nil {
		in.buffer = slices.Concat(failed, in.buffer)
		evicted = in.trimLocked()
	}
	size := len(in.buffer)
	in.mu.Unlock()
	in.metrics.BufferSize.Set(float64(size))

	if err != nil {
		in.metrics.Flushes.WithLabelValues(metrics.ResultFailure).Inc()
		in.recordFailure(ctx)
		in.logger.ErrorContext(ctx, "failed to flush buffer",
			"trigger", t.String(),
			"entries", len(batch),
			"requeued", len(failed),
			"buffered", size,
			"error", err,
		)
		in.evict(ctx, evicted)
		return err
	}
	in.metrics.Flushes.WithLabelValues(metrics.ResultSuccess).Inc()
	in.recordSuccess(ctx)
	in.logger.InfoContext(ctx, "flushed entries to data lake", "entries", len(batch), "trigger", t.String())
	return nil
}

func (in *Ingestor) recordFailure(ctx context.Context) {
	if _, change := in.breaker.RecordFailure(); change.Opened {
		in.metrics.BreakerOpen.Set(1)
		in.logger.WarnContext(ctx, "lake circuit breaker opened", "breaker", in.breaker.Name())
	}
}

func (in *Ingestor) recordSuccess(ctx context.Context) {
	if _, change := in.breaker.RecordSuccess(); change.Closed {
		in.metrics.BreakerOpen.Set(0)
		in.logger.InfoContext(ctx, "lake circuit breaker closed", "breaker", in.breaker.Name())
	}
}

// BufferStatus reports the buffer's size and limits.
func (in *Ingestor) BufferStatus() BufferStatus {
	in.mu.Lock()
	defer in.mu.Unlock()
	return BufferStatus{
		Size:        len(in.buffer),
		MaxSize:     in.cfg.BufferSize,
		Cap:         in.cfg.BufferCap,
		Flushing:    in.flushing,
		BreakerOpen: in.breaker.IsOpen(),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var errUnhealthy = errors.New("lake unreachable")
