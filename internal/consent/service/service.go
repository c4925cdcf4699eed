package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"consentlake/internal/consent/cache"
	"consentlake/internal/consent/metrics"
	"consentlake/internal/consent/models"
	"consentlake/internal/platform/privacy"
	pkgerrors "consentlake/pkg/domain-errors"
	"consentlake/pkg/platform/sentinel"
	platformsync "consentlake/pkg/platform/sync"
)

// Store persists consent snapshots.
// Error Contract:
// - Latest returns sentinel.ErrNotFound when the user has no snapshot
// - Other methods return nil on success or wrapped errors on failure
type Store interface {
	Append(ctx context.Context, consent *models.UserConsent) error
	Latest(ctx context.Context, userID string) (*models.UserConsent, error)
	History(ctx context.Context, userID string) ([]*models.UserConsent, error)
	ListLatest(ctx context.Context) ([]*models.UserConsent, error)
}

// Cache holds recent snapshots. Cache failures never fail a request: reads
// fall through to the store and writes are logged.
//
// Set must ignore a snapshot older than the one it last accepted for the
// user, and Delete must keep remembering that timestamp until it expires.
// Together they stop a reader that loaded a pre-revoke snapshot from
// caching it after the revocation.
type Cache interface {
	Get(ctx context.Context, userID string) (*models.UserConsent, bool, error)
	Set(ctx context.Context, consent *models.UserConsent) error
	Delete(ctx context.Context, userID string) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (cache.Stats, error)
}

// Publisher announces consent changes to downstream systems.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

type Option func(*Service)

// Service is the consent manager: it records snapshots, answers purpose
// checks and aggregates consent state. Every check fails closed.
type Service struct {
	store     Store
	cache     Cache
	publisher Publisher
	tx        StoreTx
	metrics   *metrics.Metrics
	logger    *slog.Logger
	locks     *platformsync.ShardedMutex
	now       func() time.Time
}

func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:  store,
		logger: logger,
		locks:  platformsync.NewShardedMutex(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.cache == nil {
		svc.cache = cache.NewMemory(cache.DefaultTTL)
	}
	if svc.logger == nil {
		svc.logger = slog.New(slog.DiscardHandler)
	}
	if svc.tx == nil {
		svc.tx = directTx{store: store}
	}
	return svc
}

// WithCache replaces the default in-memory cache.
func WithCache(c Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithPublisher enables change events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithMetrics sets the metrics instance for the service
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// CheckConsent reports whether userID currently allows purpose. Any error,
// unknown purpose or missing record yields false.
func (s *Service) CheckConsent(ctx context.Context, userID, purpose string) bool {
	p, ok := models.ParsePurpose(purpose)
	if !ok {
		s.logger.WarnContext(ctx, "consent check with unknown purpose", "user_id", userID, "purpose", purpose)
		s.incrementCheckFailed(purpose, "unknown_purpose")
		return false
	}
	if userID == "" {
		s.incrementCheckFailed(string(p), "missing_user")
		return false
	}

	consent, err := s.GetUserConsent(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "consent check failed closed", "user_id", userID, "purpose", p, "error", err)
		s.incrementCheckFailed(string(p), "error")
		return false
	}
	if consent == nil {
		s.incrementCheckFailed(string(p), "missing")
		return false
	}
	if !consent.Allows(p) {
		s.incrementCheckFailed(string(p), "denied")
		return false
	}
	s.incrementCheckPassed(string(p))
	return true
}

// GetUserConsent returns the latest snapshot, or nil when none was ever recorded.
func (s *Service) GetUserConsent(ctx context.Context, userID string) (*models.UserConsent, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "user id is required")
	}

	cached, ok, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "consent cache read failed", "user_id", userID, "error", err)
	}
	if ok {
		s.observeCacheLookup(true)
		return cached, nil
	}
	s.observeCacheLookup(false)

	start := time.Now()
	consent, err := s.store.Latest(ctx, userID)
	s.observeStore("latest", start)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to read consent")
	}
	s.cacheSet(ctx, consent)
	return consent, nil
}

// UpdateConsent merges partial over the previous snapshot and appends the
// result. Updates for one user are serialized so concurrent merges do not
// drop fields.
func (s *Service) UpdateConsent(ctx context.Context, userID string, partial models.Partial, meta models.Meta) (*models.UserConsent, error) {
	next, err := s.update(ctx, userID, partial, meta, false)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, models.EventConsentUpdated, next)
	s.logger.InfoContext(ctx, "consent updated", "user_id", userID, "version", next.Version)
	return next, nil
}

// RevokeAllConsent writes an all-false snapshot and purges the cache entry.
func (s *Service) RevokeAllConsent(ctx context.Context, userID string) error {
	revoked, err := s.update(ctx, userID, models.AllFalse(), models.Meta{}, true)
	if err != nil {
		return err
	}
	s.publish(ctx, models.EventConsentUpdated, revoked)
	s.publish(ctx, models.EventConsentRevoked, revoked)
	if s.metrics != nil {
		s.metrics.IncrementRevocations()
	}
	s.logger.InfoContext(ctx, "consent revoked", "user_id", userID)
	return nil
}

// update appends the merged snapshot and refreshes the cache while holding
// the user's lock, so a slower writer can never cache an older snapshot
// over a newer one. purge leaves the cache empty for the user afterwards.
func (s *Service) update(ctx context.Context, userID string, partial models.Partial, meta models.Meta, purge bool) (*models.UserConsent, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "user id is required")
	}

	var next *models.UserConsent
	err := s.withUserLock(ctx, userID, func(ctx context.Context) error {
		err := s.tx.RunInTx(ctx, userID, func(ctx context.Context, st Store) error {
			prev, err := s.latestUncached(ctx, st, userID)
			if err != nil {
				return err
			}
			merged := models.Merge(userID, prev, partial)
			merged.Timestamp = s.nextTimestamp(prev)
			merged.Version = models.CurrentVersion
			if meta.IPAddress != "" {
				merged.IPAddress = privacy.AnonymizeIP(meta.IPAddress)
			}
			merged.UserAgent = privacy.SummarizeUserAgent(meta.UserAgent)

			start := time.Now()
			err = st.Append(ctx, &merged)
			s.observeStore("append", start)
			if err != nil {
				return pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to save consent")
			}
			next = &merged
			return nil
		})
		if err != nil {
			return pkgerrors.Wrap(err, pkgerrors.CodeInternal, "consent transaction failed")
		}

		// Set records next as the newest snapshot even when purging, so a
		// reader still holding an older one cannot refill the entry.
		s.cacheSet(ctx, next)
		if purge {
			if err := s.cache.Delete(ctx, userID); err != nil {
				s.logger.WarnContext(ctx, "consent cache purge failed", "user_id", userID, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementUpdates()
	}
	return next, nil
}

// GetEligibleUsersForAITraining lists users whose latest snapshot allows AI
// training. The scan covers the whole store, not one page.
func (s *Service) GetEligibleUsersForAITraining(ctx context.Context) ([]string, error) {
	start := time.Now()
	latest, err := s.store.ListLatest(ctx)
	s.observeStore("list_latest", start)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to list consents")
	}
	users := []string{}
	for _, c := range latest {
		if c.AITraining {
			users = append(users, c.UserID)
		}
	}
	return users, nil
}

// GetConsentAuditTrail returns every snapshot for userID, most recent first.
func (s *Service) GetConsentAuditTrail(ctx context.Context, userID string) ([]*models.UserConsent, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "user id is required")
	}
	start := time.Now()
	history, err := s.store.History(ctx, userID)
	s.observeStore("history", start)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to read consent history")
	}
	return history, nil
}

// GenerateConsentReport counts each purpose over every user's latest snapshot.
func (s *Service) GenerateConsentReport(ctx context.Context) (*models.Report, error) {
	start := time.Now()
	latest, err := s.store.ListLatest(ctx)
	s.observeStore("list_latest", start)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to list consents")
	}
	report := &models.Report{GeneratedAt: s.now().UTC()}
	for _, c := range latest {
		report.Add(c)
	}
	return report, nil
}

// ClearCache drops every cached snapshot.
func (s *Service) ClearCache(ctx context.Context) error {
	if err := s.cache.Clear(ctx); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeUnavailable, "failed to clear consent cache")
	}
	return nil
}

// CacheStats reports cache size and hit rate.
func (s *Service) CacheStats(ctx context.Context) (cache.Stats, error) {
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return cache.Stats{}, pkgerrors.Wrap(err, pkgerrors.CodeUnavailable, "failed to read consent cache stats")
	}
	return stats, nil
}

// latestUncached reads st directly; merges must not build on a stale
// cached snapshot written by another replica.
func (s *Service) latestUncached(ctx context.Context, st Store, userID string) (*models.UserConsent, error) {
	start := time.Now()
	prev, err := st.Latest(ctx, userID)
	s.observeStore("latest", start)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to read consent")
	}
	return prev, nil
}

// nextTimestamp is now, nudged past prev so snapshots of one user never share
// a sort key.
func (s *Service) nextTimestamp(prev *models.UserConsent) time.Time {
	ts := s.now().UTC().Truncate(time.Microsecond)
	if prev != nil && !ts.After(prev.Timestamp) {
		ts = prev.Timestamp.Add(time.Microsecond)
	}
	return ts
}

func (s *Service) cacheSet(ctx context.Context, consent *models.UserConsent) {
	if err := s.cache.Set(ctx, consent); err != nil {
		s.logger.WarnContext(ctx, "consent cache write failed", "user_id", consent.UserID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, typ models.EventType, consent *models.UserConsent) {
	if s.publisher == nil {
		return
	}
	event := models.Event{Type: typ, UserID: consent.UserID, Consent: consent, OccurredAt: s.now().UTC()}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "consent event publish failed", "user_id", consent.UserID, "type", typ, "error", err)
	}
}

func (s *Service) incrementCheckPassed(purpose string) {
	if s.metrics != nil {
		s.metrics.IncrementConsentCheckPassed(purpose)
	}
}

func (s *Service) incrementCheckFailed(purpose, reason string) {
	if s.metrics != nil {
		s.metrics.IncrementConsentCheckFailed(purpose, reason)
	}
}

func (s *Service) observeCacheLookup(hit bool) {
	if s.metrics != nil {
		s.metrics.ObserveCacheLookup(hit)
	}
}

func (s *Service) observeStore(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveStoreOperationLatency(op, time.Since(start).Seconds())
	}
}
