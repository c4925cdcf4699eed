package cache

import (
	"context"
	"sync"
	"time"

	"consentlake/internal/consent/models"
)

type entry struct {
	consent  models.UserConsent
	cachedAt time.Time
	// purged entries only remember the newest timestamp seen.
	purged bool
}

// Memory is a process-local TTL cache.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry
	hits    uint64
	misses  uint64
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory builds a cache; a non-positive ttl uses DefaultTTL.
func NewMemory(ttl time.Duration, opts ...MemoryOption) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Memory{ttl: ttl, now: time.Now, entries: make(map[string]entry)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(_ context.Context, userID string) (*models.UserConsent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(userID)
	if !ok || e.purged {
		m.misses++
		return nil, false, nil
	}
	m.hits++
	c := e.consent
	return &c, true, nil
}

// Set ignores consent when a newer snapshot for the user was set within
// the TTL, including one since purged.
func (m *Memory) Set(_ context.Context, consent *models.UserConsent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.live(consent.UserID); ok && consent.Timestamp.Before(e.consent.Timestamp) {
		return nil
	}
	m.entries[consent.UserID] = entry{consent: *consent, cachedAt: m.now()}
	return nil
}

// Delete hides the user's entry from Get but keeps its timestamp until the
// TTL runs out.
func (m *Memory) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(userID)
	if !ok {
		return nil
	}
	m.entries[userID] = entry{
		consent:  models.UserConsent{UserID: userID, Timestamp: e.consent.Timestamp},
		cachedAt: m.now(),
		purged:   true,
	}
	return nil
}

// live returns the unexpired entry for userID, dropping an expired one.
// Callers hold m.mu.
func (m *Memory) live(userID string) (entry, bool) {
	e, ok := m.entries[userID]
	if ok && m.now().Sub(e.cachedAt) >= m.ttl {
		delete(m.entries, userID)
		return entry{}, false
	}
	return e, ok
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
	m.hits, m.misses = 0, 0
	return nil
}

// Stats counts entries that have not expired or been purged.
func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	size := 0
	for _, e := range m.entries {
		if !e.purged && now.Sub(e.cachedAt) < m.ttl {
			size++
		}
	}
	return Stats{Size: size, Hits: m.hits, Misses: m.misses, HitRate: hitRate(m.hits, m.misses)}, nil
}
