package store

import (
	"context"
	"fmt"
	"sync"

	"consentlake/internal/consent/models"
	"consentlake/pkg/platform/sentinel"
)

// InMemoryStore keeps snapshots in memory for tests and local runs.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]*models.UserConsent
}

// New constructs an empty in-memory consent store.
func New() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[string][]*models.UserConsent)}
}

func (s *InMemoryStore) Append(_ context.Context, consent *models.UserConsent) error {
	if consent == nil || consent.UserID == "" {
		return fmt.Errorf("append consent: %w", sentinel.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *consent
	s.snapshots[c.UserID] = append(s.snapshots[c.UserID], &c)
	return nil
}

func (s *InMemoryStore) Latest(_ context.Context, userID string) (*models.UserConsent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.UserConsent
	for _, c := range s.snapshots[userID] {
		if latest == nil || !c.Timestamp.Before(latest.Timestamp) {
			latest = c
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	c := *latest
	return &c, nil
}

func (s *InMemoryStore) History(_ context.Context, userID string) ([]*models.UserConsent, error) {
	s.mu.RLock()
	out := copyAll(s.snapshots[userID])
	s.mu.RUnlock()
	newestFirst(out)
	return out, nil
}

func (s *InMemoryStore) ListLatest(_ context.Context) ([]*models.UserConsent, error) {
	s.mu.RLock()
	var all []*models.UserConsent
	for _, snaps := range s.snapshots {
		all = append(all, copyAll(snaps)...)
	}
	s.mu.RUnlock()
	return latestPerUser(all), nil
}

func copyAll(snaps []*models.UserConsent) []*models.UserConsent {
	out := make([]*models.UserConsent, len(snaps))
	for i, c := range snaps {
		cp := *c
		out[i] = &cp
	}
	return out
}
