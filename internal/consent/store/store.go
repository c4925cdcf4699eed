// Package store persists consent snapshots.
//
// Error contract, shared by every backend:
//   - Latest returns sentinel.ErrNotFound when the user has no snapshot
//   - History returns an empty slice for unknown users
//   - infrastructure failures are wrapped with the operation name
package store

import (
	"cmp"
	"slices"
	"time"

	"consentlake/internal/consent/models"
)

// sortTimestampLayout is fixed width so lexical order equals time order.
const sortTimestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatSortKey(t time.Time) string {
	return t.UTC().Format(sortTimestampLayout)
}

func parseSortKey(s string) (time.Time, error) {
	return time.Parse(sortTimestampLayout, s)
}

// newestFirst orders snapshots most recent first.
func newestFirst(snaps []*models.UserConsent) {
	slices.SortStableFunc(snaps, func(a, b *models.UserConsent) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}

// latestPerUser reduces a set of snapshots to the newest one per user,
// ordered by user id.
func latestPerUser(snaps []*models.UserConsent) []*models.UserConsent {
	latest := make(map[string]*models.UserConsent)
	for _, s := range snaps {
		if cur, ok := latest[s.UserID]; !ok || s.Timestamp.After(cur.Timestamp) {
			latest[s.UserID] = s
		}
	}
	out := make([]*models.UserConsent, 0, len(latest))
	for _, s := range latest {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *models.UserConsent) int {
		return cmp.Compare(a.UserID, b.UserID)
	})
	return out
}
