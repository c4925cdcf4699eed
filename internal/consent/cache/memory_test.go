package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentlake/internal/consent/models"
)

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory(5*time.Minute, WithClock(func() time.Time { return now }))

	require.NoError(t, c.Set(ctx, &models.UserConsent{UserID: "u1", Analytics: true}))

	got, ok, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Analytics)

	now = now.Add(4*time.Minute + 59*time.Second)
	_, ok, _ = c.Get(ctx, "u1")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = c.Get(ctx, "u1")
	assert.False(t, ok, "entries expire at the TTL")

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Size)
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(0)
	in := &models.UserConsent{UserID: "u1", AITraining: true}
	require.NoError(t, c.Set(ctx, in))
	in.AITraining = false

	got, ok, _ := c.Get(ctx, "u1")
	require.True(t, ok)
	assert.True(t, got.AITraining)
	got.AITraining = false

	again, _, _ := c.Get(ctx, "u1")
	assert.True(t, again.AITraining)
}

func TestMemory_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	require.NoError(t, c.Set(ctx, &models.UserConsent{UserID: "a"}))
	require.NoError(t, c.Set(ctx, &models.UserConsent{UserID: "b"}))

	require.NoError(t, c.Delete(ctx, "a"))
	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, c.Clear(ctx))
	stats, _ := c.Stats(ctx)
	assert.Equal(t, Stats{}, stats)
}

func TestMemory_OlderSnapshotsDoNotReplaceNewer(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory(time.Minute, WithClock(func() time.Time { return now }))

	older := &models.UserConsent{UserID: "u1", Analytics: true, Timestamp: now.Add(-time.Second)}
	newer := &models.UserConsent{UserID: "u1", Timestamp: now}

	require.NoError(t, c.Set(ctx, newer))
	require.NoError(t, c.Set(ctx, older))
	got, ok, _ := c.Get(ctx, "u1")
	require.True(t, ok)
	assert.False(t, got.Analytics, "the newer snapshot stays cached")

	require.NoError(t, c.Delete(ctx, "u1"))
	_, ok, _ = c.Get(ctx, "u1")
	assert.False(t, ok, "deleted entries read as misses")

	require.NoError(t, c.Set(ctx, older))
	_, ok, _ = c.Get(ctx, "u1")
	assert.False(t, ok, "a snapshot older than the deleted one is not cached")

	stats, _ := c.Stats(ctx)
	assert.Equal(t, 0, stats.Size)

	later := &models.UserConsent{UserID: "u1", Research: true, Timestamp: now.Add(time.Second)}
	require.NoError(t, c.Set(ctx, later))
	got, ok, _ = c.Get(ctx, "u1")
	require.True(t, ok)
	assert.True(t, got.Research)

	now = now.Add(time.Minute)
	require.NoError(t, c.Set(ctx, older))
	got, ok, _ = c.Get(ctx, "u1")
	require.True(t, ok, "the ordering check lapses with the TTL")
	assert.True(t, got.Analytics)
}
