//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"consentlake/internal/consent/models"
	"consentlake/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *Redis
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = NewRedis(s.redis.Client, time.Second)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.Client.FlushAll(context.Background()).Err())
	s.Require().NoError(s.cache.Clear(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTripAndExpiry() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, &models.UserConsent{UserID: "u1", Research: true}))

	got, ok, err := s.cache.Get(ctx, "u1")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.True(got.Research)

	s.Eventually(func() bool {
		_, ok, err := s.cache.Get(ctx, "u1")
		return err == nil && !ok
	}, 5*time.Second, 100*time.Millisecond)
}

func (s *RedisCacheSuite) TestClearAndStats() {
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		s.Require().NoError(s.cache.Set(ctx, &models.UserConsent{UserID: id}))
	}
	stats, err := s.cache.Stats(ctx)
	s.Require().NoError(err)
	s.Equal(3, stats.Size)

	s.Require().NoError(s.cache.Clear(ctx))
	stats, err = s.cache.Stats(ctx)
	s.Require().NoError(err)
	s.Equal(0, stats.Size)
}

func (s *RedisCacheSuite) TestOlderSnapshotIsIgnored() {
	ctx := context.Background()
	s.cache = NewRedis(s.redis.Client, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	older := &models.UserConsent{UserID: "u1", Analytics: true, Timestamp: now.Add(-time.Millisecond)}
	newer := &models.UserConsent{UserID: "u1", Timestamp: now}

	s.Require().NoError(s.cache.Set(ctx, newer))
	s.Require().NoError(s.cache.Set(ctx, older))
	got, ok, err := s.cache.Get(ctx, "u1")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.False(got.Analytics)

	s.Require().NoError(s.cache.Delete(ctx, "u1"))
	s.Require().NoError(s.cache.Set(ctx, older))
	_, ok, err = s.cache.Get(ctx, "u1")
	s.Require().NoError(err)
	s.False(ok, "deleted users keep their newest timestamp")

	stats, err := s.cache.Stats(ctx)
	s.Require().NoError(err)
	s.Equal(0, stats.Size)
}
