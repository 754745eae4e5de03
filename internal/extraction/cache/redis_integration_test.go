//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"casework/internal/casefile"
	"casework/internal/extraction"
	"casework/internal/extraction/cache"
	"casework/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.cache = cache.NewRedisCache(s.redis.Client, 5*time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	key := extraction.CacheKey(casefile.KindCreditReport, []byte("%PDF"))

	err := s.cache.Set(ctx, key, casefile.Fields{"credit_score": 700, "applicant_name": "Aisha"})
	s.Require().NoError(err)

	fields, found, err := s.cache.Get(ctx, key)
	s.Require().NoError(err)
	s.True(found)
	s.Equal("Aisha", fields["applicant_name"])

	doc, err := casefile.Decode(casefile.KindCreditReport, fields)
	s.Require().NoError(err)
	s.Equal(700, *doc.(casefile.CreditReport).CreditScore)
}

func (s *RedisCacheSuite) TestMissingKey() {
	_, found, err := s.cache.Get(context.Background(), "absent")
	s.NoError(err)
	s.False(found)
}

func (s *RedisCacheSuite) TestEntriesExpire() {
	ctx := context.Background()
	short := cache.NewRedisCache(s.redis.Client, 50*time.Millisecond)
	s.Require().NoError(short.Set(ctx, "ttl", casefile.Fields{"name": "x"}))

	s.Eventually(func() bool {
		_, found, err := short.Get(ctx, "ttl")
		return err == nil && !found
	}, 2*time.Second, 20*time.Millisecond)
}
