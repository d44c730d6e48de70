//go:build integration

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/Suhaibinator/redditauth/pkg/session"
)

type RedisStoreSuite struct {
	suite.Suite
	container *tcredis.RedisContainer
	store     *session.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	url, err := container.ConnectionString(ctx)
	s.Require().NoError(err)

	s.store, err = session.NewRedisStore(ctx, url, time.Minute)
	s.Require().NoError(err)
}

func (s *RedisStoreSuite) TearDownSuite() {
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *RedisStoreSuite) TestTakeIsSingleUse() {
	ctx := context.Background()
	s.Require().NoError(s.store.Set(ctx, "sid-1", session.KeyState, "abc"))

	v, err := s.store.Take(ctx, "sid-1", session.KeyState)
	s.Require().NoError(err)
	s.Equal("abc", v)

	_, err = s.store.Take(ctx, "sid-1", session.KeyState)
	s.Require().ErrorIs(err, session.ErrNotFound)
}

func (s *RedisStoreSuite) TestSessionsAreIsolated() {
	ctx := context.Background()
	s.Require().NoError(s.store.Set(ctx, "sid-a", session.KeyState, "a"))

	_, err := s.store.Get(ctx, "sid-b", session.KeyState)
	s.Require().ErrorIs(err, session.ErrNotFound)
}

func (s *RedisStoreSuite) TestDelete() {
	ctx := context.Background()
	s.Require().NoError(s.store.Set(ctx, "sid-d", session.KeyAccessToken, "tok"))
	s.Require().NoError(s.store.Set(ctx, "sid-d", session.KeyDestination, "/node/1"))

	s.Require().NoError(s.store.Delete(ctx, "sid-d", session.KeyAccessToken, session.KeyDestination))

	_, err := s.store.Get(ctx, "sid-d", session.KeyAccessToken)
	s.Require().ErrorIs(err, session.ErrNotFound)
}

func (s *RedisStoreSuite) TestHealth() {
	s.Require().NoError(s.store.Health(context.Background()))
}
