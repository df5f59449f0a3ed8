//go:build integration

package runlock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"solifund/internal/runlock"
	"solifund/pkg/testutil/containers"
)

type RedisLockerSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisLockerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockerSuite))
}

func (s *RedisLockerSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisLockerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLockerSuite) TestAcquireAndRelease() {
	ctx := context.Background()
	locker := runlock.NewRedisLocker(s.redis.Client)
	key := runlock.Key(1, []int64{10, 20})

	acquired, err := locker.AcquireNonBlocking(ctx, key)
	s.Require().NoError(err)
	s.True(acquired)

	s.Require().NoError(locker.Release(ctx, key))

	acquired, err = locker.AcquireNonBlocking(ctx, key)
	s.Require().NoError(err)
	s.True(acquired)
}

func (s *RedisLockerSuite) TestSecondAcquireIsBusy() {
	ctx := context.Background()
	key := runlock.Key(2, nil)

	first := runlock.NewRedisLocker(s.redis.Client)
	second := runlock.NewRedisLocker(s.redis.Client)

	acquired, err := first.AcquireNonBlocking(ctx, key)
	s.Require().NoError(err)
	s.True(acquired)

	acquired, err = second.AcquireNonBlocking(ctx, key)
	s.Require().NoError(err)
	s.False(acquired)
}

func (s *RedisLockerSuite) TestReleaseOnlyOwnLock() {
	ctx := context.Background()
	key := runlock.Key(3, nil)

	owner := runlock.NewRedisLocker(s.redis.Client)
	other := runlock.NewRedisLocker(s.redis.Client)

	acquired, err := owner.AcquireNonBlocking(ctx, key)
	s.Require().NoError(err)
	s.True(acquired)

	// A locker that never acquired the key must not free it.
	s.Require().NoError(other.Release(ctx, key))

	acquired, err = other.AcquireNonBlocking(ctx, key)
	s.Require().NoError(err)
	s.False(acquired)
}

func (s *RedisLockerSuite) TestLockExpires() {
	ctx := context.Background()
	key := runlock.Key(4, nil)

	first := runlock.NewRedisLocker(s.redis.Client, runlock.WithTTL(time.Second))
	acquired, err := first.AcquireNonBlocking(ctx, key)
	s.Require().NoError(err)
	s.True(acquired)

	time.Sleep(1200 * time.Millisecond)

	second := runlock.NewRedisLocker(s.redis.Client)
	acquired, err = second.AcquireNonBlocking(ctx, key)
	s.Require().NoError(err)
	s.True(acquired)
}
