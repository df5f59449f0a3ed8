package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for run locks.
	lockKeyPrefix = "runlock:"

	// DefaultTTL is the backstop expiry so a killed process never wedges the
	// lock forever. Normal runs finish well inside it.
	DefaultTTL = 2 * time.Hour
)

// releaseScript deletes the lock only when it still carries our token, so a
// lock that expired and was re-acquired by another run is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Redis-backed Locker for deployments where allocation runs
// may start on more than one host.
type RedisLocker struct {
	client *redis.Client
	token  string
	ttl    time.Duration
}

// RedisLockerOption configures a RedisLocker instance.
type RedisLockerOption func(*RedisLocker)

// WithTTL overrides the backstop expiry.
func WithTTL(ttl time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// NewRedisLocker constructs a Redis-backed locker. Each instance holds its
// own token so it can only release locks it acquired.
func NewRedisLocker(client *redis.Client, opts ...RedisLockerOption) *RedisLocker {
	l := &RedisLocker{
		client: client,
		token:  uuid.NewString(),
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// AcquireNonBlocking uses SET NX with a TTL; a held lock returns false
// immediately.
func (l *RedisLocker) AcquireNonBlocking(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKeyPrefix+key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	return ok, nil
}

// Release deletes the lock if this locker still owns it.
func (l *RedisLocker) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, l.client, []string{lockKeyPrefix + key}, l.token).Err(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}
