package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DistributedLock serializes work across processes.
type DistributedLock interface {
	// Acquire tries once to take key for ttl. It returns false if another holder has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLock is a SET NX lock. Each instance has its own token, so one instance
// must not be shared by holders that expect mutual exclusion among themselves.
type RedisLock struct {
	client *redis.Client
	token  string
}

func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client, token: uuid.NewString()}
}

func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, "lock:"+key, l.token, ttl).Result()
}

func (l *RedisLock) Release(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, l.client, []string{"lock:" + key}, l.token).Err()
}

// AcquireWait polls Acquire until it succeeds or ctx ends.
func AcquireWait(ctx context.Context, l DistributedLock, key string, ttl, every time.Duration) error {
	for {
		ok, err := l.Acquire(ctx, key, ttl)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(every):
		}
	}
}
