package config

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedis returns nil when no address is configured or the server does not
// answer a ping; callers then run without distributed locking.
func NewRedis(c Redis) *redis.Client {
	if c.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       0,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
