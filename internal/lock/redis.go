package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker shares sweep locks between replicas. Locks expire after ttl
// so a crashed holder cannot block a pair forever.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to reach redis: %w", err)
	}
	return client, nil
}

func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	fullKey := l.prefix + key
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{fullKey}, token).Err(); err != nil {
			zap.L().Warn("Failed to release sweep lock", zap.String("key", fullKey), zap.Error(err))
		}
	}, true, nil
}
