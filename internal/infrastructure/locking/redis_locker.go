package locking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wms-platform/fulfillment-service/pkg/logging"
)

// unlockScript deletes the key only while it still holds our token
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig configures the distributed locker
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Prefix    string
	TTL       time.Duration
	RetryWait time.Duration
}

// DefaultRedisConfig returns defaults for addr
func DefaultRedisConfig(addr string) *RedisConfig {
	return &RedisConfig{
		Addr:      addr,
		Prefix:    "fulfillment:lock:",
		TTL:       10 * time.Second,
		RetryWait: 25 * time.Millisecond,
	}
}

// RedisLocker takes a SET NX PX lock per key. Callers in the same process
// queue on a local mutex first so only one of them polls redis.
type RedisLocker struct {
	client *redis.Client
	local  *KeyedMutex
	config *RedisConfig
	logger *logging.Logger
}

// NewRedisClient creates a client from config
func NewRedisClient(config *RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
}

// NewRedisLocker creates a locker on client
func NewRedisLocker(client *redis.Client, config *RedisConfig, logger *logging.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		local:  NewKeyedMutex(),
		config: config,
		logger: logger,
	}
}

// Lock acquires key until the returned func is called, ctx is done, or the
// TTL runs out
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	redisKey := l.config.Prefix + key
	token := uuid.New().String()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.config.TTL).Result()
		if err != nil {
			unlockLocal()
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.config.RetryWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			unlockLocal()
			return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}

	return func() {
		// release even if the request context is already cancelled
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := unlockScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn("Failed to release lock", "key", key, "error", err)
		}
		unlockLocal()
	}, nil
}

// HealthCheck pings redis
func (l *RedisLocker) HealthCheck(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the client
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
