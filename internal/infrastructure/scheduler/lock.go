package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lock key only if it still holds our token, so a
// lock that expired and was re-acquired by another instance is never released
// by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisJobLock is a distributed advisory lock for scheduled jobs. With
// several instances running the same schedule, only the one holding the lock
// executes the job; the rest skip that run.
type RedisJobLock struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewRedisJobLock creates a job lock with the given TTL
func NewRedisJobLock(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisJobLock {
	return &RedisJobLock{
		client:    client,
		keyPrefix: "scheduler:lock:",
		ttl:       ttl,
		logger:    logger.Named("job-lock"),
	}
}

// Acquire attempts to take the lock for a job. Returns a release function and
// true on success, or false if another instance holds the lock. Errors talking
// to Redis are treated as "not acquired" so a broken Redis never double-runs
// a job from this instance's perspective.
func (l *RedisJobLock) Acquire(ctx context.Context, jobName string) (func(), bool) {
	key := l.keyPrefix + jobName
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		l.logger.Warn("failed to acquire job lock",
			zap.String("job", jobName),
			zap.Error(err),
		)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release job lock",
				zap.String("job", jobName),
				zap.Error(err),
			)
		}
	}
	return release, true
}

// Extend refreshes the lock TTL while a long job is still running
func (l *RedisJobLock) Extend(ctx context.Context, jobName string) error {
	key := l.keyPrefix + jobName
	if err := l.client.Expire(ctx, key, l.ttl).Err(); err != nil {
		return fmt.Errorf("failed to extend job lock: %w", err)
	}
	return nil
}
