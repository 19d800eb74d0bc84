package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chatserver/pkg/logger"
)

const RateLimitKeyPrefix = "ratelimit:%s"

// RateLimitRepository - счетчик запросов в фиксированном окне
type RateLimitRepository interface {
	// Allow учитывает запрос и сообщает, укладывается ли он в лимит
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, err error)
}

type rateLimitRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewRateLimitRepository(redis *redis.Client, log logger.Logger) RateLimitRepository {
	return &rateLimitRepository{redis: redis, log: log}
}

func (r *rateLimitRepository) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	redisKey := fmt.Sprintf(RateLimitKeyPrefix, key)

	var incr *redis.IntCmd
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		// окно начинается с первого запроса
		pipe.ExpireNX(ctx, redisKey, window)
		return nil
	})
	if err != nil {
		r.log.Error("Failed to increment rate limit", "error", err, "key", key)
		return false, 0, err
	}

	count := int(incr.Val())
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= limit, remaining, nil
}
