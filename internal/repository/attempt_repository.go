package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptRepository счётчик вводов пароля к ссылке в фиксированном окне.
// Попытка резервируется до проверки пароля, успешный ввод сбрасывает счётчик.
// Окно начинается с первой попытки.
type AttemptRepository interface {
	Failures(ctx context.Context, locator string) (int, error)
	RegisterAttempt(ctx context.Context, locator string, window time.Duration) (int, error)
	Reset(ctx context.Context, locator string) error
}

type attemptRepository struct {
	redis *RedisDB
}

func NewAttemptRepository(redis *RedisDB) AttemptRepository {
	return &attemptRepository{redis: redis}
}

func (r *attemptRepository) Failures(ctx context.Context, locator string) (int, error) {
	n, err := r.redis.Client.Get(ctx, r.key(locator)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read attempt counter: %w", err)
	}
	return n, nil
}

func (r *attemptRepository) RegisterAttempt(ctx context.Context, locator string, window time.Duration) (int, error) {
	key := r.key(locator)

	var incr *redis.IntCmd
	_, err := r.redis.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		// NX: не продлеваем окно при каждой попытке
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to register attempt: %w", err)
	}

	return int(incr.Val()), nil
}

func (r *attemptRepository) Reset(ctx context.Context, locator string) error {
	return r.redis.Client.Del(ctx, r.key(locator)).Err()
}

func (r *attemptRepository) key(locator string) string {
	return "share:attempts:" + locator
}
