package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/edushare/internal/models"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// CacheRepository кэш строк share_links по локатору
type CacheRepository interface {
	Get(ctx context.Context, locator string) (*models.ShareLink, error)
	Set(ctx context.Context, link *models.ShareLink, ttl time.Duration) error
	Delete(ctx context.Context, locator string) error
}

type cacheRepository struct {
	redis *RedisDB
}

func NewCacheRepository(redis *RedisDB) CacheRepository {
	return &cacheRepository{redis: redis}
}

func (r *cacheRepository) Get(ctx context.Context, locator string) (*models.ShareLink, error) {
	data, err := r.redis.Client.Get(ctx, r.key(locator)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var link models.ShareLink
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("failed to unmarshal share link: %w", err)
	}

	return &link, nil
}

func (r *cacheRepository) Set(ctx context.Context, link *models.ShareLink, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to marshal share link: %w", err)
	}

	return r.redis.Client.Set(ctx, r.key(link.Locator), data, ttl).Err()
}

func (r *cacheRepository) Delete(ctx context.Context, locator string) error {
	return r.redis.Client.Del(ctx, r.key(locator)).Err()
}

func (r *cacheRepository) key(locator string) string {
	return "share:link:" + locator
}
