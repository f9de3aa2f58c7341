package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const markerTTL = 24 * time.Hour

// RedisAdapter keeps short-lived once-only markers, set after the guarded
// action has happened. Markers expire after a day; by then the database
// status has long since settled the question.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) MarkOnce(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, markerTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}
