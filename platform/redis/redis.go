package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"csv_stream_backend/config"
	"csv_stream_backend/pkg/logging"
)

const cachePrefix = "cache:"

type Service struct {
	Rdb *redis.Client
	Ctx context.Context
}

func InitRedis(cfg *config.Config) (*Service, error) {
	redisUrl := cfg.RedisURL
	if redisUrl == "" {
		return nil, fmt.Errorf("empty redis url")
	}
	opt, err := redis.ParseURL(redisUrl)
	if err != nil {
		return nil, fmt.Errorf("could not parse Redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)

	testCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rdb.Ping(testCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis: %w", err)
	}
	logging.Logger.Info("connected to redis", "addr", opt.Addr)
	return &Service{
		Rdb: rdb,
		Ctx: context.Background(),
	}, nil
}

// SetCache stores value as JSON under the cache prefix.
func (s *Service) SetCache(key string, value interface{}, expiration time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.Rdb.Set(s.Ctx, cachePrefix+key, jsonData, expiration).Err()
}

// GetCache returns the raw JSON string; callers decode it.
func (s *Service) GetCache(key string) (interface{}, bool) {
	val, err := s.Rdb.Get(s.Ctx, cachePrefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			logging.Logger.Warn("fail redis GetCache", "key", key, "error", err)
		}
		return nil, false
	}
	return val, true
}

func (s *Service) DelCache(key string) error {
	return s.Rdb.Del(s.Ctx, cachePrefix+key).Err()
}

func (s *Service) Close() error {
	return s.Rdb.Close()
}
