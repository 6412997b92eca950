package cache

import (
	"time"

	"github.com/patrickmn/go-cache"
)

type L1CacheService struct {
	client *cache.Cache
}

// InitL1Cache creates the in-process tier. defaultTTL applies to entries set
// with cache.DefaultExpiration.
func InitL1Cache(defaultTTL time.Duration) *L1CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &L1CacheService{
		client: cache.New(defaultTTL, 10*time.Minute),
	}
}

func (s *L1CacheService) Get(key string) (interface{}, bool) {
	return s.client.Get(key)
}

func (s *L1CacheService) Set(key string, value interface{}, expiration time.Duration) {
	s.client.Set(key, value, expiration)
}

func (s *L1CacheService) Del(key string) {
	s.client.Delete(key)
}

func (s *L1CacheService) Count() int {
	return s.client.ItemCount()
}
