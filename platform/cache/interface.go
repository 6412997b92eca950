package cache

import "time"

// CacheService is the key/value contract shared by the L1 and L2 tiers.
type CacheService interface {
	GetCache(key string) (interface{}, bool)
	SetCache(key string, value interface{}, expiration time.Duration) error
	DelCache(key string) error
}
