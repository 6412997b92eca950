package cache

import (
	"time"

	"golang.org/x/sync/singleflight"

	"csv_stream_backend/pkg/logging"
	"csv_stream_backend/platform/redis"
)

// l1Share is the fraction of the L2 expiry an entry lives in L1 when both
// tiers are present.
const l1Share = 0.3

type Service struct {
	l1 *L1CacheService
	l2 *redis.Service
	sf singleflight.Group
}

// NewCacheService builds a two tier cache. l2 may be nil, in which case L1
// holds entries for their full expiry.
func NewCacheService(l1 *L1CacheService, l2 *redis.Service) *Service {
	return &Service{l1: l1, l2: l2}
}

func (cs *Service) GetCache(key string) (interface{}, bool) {
	if data, ok := cs.l1.Get(key); ok {
		return data, ok
	}
	if cs.l2 == nil {
		return nil, false
	}
	if data, ok := cs.l2.GetCache(key); ok {
		return data, ok
	}
	return nil, false
}

func (cs *Service) SetCache(key string, value interface{}, expiration time.Duration) error {
	if cs.l2 == nil {
		cs.l1.Set(key, value, expiration)
		return nil
	}
	if err := cs.l2.SetCache(key, value, expiration); err != nil {
		logging.Logger.Error("l2 fail SetCache", "key", key, "error", err)
		return err
	}
	cs.l1.Set(key, value, time.Duration(float64(expiration)*l1Share))
	return nil
}

func (cs *Service) DelCache(key string) error {
	cs.l1.Del(key)
	if cs.l2 == nil {
		return nil
	}
	if err := cs.l2.DelCache(key); err != nil {
		logging.Logger.Error("l2 fail DelCache", "key", key, "error", err)
		return err
	}
	return nil
}

// Load collapses concurrent misses for the same key into one call of fn.
func (cs *Service) Load(key string, fn func() (interface{}, error)) (interface{}, error) {
	v, err, _ := cs.sf.Do(key, fn)
	return v, err
}
