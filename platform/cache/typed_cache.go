package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// TypedCache wraps a CacheService for one value type. Values read back from
// Redis arrive as JSON strings and are decoded here.
type TypedCache[T any] struct {
	cache CacheService
}

func NewTypedCache[T any](cache CacheService) *TypedCache[T] {
	return &TypedCache[T]{cache: cache}
}

func (tc *TypedCache[T]) Set(key string, value T, expiration time.Duration) error {
	return tc.cache.SetCache(key, value, expiration)
}

func (tc *TypedCache[T]) Get(key string) (T, bool, error) {
	var zero T

	rawValue, exists := tc.cache.GetCache(key)
	if !exists {
		return zero, false, nil
	}

	if typedValue, ok := rawValue.(T); ok {
		return typedValue, true, nil
	}

	var result T
	switch v := rawValue.(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &result); err != nil {
			return zero, true, fmt.Errorf("failed to unmarshal cache value: %w", err)
		}
		return result, true, nil
	case []byte:
		if err := json.Unmarshal(v, &result); err != nil {
			return zero, true, fmt.Errorf("failed to unmarshal cache value: %w", err)
		}
		return result, true, nil
	default:
		jsonData, err := json.Marshal(rawValue)
		if err != nil {
			return zero, true, fmt.Errorf("failed to marshal intermediate value: %w", err)
		}
		if err := json.Unmarshal(jsonData, &result); err != nil {
			return zero, true, fmt.Errorf("failed to unmarshal cache value: %w", err)
		}
		return result, true, nil
	}
}

func (tc *TypedCache[T]) Delete(key string) error {
	return tc.cache.DelCache(key)
}
