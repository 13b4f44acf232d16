package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Amund211/serverstats/internal/logging"
)

// GetOrCreate returns the cached value for key, calling create at most once
// across concurrent callers. Failed creations are not cached and release the
// claim so a waiting caller can retry.
func GetOrCreate[T any](ctx context.Context, cache Cache[T], key string, create func() (T, error)) (T, error) {
	logger := logging.FromContext(ctx).With(slog.String("cacheKey", key))

	var empty T
	for {
		result := cache.getOrClaim(key)

		switch {
		case result.claimed:
			logger.DebugContext(ctx, "Cache lookup", slog.String("cache", "miss"))
			return createClaimed(cache, key, create)
		case result.valid:
			logger.DebugContext(ctx, "Cache lookup", slog.String("cache", "hit"))
			return result.data, nil
		}

		logger.DebugContext(ctx, "Waiting for cache")
		if err := cache.wait(ctx); err != nil {
			return empty, fmt.Errorf("gave up waiting for cache entry: %w", err)
		}
	}
}

func createClaimed[T any](cache Cache[T], key string, create func() (T, error)) (data T, err error) {
	stored := false
	defer func() {
		if !stored {
			cache.delete(key)
		}
	}()

	data, err = create()
	if err != nil {
		var empty T
		return empty, fmt.Errorf("failed to create cache entry: %w", err)
	}

	cache.set(key, data)
	stored = true
	return data, nil
}
