package cache

import (
	"context"
	"time"
)

type hitResult[T any] struct {
	data    T
	valid   bool
	claimed bool
}

// Cache is a keyed store where one caller at a time claims a missing entry
// and the rest wait until it is set or released
type Cache[T any] interface {
	getOrClaim(key string) hitResult[T]
	set(key string, data T)
	delete(key string)
	// wait blocks until the cache may have changed. Returns ctx.Err() if ctx ends first.
	wait(ctx context.Context) error
}

// Invalidate drops the entry for key so the next GetOrCreate recreates it
func Invalidate[T any](cache Cache[T], key string) {
	cache.delete(key)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
