package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type ttlCache[T any] struct {
	items *ttlcache.Cache[string, entry[T]]
}

// NewTTLCache expires entries ttl after they were set. Reads do not extend the ttl.
func NewTTLCache[T any](ttl time.Duration) Cache[T] {
	items := ttlcache.New[string, entry[T]](
		ttlcache.WithTTL[string, entry[T]](ttl),
		ttlcache.WithDisableTouchOnHit[string, entry[T]](),
	)
	go items.Start()

	return &ttlCache[T]{items: items}
}

func (c *ttlCache[T]) getOrClaim(key string) hitResult[T] {
	item, existed := c.items.GetOrSet(key, entry[T]{})
	current := item.Value()

	return hitResult[T]{data: current.data, valid: current.valid, claimed: !existed}
}

func (c *ttlCache[T]) set(key string, data T) {
	c.items.Set(key, entry[T]{data: data, valid: true}, ttlcache.DefaultTTL)
}

func (c *ttlCache[T]) delete(key string) {
	c.items.Delete(key)
}

func (c *ttlCache[T]) wait(ctx context.Context) error {
	return sleepContext(ctx, 50*time.Millisecond)
}
