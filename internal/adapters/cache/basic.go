package cache

import (
	"context"
	"sync"
	"time"
)

type entry[T any] struct {
	data  T
	valid bool
}

type basicCache[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
}

// NewBasicCache never expires entries
func NewBasicCache[T any]() *basicCache[T] {
	return &basicCache[T]{
		entries: make(map[string]entry[T]),
	}
}

func (c *basicCache[T]) getOrClaim(key string) hitResult[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		return hitResult[T]{data: existing.data, valid: existing.valid}
	}

	c.entries[key] = entry[T]{}
	return hitResult[T]{claimed: true}
}

func (c *basicCache[T]) set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[T]{data: data, valid: true}
}

func (c *basicCache[T]) delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

func (c *basicCache[T]) wait(ctx context.Context) error {
	return sleepContext(ctx, 10*time.Millisecond)
}
