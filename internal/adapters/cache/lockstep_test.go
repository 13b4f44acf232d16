package cache

import (
	"context"
	"sync"
)

type lockstepEntry[T any] struct {
	data  T
	valid bool
}

// lockstepCache is a Cache shared by a fixed number of clients that advances
// its tick once every client has called wait. It lets tests assert in which
// tick an operation completed.
type lockstepCache[T any] struct {
	mu      sync.Mutex
	advance *sync.Cond

	entries  map[string]lockstepEntry[T]
	tick     int
	maxTicks int
	clients  int
	waiting  int
}

type lockstepClient[T any] struct {
	cache *lockstepCache[T]
}

func newLockstepCache[T any](clients int, maxTicks int) []*lockstepClient[T] {
	c := &lockstepCache[T]{
		entries:  make(map[string]lockstepEntry[T]),
		maxTicks: maxTicks,
		clients:  clients,
	}
	c.advance = sync.NewCond(&c.mu)

	result := make([]*lockstepClient[T], clients)
	for i := range result {
		result[i] = &lockstepClient[T]{cache: c}
	}
	return result
}

// runLockstep runs one goroutine per client and returns once all of them are done
func runLockstep[T any](clients []*lockstepClient[T], bodies ...func(client *lockstepClient[T])) {
	if len(bodies) != len(clients) {
		panic("runLockstep needs one body per client")
	}

	var wg sync.WaitGroup
	for i, body := range bodies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body(clients[i])
			clients[i].waitUntilDone()
		}()
	}
	wg.Wait()
}

func (c *lockstepClient[T]) currentTick() int {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()
	return c.cache.tick
}

func (c *lockstepClient[T]) done() bool {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()
	return c.cache.tick >= c.cache.maxTicks
}

func (c *lockstepClient[T]) getOrClaim(key string) hitResult[T] {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()

	if existing, ok := c.cache.entries[key]; ok {
		return hitResult[T]{data: existing.data, valid: existing.valid}
	}

	c.cache.entries[key] = lockstepEntry[T]{}
	return hitResult[T]{claimed: true}
}

func (c *lockstepClient[T]) set(key string, data T) {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()

	c.cache.entries[key] = lockstepEntry[T]{data: data, valid: true}
}

func (c *lockstepClient[T]) delete(key string) {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()

	delete(c.cache.entries, key)
}

func (c *lockstepClient[T]) wait(ctx context.Context) error {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()

	if c.cache.tick >= c.cache.maxTicks {
		panic("wait() called after the last tick")
	}

	target := c.cache.tick + 1
	c.cache.waiting++
	if c.cache.waiting == c.cache.clients {
		c.cache.waiting = 0
		c.cache.tick++
		c.cache.advance.Broadcast()
	}

	for c.cache.tick < target {
		c.cache.advance.Wait()
	}
	return nil
}

func (c *lockstepClient[T]) waitUntilDone() {
	for !c.done() {
		_ = c.wait(context.Background())
	}
}
