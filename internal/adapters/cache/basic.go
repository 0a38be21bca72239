package cache

import "sync"

// Map backed cache without expiry
type basicCache[T any] struct {
	entries map[string]hitResult[T]
	lock    sync.Mutex
}

func (c *basicCache[T]) getOrClaim(key string) hitResult[T] {
	c.lock.Lock()
	defer c.lock.Unlock()

	if entry, ok := c.entries[key]; ok {
		return hitResult[T]{
			data:    entry.data,
			valid:   entry.valid,
			claimed: false,
		}
	}

	c.entries[key] = hitResult[T]{valid: false}
	return hitResult[T]{
		valid:   false,
		claimed: true,
	}
}

func (c *basicCache[T]) set(key string, data T) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.entries[key] = hitResult[T]{data: data, valid: true}
}

func (c *basicCache[T]) delete(key string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	delete(c.entries, key)
}

func (c *basicCache[T]) wait() {
}

func NewBasicCache[T any]() *basicCache[T] {
	return &basicCache[T]{
		entries: make(map[string]hitResult[T]),
	}
}
