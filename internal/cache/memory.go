package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore keeps entries in a bounded, expiring LRU inside the process.
type MemoryStore struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryStore creates an in-process store.
// maxEntries <= 0 means unbounded; ttl <= 0 means entries never expire.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if maxEntries < 0 {
		maxEntries = 0
	}
	if ttl < 0 {
		ttl = 0
	}
	return &MemoryStore{
		lru: expirable.NewLRU[string, []byte](maxEntries, nil, ttl),
	}
}

func (c *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return value, true, nil
}

func (c *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	// Copy to decouple from caller's buffer
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	c.lru.Add(key, valueCopy)
	return nil
}

func (c *MemoryStore) Clear(context.Context) error {
	c.lru.Purge()
	return nil
}

func (c *MemoryStore) Len(context.Context) (int, error) {
	return c.lru.Len(), nil
}

func (c *MemoryStore) Location() string {
	return "memory"
}

func (c *MemoryStore) Close() error {
	c.lru.Purge()
	return nil
}
