package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache (expiración y janitor
// incluidos). Backend por defecto para desarrollo y tests.
type memoryClient struct {
	prefix string
	ttl    time.Duration
	inner  *gocache.Cache
}

// NewMemory crea un cliente in-process. defaultTTL 0 usa 5 minutos.
func NewMemory(prefix string, defaultTTL time.Duration) *memoryClient {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &memoryClient{
		prefix: prefix,
		ttl:    defaultTTL,
		inner:  gocache.New(defaultTTL, 10*time.Minute),
	}
}

func (c *memoryClient) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *memoryClient) Get(_ context.Context, key string) (string, error) {
	v, ok := c.inner.Get(c.key(key))
	if !ok {
		return "", ErrNotFound
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrNotFound
	}
	return s, nil
}

func (c *memoryClient) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.inner.Set(c.key(key), value, ttl)
	return nil
}

func (c *memoryClient) Delete(_ context.Context, key string) error {
	c.inner.Delete(c.key(key))
	return nil
}

func (c *memoryClient) Ping(context.Context) error { return nil }

func (c *memoryClient) Close() error {
	c.inner.Flush()
	return nil
}
