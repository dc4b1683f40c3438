package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache.
type memoryClient struct {
	prefix string
	c      *gocache.Cache
}

// NewMemory crea un cliente en memoria. defaultTTL 0 significa sin expiración.
func NewMemory(prefix string, defaultTTL time.Duration) Client {
	exp := gocache.NoExpiration
	if defaultTTL > 0 {
		exp = defaultTTL
	}
	return &memoryClient{prefix: prefix, c: gocache.New(exp, time.Minute)}
}

func (m *memoryClient) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.c.Get(prefixed(m.prefix, key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *memoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(prefixed(m.prefix, key), value, ttl)
	return nil
}

func (m *memoryClient) Delete(ctx context.Context, key string) error {
	m.c.Delete(prefixed(m.prefix, key))
	return nil
}

func (m *memoryClient) Ping(ctx context.Context) error { return nil }

func (m *memoryClient) Close() error {
	m.c.Flush()
	return nil
}
