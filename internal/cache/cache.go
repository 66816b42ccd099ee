// Package cache implements the cart session store: one serialized item array per cart session.
package cache

import (
	"context"
	"errors"
)

// CartCache is a key-value store holding the serialized cart of each cart session.
type CartCache interface {
	Get(ctx context.Context, sessionID string) ([]byte, error)
	Set(ctx context.Context, sessionID string, payload []byte) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrCacheMiss = errors.New("cache miss")

var (
	_ CartCache = (*RedisCache)(nil)
	_ CartCache = (*MemoryCache)(nil)
)
