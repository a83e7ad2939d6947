package store

import (
	"context"
	"time"
)

// Store remembers short-lived keys, such as authorization codes that have
// already been redeemed.
type Store interface {
	// SetNX stores key for ttl and reports whether it was absent before.
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, key string) error
}
