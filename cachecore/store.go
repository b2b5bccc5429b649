package cachecore

import (
	"context"
	"time"
)

// Store is the backend contract used by memoized functions.
//
// Get reports a miss with ok=false. A present entry whose body happens to
// encode a nil value is still a hit. Set with ttl <= 0 applies the store's
// default retention.
type Store interface {
	Driver() Driver
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Flush(ctx context.Context) error
}
