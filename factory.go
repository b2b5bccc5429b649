package smartcache

import (
	"context"
	"fmt"
)

// NewStore returns a concrete store for the requested driver.
// Construction failures are not returned here: the store surfaces them on
// every call. Use OpenStore to receive them directly.
//
// Example: select driver explicitly
//
//	ctx := context.Background()
//	store := smartcache.NewStore(ctx, smartcache.StoreConfig{
//		Driver: smartcache.DriverMemory,
//	})
//	fmt.Println(store.Driver()) // memory
func NewStore(ctx context.Context, cfg StoreConfig) Store {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return &errorStore{driver: cfg.withDefaults().Driver, err: err}
	}
	return store
}

// OpenStore builds the store for cfg.Driver, wrapped in the compression and
// encryption layers the config asks for.
func OpenStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	cfg = cfg.withDefaults()
	var (
		store Store
		err   error
	)
	switch cfg.Driver {
	case DriverMemory:
		store = newMemoryStore(cfg.DefaultTTL, cfg.MemoryCleanupInterval)
	case DriverNull:
		store = newNullStore()
	case DriverRedis:
		client := cfg.RedisClient
		if client == nil {
			client, err = newRedisClient(cfg.RedisAddr)
		}
		if err == nil {
			store = newRedisStore(client, cfg.DefaultTTL, cfg.Prefix)
		}
	case DriverMemcached:
		store = newMemcachedStore(cfg.MemcachedAddresses, cfg.DefaultTTL, cfg.Prefix)
	case DriverFile:
		store, err = newFileStore(cfg.FileDir, cfg.DefaultTTL)
	case DriverSQLite, DriverPostgres, DriverMySQL:
		store, err = newSQLStore(ctx, cfg)
	case DriverNATS:
		store, err = newNATSStore(ctx, cfg)
	case DriverDynamo:
		store, err = newDynamoStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: no store for driver %q", ErrStoreNotFound, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	store = newShapingStore(store, cfg.Compression, cfg.MaxValueBytes)
	return newEncryptingStore(store, cfg.EncryptionKey)
}

// NewStoreWith builds a store using a driver and a set of functional options.
//
// Example: redis store (options)
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	store := smartcache.NewStoreWith(ctx, smartcache.DriverRedis,
//		smartcache.WithRedisClient(redisClient),
//		smartcache.WithPrefix("app"),
//	)
//	fmt.Println(store.Driver()) // redis
func NewStoreWith(ctx context.Context, driver Driver, opts ...StoreOption) Store {
	cfg := StoreConfig{Driver: driver}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return NewStore(ctx, cfg)
}

// NewMemoryStore is a convenience for an in-process store with optional overrides.
func NewMemoryStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverMemory, opts...)
}

// NewNullStore returns a store that never retains anything.
func NewNullStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverNull, opts...)
}

// NewRedisStore is a convenience for a redis-backed store.
func NewRedisStore(ctx context.Context, client RedisClient, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverRedis, append([]StoreOption{WithRedisClient(client)}, opts...)...)
}

// NewFileStore is a convenience for a filesystem-backed store.
func NewFileStore(ctx context.Context, dir string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverFile, append([]StoreOption{WithFileDir(dir)}, opts...)...)
}

// NewMemcachedStore is a convenience for a memcached-backed store.
func NewMemcachedStore(ctx context.Context, addrs []string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverMemcached, append([]StoreOption{WithMemcachedAddresses(addrs...)}, opts...)...)
}
