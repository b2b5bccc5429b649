package smartcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/goforj/smartcache/cachecore"
	"github.com/nats-io/nats.go"
)

// OpenFunc connects a backend. hosts is never empty for drivers that
// declare DefaultHosts or RequiresHost.
type OpenFunc func(ctx context.Context, hosts []string) (Store, error)

// DriverSpec describes how a backend name is turned into a Store.
type DriverSpec struct {
	Open OpenFunc
	// DefaultHosts is used when the caller supplies none.
	DefaultHosts []string
	// RequiresHost rejects opens without an explicit host.
	RequiresHost bool
}

// openKey identifies a live connection: one per driver and host set.
type openKey struct {
	driver Driver
	hosts  string
}

// Registry maps backend names to drivers and keeps one live connection per
// distinct (driver, host set) pair. Connections stay open until Close or
// until their driver is registered again. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	drivers map[Driver]DriverSpec
	open    map[openKey]Store
}

// NewRegistry returns a registry with every built-in driver registered.
// opts apply to each store the registry opens.
//
// Example:
//
//	reg := smartcache.NewRegistry(smartcache.WithPrefix("billing"))
//	store, _ := reg.Open(ctx, "redis", "127.0.0.1:6379")
//	fmt.Println(store.Driver()) // redis
func NewRegistry(opts ...StoreOption) *Registry {
	r := &Registry{
		drivers: make(map[Driver]DriverSpec),
		open:    make(map[openKey]Store),
	}
	for name, spec := range builtinDrivers(opts) {
		r.drivers[name] = spec
	}
	return r
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry used by memoized functions that do
// not carry their own.
func DefaultRegistry() *Registry { return defaultRegistry }

// Open returns the store for name from the default registry.
func Open(ctx context.Context, name string, hosts ...string) (Store, error) {
	return defaultRegistry.Open(ctx, name, hosts...)
}

// Register adds or replaces a driver. Names are case-insensitive. Stores
// opened through a replaced driver are closed.
func (r *Registry) Register(name string, spec DriverSpec) error {
	driver := cachecore.ParseDriver(name)
	if driver == "" {
		return fmt.Errorf("%w: backend name can not be empty", ErrImproperlyConfigured)
	}
	if spec.Open == nil {
		return fmt.Errorf("%w: backend %q has no open function", ErrImproperlyConfigured, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, store := range r.open {
		if key.driver == driver {
			closeStore(store)
			delete(r.open, key)
		}
	}
	r.drivers[driver] = spec
	return nil
}

// Names returns the registered backend names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.drivers))
	for d := range r.drivers {
		names = append(names, string(d))
	}
	sort.Strings(names)
	return names
}

// Open returns the live store for name, connecting on first use. A nil
// hosts list selects the driver defaults; a list with no usable entries is
// rejected.
func (r *Registry) Open(ctx context.Context, name string, hosts ...string) (Store, error) {
	driver := cachecore.ParseDriver(name)
	if driver == "" {
		return nil, fmt.Errorf("%w: backend can not be empty", ErrImproperlyConfigured)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	spec, ok := r.drivers[driver]
	if !ok {
		return nil, fmt.Errorf("%w: invalid backend %q; backend must be one of %s", ErrStoreNotFound, name, quoteList(r.namesLocked()))
	}

	if hosts == nil {
		hosts = spec.DefaultHosts
	} else {
		normalized, err := normalizeHosts(hosts)
		if err != nil {
			return nil, err
		}
		hosts = normalized
	}
	if spec.RequiresHost && len(hosts) == 0 {
		return nil, fmt.Errorf("%w: %s backend requires a host", ErrImproperlyConfigured, driver)
	}

	key := openKey{driver: driver, hosts: strings.Join(hosts, ",")}
	if store, ok := r.open[key]; ok {
		return store, nil
	}

	store, err := spec.Open(ctx, append([]string(nil), hosts...))
	if err != nil {
		return nil, err
	}
	r.open[key] = store
	return store, nil
}

// Close closes every open connection. The registry stays usable.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for key, store := range r.open {
		if closer, ok := store.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s %s: %w", key.driver, key.hosts, err))
			}
		}
		delete(r.open, key)
	}
	return errors.Join(errs...)
}

func closeStore(store Store) {
	if closer, ok := store.(io.Closer); ok {
		_ = closer.Close()
	}
}

func builtinDrivers(opts []StoreOption) map[Driver]DriverSpec {
	open := func(driver Driver, apply func(StoreConfig, []string) StoreConfig) OpenFunc {
		return func(ctx context.Context, hosts []string) (Store, error) {
			cfg := StoreConfig{Driver: driver}
			for _, opt := range opts {
				cfg = opt(cfg)
			}
			if apply != nil {
				cfg = apply(cfg, hosts)
			}
			return OpenStore(ctx, cfg)
		}
	}
	single := func(driver Driver, apply func(StoreConfig, string) StoreConfig) OpenFunc {
		inner := open(driver, func(cfg StoreConfig, hosts []string) StoreConfig {
			if len(hosts) > 0 {
				cfg = apply(cfg, hosts[0])
			}
			return cfg
		})
		return func(ctx context.Context, hosts []string) (Store, error) {
			if len(hosts) > 1 {
				return nil, fmt.Errorf("%w: %s backend accepts a single host", ErrImproperlyConfigured, driver)
			}
			return inner(ctx, hosts)
		}
	}
	sqlDSN := func(cfg StoreConfig, dsn string) StoreConfig {
		cfg.SQLDSN = dsn
		return cfg
	}

	return map[Driver]DriverSpec{
		DriverMemory: {Open: open(DriverMemory, nil)},
		DriverNull:   {Open: open(DriverNull, nil)},
		DriverRedis: {
			DefaultHosts: []string{defaultRedisAddress},
			Open: single(DriverRedis, func(cfg StoreConfig, host string) StoreConfig {
				cfg.RedisAddr = host
				return cfg
			}),
		},
		DriverMemcached: {
			DefaultHosts: []string{defaultMemcachedAddress},
			Open: open(DriverMemcached, func(cfg StoreConfig, hosts []string) StoreConfig {
				cfg.MemcachedAddresses = hosts
				return cfg
			}),
		},
		DriverFile: {
			Open: single(DriverFile, func(cfg StoreConfig, dir string) StoreConfig {
				cfg.FileDir = dir
				return cfg
			}),
		},
		DriverSQLite:   {Open: single(DriverSQLite, sqlDSN)},
		DriverPostgres: {RequiresHost: true, Open: single(DriverPostgres, sqlDSN)},
		DriverMySQL:    {RequiresHost: true, Open: single(DriverMySQL, sqlDSN)},
		DriverNATS: {
			DefaultHosts: []string{nats.DefaultURL},
			Open: open(DriverNATS, func(cfg StoreConfig, hosts []string) StoreConfig {
				if cfg.NATSKeyValue == nil {
					cfg.NATSURL = strings.Join(hosts, ",")
				}
				return cfg
			}),
		},
		DriverDynamo: {
			Open: single(DriverDynamo, func(cfg StoreConfig, endpoint string) StoreConfig {
				cfg.DynamoEndpoint = endpoint
				return cfg
			}),
		},
	}
}
