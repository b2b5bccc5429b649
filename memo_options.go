package smartcache

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Option configures a memoized function.
type Option func(*memoConfig)

type memoConfig struct {
	explicit  settingsLayer
	name      string
	params    []string
	keys      []string
	include   []string
	exclude   []string
	retention optional[time.Duration]

	store    Store
	registry *Registry
	global   *Settings
	env      *viper.Viper
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
	deriver  *Deriver
}

func newMemoConfig(opts []Option) memoConfig {
	cfg := memoConfig{
		registry: defaultRegistry,
		global:   globalSettings,
		env:      processEnv,
		logger:   slog.Default(),
		now:      time.Now,
		deriver:  defaultDeriver,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithTimeout sets how long a stored result stays fresh.
func WithTimeout(d time.Duration) Option {
	return func(c *memoConfig) { c.explicit.timeout = some(d) }
}

// WithBackend selects a registered backend by name, e.g. "redis".
func WithBackend(name string) Option {
	return func(c *memoConfig) { c.explicit.backend = some(name) }
}

// WithHosts sets the backend hosts. Their meaning is driver specific:
// addresses, URLs, a directory or a DSN.
func WithHosts(hosts ...string) Option {
	h := append([]string{}, hosts...)
	return func(c *memoConfig) { c.explicit.hosts = some(h) }
}

// WithVerbose logs every cache decision through the configured logger.
func WithVerbose(v bool) Option {
	return func(c *memoConfig) { c.explicit.verbose = some(v) }
}

// WithEnabled toggles caching. Disabled functions run on every call.
func WithEnabled(v bool) Option {
	return func(c *memoConfig) { c.explicit.enabled = some(v) }
}

// WithCacheErrors stores failed calls so they are replayed until outdated.
func WithCacheErrors(v bool) Option {
	return func(c *memoConfig) { c.explicit.cacheErrors = some(v) }
}

// WithCacheErrorsTTL sets the freshness window of stored failures.
func WithCacheErrorsTTL(d time.Duration) Option {
	return func(c *memoConfig) { c.explicit.cacheErrorsTTL = some(d) }
}

// WithRetention sets how long an outdated entry is kept by the backend
// after its freshness window. Defaults to the timeout.
func WithRetention(d time.Duration) Option {
	return func(c *memoConfig) { c.retention = some(d) }
}

// WithName overrides the function name used as the key prefix.
func WithName(name string) Option {
	return func(c *memoConfig) { c.name = name }
}

// WithParams names the wrapped function's parameters in order.
// Without it parameters are named arg0, arg1, ...
func WithParams(names ...string) Option {
	return func(c *memoConfig) { c.params = append([]string(nil), names...) }
}

// WithKeys selects the argument paths that make up the cache key,
// e.g. WithKeys("user.ID", "page").
func WithKeys(paths ...string) Option {
	return func(c *memoConfig) { c.keys = append([]string(nil), paths...) }
}

// WithInclude keys only on the named parameters.
func WithInclude(names ...string) Option {
	return func(c *memoConfig) { c.include = append([]string(nil), names...) }
}

// WithExclude keys on every parameter except the named ones.
func WithExclude(names ...string) Option {
	return func(c *memoConfig) { c.exclude = append([]string(nil), names...) }
}

// WithStore uses store directly instead of resolving a backend by name.
func WithStore(store Store) Option {
	return func(c *memoConfig) { c.store = store }
}

// WithRegistry resolves backends through r instead of the default registry.
func WithRegistry(r *Registry) Option {
	return func(c *memoConfig) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithSettings reads defaults from s instead of Global().
func WithSettings(s *Settings) Option {
	return func(c *memoConfig) { c.global = s }
}

// WithEnv reads SMARTCACHE_* values through v. A nil v ignores the environment.
func WithEnv(v *viper.Viper) Option {
	return func(c *memoConfig) { c.env = v }
}

// WithObserver receives an Event after every call, invalidation and bypass.
func WithObserver(o Observer) Option {
	return func(c *memoConfig) { c.observer = o }
}

// WithLogger sets the logger used for verbose output.
func WithLogger(l *slog.Logger) Option {
	return func(c *memoConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now for freshness decisions.
func WithClock(now func() time.Time) Option {
	return func(c *memoConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithDeriver represents key values with d instead of the process-wide registry.
func WithDeriver(d *Deriver) Option {
	return func(c *memoConfig) {
		if d != nil {
			c.deriver = d
		}
	}
}
