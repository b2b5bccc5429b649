package smartcache

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the package,
// e.g. SMARTCACHE_TIMEOUT.
const EnvPrefix = "SMARTCACHE"

const (
	envTimeout        = "timeout"
	envBackend        = "backend"
	envHost           = "host"
	envVerbose        = "verbose"
	envEnabled        = "enabled"
	envCacheErrors    = "cache_exception"
	envCacheErrorsTTL = "cache_exception_ttl"

	defaultBackend = DriverMemory
)

type optional[T any] struct {
	value T
	set   bool
}

func some[T any](v T) optional[T] { return optional[T]{value: v, set: true} }

// or returns the first set value.
func (o optional[T]) or(next optional[T]) optional[T] {
	if o.set {
		return o
	}
	return next
}

// settingsLayer is one precedence level of configuration. Unset fields
// defer to the next level.
type settingsLayer struct {
	timeout        optional[time.Duration]
	backend        optional[string]
	hosts          optional[[]string]
	verbose        optional[bool]
	enabled        optional[bool]
	cacheErrors    optional[bool]
	cacheErrorsTTL optional[time.Duration]
}

func (l settingsLayer) over(next settingsLayer) settingsLayer {
	return settingsLayer{
		timeout:        l.timeout.or(next.timeout),
		backend:        l.backend.or(next.backend),
		hosts:          l.hosts.or(next.hosts),
		verbose:        l.verbose.or(next.verbose),
		enabled:        l.enabled.or(next.enabled),
		cacheErrors:    l.cacheErrors.or(next.cacheErrors),
		cacheErrorsTTL: l.cacheErrorsTTL.or(next.cacheErrorsTTL),
	}
}

// Settings holds process-wide defaults. They sit between per-function
// options and environment variables in precedence. Safe for concurrent use.
type Settings struct {
	mu    sync.RWMutex
	layer settingsLayer
}

var globalSettings = &Settings{}

// Global returns the process-wide settings.
//
// Example:
//
//	smartcache.Global().SetBackend("redis")
//	smartcache.Global().SetHosts("redis://10.0.0.5:6379/0")
func Global() *Settings { return globalSettings }

func (s *Settings) update(fn func(*settingsLayer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.layer)
}

func (s *Settings) snapshot() settingsLayer {
	if s == nil {
		return settingsLayer{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layer
}

// SetTimeout sets the default freshness window.
func (s *Settings) SetTimeout(d time.Duration) {
	s.update(func(l *settingsLayer) { l.timeout = some(d) })
}

// SetBackend sets the default backend name.
func (s *Settings) SetBackend(name string) {
	s.update(func(l *settingsLayer) { l.backend = some(name) })
}

// SetHosts sets the default backend hosts.
func (s *Settings) SetHosts(hosts ...string) {
	h := append([]string{}, hosts...)
	s.update(func(l *settingsLayer) { l.hosts = some(h) })
}

// SetVerbose toggles slog tracing of cache decisions.
func (s *Settings) SetVerbose(v bool) {
	s.update(func(l *settingsLayer) { l.verbose = some(v) })
}

// SetEnabled turns caching on or off. Disabled memos call through.
func (s *Settings) SetEnabled(v bool) {
	s.update(func(l *settingsLayer) { l.enabled = some(v) })
}

// SetCacheErrors toggles caching of failed calls.
func (s *Settings) SetCacheErrors(v bool) {
	s.update(func(l *settingsLayer) { l.cacheErrors = some(v) })
}

// SetCacheErrorsTTL sets the freshness window of cached failures.
func (s *Settings) SetCacheErrorsTTL(d time.Duration) {
	s.update(func(l *settingsLayer) { l.cacheErrorsTTL = some(d) })
}

// Reset clears every value so lookups fall through to the environment.
func (s *Settings) Reset() {
	s.update(func(l *settingsLayer) { *l = settingsLayer{} })
}

// resolvedSettings is the effective configuration of a single call.
type resolvedSettings struct {
	Timeout        time.Duration
	Backend        string
	Hosts          []string
	Verbose        bool
	Enabled        bool
	CacheErrors    bool
	CacheErrorsTTL time.Duration
}

// newEnv returns a viper instance reading SMARTCACHE_* variables on each lookup.
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

var processEnv = newEnv()

// resolveSettings applies explicit > global > environment > default.
func resolveSettings(explicit settingsLayer, global *Settings, env *viper.Viper) (resolvedSettings, error) {
	fromEnv, err := envLayer(env)
	if err != nil {
		return resolvedSettings{}, err
	}
	l := explicit.over(global.snapshot()).over(fromEnv)

	out := resolvedSettings{
		Timeout: defaultCacheTTL,
		Backend: string(defaultBackend),
		Enabled: true,
	}
	if l.timeout.set {
		if l.timeout.value <= 0 {
			return resolvedSettings{}, fmt.Errorf("%w: timeout must be positive", ErrImproperlyConfigured)
		}
		out.Timeout = l.timeout.value
	}
	if l.backend.set {
		if strings.TrimSpace(l.backend.value) == "" {
			return resolvedSettings{}, fmt.Errorf("%w: backend can not be empty", ErrImproperlyConfigured)
		}
		out.Backend = l.backend.value
	}
	if l.hosts.set {
		hosts, err := normalizeHosts(l.hosts.value)
		if err != nil {
			return resolvedSettings{}, err
		}
		out.Hosts = hosts
	}
	if l.verbose.set {
		out.Verbose = l.verbose.value
	}
	if l.enabled.set {
		out.Enabled = l.enabled.value
	}
	if l.cacheErrors.set {
		out.CacheErrors = l.cacheErrors.value
	}
	out.CacheErrorsTTL = out.Timeout
	if l.cacheErrorsTTL.set {
		if l.cacheErrorsTTL.value <= 0 {
			return resolvedSettings{}, fmt.Errorf("%w: cache exception ttl must be positive", ErrImproperlyConfigured)
		}
		out.CacheErrorsTTL = l.cacheErrorsTTL.value
	}
	return out, nil
}

// validateLayer rejects explicit values that can never resolve.
func validateLayer(l settingsLayer) error {
	if l.timeout.set && l.timeout.value <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrImproperlyConfigured)
	}
	if l.cacheErrorsTTL.set && l.cacheErrorsTTL.value <= 0 {
		return fmt.Errorf("%w: cache exception ttl must be positive", ErrImproperlyConfigured)
	}
	if l.backend.set && strings.TrimSpace(l.backend.value) == "" {
		return fmt.Errorf("%w: backend can not be empty", ErrImproperlyConfigured)
	}
	if l.hosts.set {
		if _, err := normalizeHosts(l.hosts.value); err != nil {
			return err
		}
	}
	return nil
}

func envLayer(env *viper.Viper) (settingsLayer, error) {
	var l settingsLayer
	if env == nil {
		return l, nil
	}
	if raw := strings.TrimSpace(env.GetString(envTimeout)); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil {
			return l, fmt.Errorf("%w: %s_TIMEOUT env var must be numeric", ErrImproperlyConfigured, EnvPrefix)
		}
		l.timeout = some(time.Duration(secs) * time.Second)
	}
	if raw := strings.TrimSpace(env.GetString(envBackend)); raw != "" {
		l.backend = some(raw)
	}
	if raw := strings.TrimSpace(env.GetString(envHost)); raw != "" {
		l.hosts = some(strings.Split(raw, ","))
	}
	var err error
	if l.verbose, err = envFlag(env, envVerbose); err != nil {
		return l, err
	}
	if l.enabled, err = envFlag(env, envEnabled); err != nil {
		return l, err
	}
	if l.cacheErrors, err = envFlag(env, envCacheErrors); err != nil {
		return l, err
	}
	if raw := strings.TrimSpace(env.GetString(envCacheErrorsTTL)); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil {
			return l, fmt.Errorf("%w: %s_CACHE_EXCEPTION_TTL env var must be numeric", ErrImproperlyConfigured, EnvPrefix)
		}
		l.cacheErrorsTTL = some(time.Duration(secs) * time.Second)
	}
	return l, nil
}

func envFlag(env *viper.Viper, key string) (optional[bool], error) {
	raw := strings.TrimSpace(env.GetString(key))
	switch raw {
	case "":
		return optional[bool]{}, nil
	case "0":
		return some(false), nil
	case "1":
		return some(true), nil
	}
	return optional[bool]{}, fmt.Errorf("%w: %s_%s env var must be 0 or 1", ErrImproperlyConfigured, EnvPrefix, strings.ToUpper(key))
}

func normalizeHosts(hosts []string) ([]string, error) {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: host can not be empty", ErrImproperlyConfigured)
	}
	return out, nil
}
