package smartcache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type refreshKey struct{}

// WithRefresh marks ctx so the next memoized call recomputes and overwrites
// its entry instead of reading it.
func WithRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, refreshKey{}, true)
}

func isRefresh(ctx context.Context) bool {
	v, _ := ctx.Value(refreshKey{}).(bool)
	return v
}

// Memo memoizes a function taking positional arguments. Typed wrappers
// (Wrap0 through Wrap4) sit on top of it.
type Memo[R any] struct {
	fn    func(ctx context.Context, args []any) (R, error)
	name  string
	spec  *KeySpec
	cfg   memoConfig
	codec ValueCodec[R]
}

// Info describes the stored entry for a set of arguments.
type Info[R any] struct {
	Value R
	// Err is a *CachedError when the entry records a failed call.
	Err      error
	StoredAt time.Time
	Outdated bool
	// Timeout is the freshness window that applies to the entry.
	Timeout time.Duration
	Age     time.Duration
}

// WrapArgs memoizes fn, which receives its arguments as a slice. Parameter
// names come from WithParams; the call arity must match them.
//
// Example:
//
//	sum, _ := smartcache.WrapArgs(func(ctx context.Context, args []any) (int, error) {
//		return args[0].(int) + args[1].(int), nil
//	}, smartcache.WithName("sum"), smartcache.WithParams("a", "b"))
//	v, _ := sum.Call(ctx, 1, 2)
//	fmt.Println(v) // 3
func WrapArgs[R any](fn func(ctx context.Context, args []any) (R, error), opts ...Option) (*Memo[R], error) {
	cfg := newMemoConfig(opts)
	return newMemo(fn, fn, len(cfg.params), cfg)
}

func newMemo[R any](named any, fn func(ctx context.Context, args []any) (R, error), arity int, cfg memoConfig) (*Memo[R], error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: memoized function is nil", ErrImproperlyConfigured)
	}
	if err := validateLayer(cfg.explicit); err != nil {
		return nil, err
	}
	if cfg.retention.set && cfg.retention.value < 0 {
		return nil, fmt.Errorf("%w: retention can not be negative", ErrImproperlyConfigured)
	}

	name := cfg.name
	if name == "" {
		name = QualifiedName(named)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: memoized function has no name", ErrImproperlyConfigured)
	}

	params := cfg.params
	if params == nil {
		params = defaultParams(arity)
	}
	if len(params) != arity {
		return nil, fmt.Errorf("%w: %s takes %d arguments but %d parameter names were given", ErrImproperlyConfigured, name, arity, len(params))
	}
	spec, err := NewKeySpec(params, cfg.keys, cfg.include, cfg.exclude)
	if err != nil {
		return nil, err
	}

	return &Memo[R]{
		fn:    fn,
		name:  CollapseName(name),
		spec:  spec.WithDeriver(cfg.deriver),
		cfg:   cfg,
		codec: JSONCodec[R](),
	}, nil
}

// WithCodec replaces the JSON codec used to store results. Set it before
// the first call. A codec missing Encode or Decode is rejected with
// ErrImproperlyConfigured and the current codec is kept.
func (m *Memo[R]) WithCodec(codec ValueCodec[R]) error {
	if err := codec.validate(); err != nil {
		return err
	}
	m.codec = codec
	return nil
}

// Name returns the function name used as the key prefix.
func (m *Memo[R]) Name() string { return m.name }

// Keys returns the effective key paths.
func (m *Memo[R]) Keys() []string { return m.spec.Keys() }

// KeysIncluded returns the include list as configured.
func (m *Memo[R]) KeysIncluded() []string { return m.spec.Included() }

// KeysExcluded returns the exclude list as configured.
func (m *Memo[R]) KeysExcluded() []string { return m.spec.Excluded() }

// Key returns the cache key args map to.
func (m *Memo[R]) Key(args ...any) (string, error) {
	return m.spec.Build(m.name, args)
}

// Call returns the memoized result for args, running the function on a
// miss, on an outdated entry, or when ctx carries WithRefresh.
func (m *Memo[R]) Call(ctx context.Context, args ...any) (R, error) {
	var zero R
	start := time.Now()
	settings, err := m.settings()
	if err != nil {
		return zero, err
	}
	if !settings.Enabled {
		value, err := m.fn(ctx, args)
		m.emit(ctx, Event{Kind: EventBypass, Err: err}, start)
		return value, err
	}

	key, err := m.Key(args...)
	if err != nil {
		return zero, err
	}
	store, err := m.store(ctx, settings)
	if err != nil {
		return zero, err
	}
	ev := Event{Key: key, Driver: store.Driver()}

	if isRefresh(ctx) {
		ev.Kind = EventRefresh
		m.trace(ctx, settings, "smartcache refresh", key)
		value, err := m.recompute(ctx, store, settings, key, args)
		ev.Err = err
		m.emit(ctx, ev, start)
		return value, err
	}

	e, found, err := m.load(ctx, store, settings, key)
	if err != nil {
		ev.Kind, ev.Err = EventMiss, err
		m.emit(ctx, ev, start)
		return zero, err
	}
	if !found {
		ev.Kind = EventMiss
		m.trace(ctx, settings, "smartcache miss", key)
		value, err := m.recompute(ctx, store, settings, key, args)
		ev.Err = err
		m.emit(ctx, ev, start)
		return value, err
	}

	ev.Age = m.cfg.now().Sub(e.storedAt())
	if ev.Age >= m.window(e, settings) {
		ev.Kind = EventOutdated
		m.trace(ctx, settings, "smartcache outdated", key, "age", ev.Age)
		value, err := m.recompute(ctx, store, settings, key, args)
		ev.Err = err
		m.emit(ctx, ev, start)
		return value, err
	}

	ev.Kind = EventHit
	value, err := m.replay(e)
	var cached *CachedError
	if err != nil && !errors.As(err, &cached) {
		ev.Kind, ev.Age = EventMiss, 0
		m.trace(ctx, settings, "smartcache unreadable value", key, "err", err)
		value, err = m.recompute(ctx, store, settings, key, args)
	} else {
		m.trace(ctx, settings, "smartcache hit", key, "age", ev.Age)
	}
	ev.Err = err
	m.emit(ctx, ev, start)
	return value, err
}

// RefreshFor recomputes the entry for args and returns the fresh result.
func (m *Memo[R]) RefreshFor(ctx context.Context, args ...any) (R, error) {
	return m.Call(WithRefresh(ctx), args...)
}

// InvalidateFor deletes the entry for args. Deleting a missing entry is not
// an error.
func (m *Memo[R]) InvalidateFor(ctx context.Context, args ...any) error {
	start := time.Now()
	settings, err := m.settings()
	if err != nil {
		return err
	}
	key, err := m.Key(args...)
	if err != nil {
		return err
	}
	store, err := m.store(ctx, settings)
	if err != nil {
		return err
	}
	m.trace(ctx, settings, "smartcache invalidate", key)
	err = store.Delete(ctx, key)
	m.emit(ctx, Event{Kind: EventInvalidate, Key: key, Driver: store.Driver(), Err: err}, start)
	return err
}

// InfoFor inspects the entry for args without running the function.
// It returns nil when nothing is stored.
func (m *Memo[R]) InfoFor(ctx context.Context, args ...any) (*Info[R], error) {
	settings, err := m.settings()
	if err != nil {
		return nil, err
	}
	key, err := m.Key(args...)
	if err != nil {
		return nil, err
	}
	store, err := m.store(ctx, settings)
	if err != nil {
		return nil, err
	}
	e, found, err := m.load(ctx, store, settings, key)
	if err != nil || !found {
		return nil, err
	}

	window := m.window(e, settings)
	age := m.cfg.now().Sub(e.storedAt())
	info := &Info[R]{
		StoredAt: e.storedAt(),
		Outdated: age >= window,
		Timeout:  window,
		Age:      age,
	}
	if e.Err != nil {
		info.Err = &CachedError{Descriptor: *e.Err, StoredAt: info.StoredAt}
		return info, nil
	}
	if info.Value, err = m.codec.Decode(e.Value); err != nil {
		return nil, fmt.Errorf("decode cached value for %s: %w", key, err)
	}
	return info, nil
}

func (m *Memo[R]) settings() (resolvedSettings, error) {
	return resolveSettings(m.cfg.explicit, m.cfg.global, m.cfg.env)
}

func (m *Memo[R]) store(ctx context.Context, settings resolvedSettings) (Store, error) {
	if m.cfg.store != nil {
		return m.cfg.store, nil
	}
	return m.cfg.registry.Open(ctx, settings.Backend, settings.Hosts...)
}

// load reads and decodes the entry under key. Bodies that do not decode are
// reported as absent so the next call overwrites them.
func (m *Memo[R]) load(ctx context.Context, store Store, settings resolvedSettings, key string) (entry, bool, error) {
	body, ok, err := store.Get(ctx, key)
	if err != nil {
		return entry{}, false, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return entry{}, false, nil
	}
	e, err := decodeEntry(body)
	if err != nil {
		m.trace(ctx, settings, "smartcache unreadable entry", key, "err", err)
		return entry{}, false, nil
	}
	return e, true, nil
}

// window is the freshness window of e.
func (m *Memo[R]) window(e entry, settings resolvedSettings) time.Duration {
	if e.Err != nil {
		return settings.CacheErrorsTTL
	}
	return settings.Timeout
}

func (m *Memo[R]) retention(settings resolvedSettings) time.Duration {
	if m.cfg.retention.set {
		return m.cfg.retention.value
	}
	return settings.Timeout
}

func (m *Memo[R]) recompute(ctx context.Context, store Store, settings resolvedSettings, key string, args []any) (R, error) {
	var zero R
	value, callErr := m.fn(ctx, args)
	now := m.cfg.now()
	if callErr != nil {
		if !settings.CacheErrors {
			return zero, callErr
		}
		e := entry{Err: describeError(callErr), StoredAt: now.UnixNano()}
		if err := m.save(ctx, store, key, e, settings.CacheErrorsTTL+m.retention(settings)); err != nil {
			return zero, errors.Join(callErr, err)
		}
		return zero, callErr
	}

	body, err := m.codec.Encode(value)
	if err != nil {
		return zero, fmt.Errorf("encode result for %s: %w", key, err)
	}
	e := entry{Value: body, StoredAt: now.UnixNano()}
	if err := m.save(ctx, store, key, e, settings.Timeout+m.retention(settings)); err != nil {
		return zero, err
	}
	return value, nil
}

func (m *Memo[R]) save(ctx context.Context, store Store, key string, e entry, ttl time.Duration) error {
	body, err := encodeEntry(e)
	if err != nil {
		return err
	}
	if err := store.Set(ctx, key, body, ttl); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (m *Memo[R]) replay(e entry) (R, error) {
	var zero R
	if e.Err != nil {
		return zero, &CachedError{Descriptor: *e.Err, StoredAt: e.storedAt()}
	}
	value, err := m.codec.Decode(e.Value)
	if err != nil {
		return zero, fmt.Errorf("decode cached value for %s: %w", m.name, err)
	}
	return value, nil
}

func (m *Memo[R]) trace(ctx context.Context, settings resolvedSettings, msg, key string, attrs ...any) {
	if !settings.Verbose {
		return
	}
	m.cfg.logger.InfoContext(ctx, msg, append([]any{"func", m.name, "key", key}, attrs...)...)
}

func (m *Memo[R]) emit(ctx context.Context, ev Event, start time.Time) {
	if m.cfg.observer == nil {
		return
	}
	ev.Func = m.name
	ev.Duration = time.Since(start)
	m.cfg.observer.OnCacheEvent(ctx, ev)
}
