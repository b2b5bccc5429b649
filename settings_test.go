package smartcache

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestResolveSettingsDefaults(t *testing.T) {
	got, err := resolveSettings(settingsLayer{}, &Settings{}, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got.Timeout != time.Hour || got.Backend != "memory" || !got.Enabled || got.Verbose || got.CacheErrors {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	if got.CacheErrorsTTL != got.Timeout {
		t.Fatalf("expected cache errors ttl to follow timeout, got %v", got.CacheErrorsTTL)
	}
	if got.Hosts != nil {
		t.Fatalf("expected no hosts by default, got %v", got.Hosts)
	}
}

func TestResolveSettingsFromEnv(t *testing.T) {
	t.Setenv("SMARTCACHE_TIMEOUT", "30")
	t.Setenv("SMARTCACHE_BACKEND", "redis")
	t.Setenv("SMARTCACHE_HOST", "a:1, b:2")
	t.Setenv("SMARTCACHE_VERBOSE", "1")
	t.Setenv("SMARTCACHE_ENABLED", "0")
	t.Setenv("SMARTCACHE_CACHE_EXCEPTION", "1")
	t.Setenv("SMARTCACHE_CACHE_EXCEPTION_TTL", "5")

	got, err := resolveSettings(settingsLayer{}, &Settings{}, newEnv())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got.Timeout != 30*time.Second || got.Backend != "redis" {
		t.Fatalf("unexpected env settings: %+v", got)
	}
	if strings.Join(got.Hosts, ",") != "a:1,b:2" {
		t.Fatalf("expected trimmed hosts, got %v", got.Hosts)
	}
	if !got.Verbose || got.Enabled || !got.CacheErrors || got.CacheErrorsTTL != 5*time.Second {
		t.Fatalf("unexpected env flags: %+v", got)
	}
}

func TestResolveSettingsPrecedence(t *testing.T) {
	t.Setenv("SMARTCACHE_TIMEOUT", "30")
	t.Setenv("SMARTCACHE_BACKEND", "file")
	env := newEnv()

	global := &Settings{}
	global.SetTimeout(2 * time.Minute)

	got, err := resolveSettings(settingsLayer{}, global, env)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got.Timeout != 2*time.Minute {
		t.Fatalf("expected global to beat env, got %v", got.Timeout)
	}
	if got.Backend != "file" {
		t.Fatalf("expected unset global field to fall through to env, got %q", got.Backend)
	}

	explicit := settingsLayer{timeout: some(5 * time.Second)}
	got, err = resolveSettings(explicit, global, env)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got.Timeout != 5*time.Second {
		t.Fatalf("expected explicit to beat global, got %v", got.Timeout)
	}

	global.Reset()
	got, _ = resolveSettings(settingsLayer{}, global, env)
	if got.Timeout != 30*time.Second {
		t.Fatalf("expected reset global to fall through to env, got %v", got.Timeout)
	}
}

func TestResolveSettingsNilGlobal(t *testing.T) {
	got, err := resolveSettings(settingsLayer{verbose: some(true)}, nil, nil)
	if err != nil || !got.Verbose {
		t.Fatalf("expected explicit layer applied without globals, got %+v err=%v", got, err)
	}
}

func TestResolveSettingsRejectsInvalidEnv(t *testing.T) {
	cases := map[string]string{
		"SMARTCACHE_TIMEOUT":             "soon",
		"SMARTCACHE_CACHE_EXCEPTION_TTL": "1h",
		"SMARTCACHE_ENABLED":             "yes",
		"SMARTCACHE_VERBOSE":             "true",
		"SMARTCACHE_CACHE_EXCEPTION":     "2",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)
			_, err := resolveSettings(settingsLayer{}, &Settings{}, newEnv())
			if !errors.Is(err, ErrImproperlyConfigured) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			if !strings.Contains(err.Error(), name) {
				t.Fatalf("expected error to name %s, got %v", name, err)
			}
		})
	}
}

func TestResolveSettingsRejectsInvalidValues(t *testing.T) {
	global := &Settings{}
	global.SetTimeout(-time.Second)
	if _, err := resolveSettings(settingsLayer{}, global, nil); !errors.Is(err, ErrImproperlyConfigured) {
		t.Fatalf("expected negative timeout rejected, got %v", err)
	}

	global.Reset()
	global.SetHosts(" ", "")
	if _, err := resolveSettings(settingsLayer{}, global, nil); !errors.Is(err, ErrImproperlyConfigured) {
		t.Fatalf("expected empty hosts rejected, got %v", err)
	}

	global.Reset()
	global.SetBackend("  ")
	if _, err := resolveSettings(settingsLayer{}, global, nil); !errors.Is(err, ErrImproperlyConfigured) {
		t.Fatalf("expected empty backend rejected, got %v", err)
	}

	global.Reset()
	global.SetCacheErrorsTTL(0)
	if _, err := resolveSettings(settingsLayer{}, global, nil); !errors.Is(err, ErrImproperlyConfigured) {
		t.Fatalf("expected zero error ttl rejected, got %v", err)
	}
}

func TestValidateLayer(t *testing.T) {
	bad := []settingsLayer{
		{timeout: some(time.Duration(0))},
		{cacheErrorsTTL: some(-time.Second)},
		{backend: some("")},
		{hosts: some([]string{""})},
	}
	for i, l := range bad {
		if err := validateLayer(l); !errors.Is(err, ErrImproperlyConfigured) {
			t.Fatalf("case %d: expected configuration error, got %v", i, err)
		}
	}
	ok := settingsLayer{timeout: some(time.Minute), backend: some("redis"), hosts: some([]string{"h:1"})}
	if err := validateLayer(ok); err != nil {
		t.Fatalf("expected valid layer, got %v", err)
	}
}

func TestSettingsSetters(t *testing.T) {
	s := &Settings{}
	s.SetBackend("memcached")
	s.SetHosts("a", "b")
	s.SetVerbose(true)
	s.SetEnabled(false)
	s.SetCacheErrors(true)
	s.SetCacheErrorsTTL(time.Minute)

	got, err := resolveSettings(settingsLayer{}, s, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got.Backend != "memcached" || strings.Join(got.Hosts, ",") != "a,b" || !got.Verbose || got.Enabled || !got.CacheErrors || got.CacheErrorsTTL != time.Minute {
		t.Fatalf("unexpected settings: %+v", got)
	}
}
