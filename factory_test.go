package smartcache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goforj/smartcache/cachecore"
)

func TestNewStoreDefaultsToMemory(t *testing.T) {
	store := NewStore(context.Background(), StoreConfig{})
	if store.Driver() != DriverMemory {
		t.Fatalf("expected memory store, got %q", store.Driver())
	}
	if _, ok := store.(*memoryStore); !ok {
		t.Fatalf("expected bare memory store without shaping, got %T", store)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		store Store
		want  Driver
	}{
		{NewMemoryStore(ctx), DriverMemory},
		{NewNullStore(ctx), DriverNull},
		{NewFileStore(ctx, t.TempDir()), DriverFile},
		{NewRedisStore(ctx, newStubRedisClient()), DriverRedis},
		{NewMemcachedStore(ctx, []string{"127.0.0.1:1"}), DriverMemcached},
	}
	for _, tc := range cases {
		if tc.store.Driver() != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, tc.store.Driver())
		}
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), StoreConfig{Driver: "carrier-pigeon"})
	if !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound, got %v", err)
	}
}

func TestNewStoreSurfacesConstructionErrors(t *testing.T) {
	ctx := context.Background()
	store := NewStoreWith(ctx, DriverMemory, WithEncryptionKey([]byte("short")))
	if store.Driver() != DriverMemory {
		t.Fatalf("expected driver identity to survive, got %q", store.Driver())
	}
	if _, _, err := store.Get(ctx, "k"); !errors.Is(err, ErrEncryptionKey) {
		t.Fatalf("expected key error on get, got %v", err)
	}
	if err := store.Set(ctx, "k", []byte("v"), time.Second); !errors.Is(err, ErrEncryptionKey) {
		t.Fatalf("expected key error on set, got %v", err)
	}
	if err := store.Delete(ctx, "k"); !errors.Is(err, ErrEncryptionKey) {
		t.Fatalf("expected key error on delete, got %v", err)
	}
	if err := store.Flush(ctx); !errors.Is(err, ErrEncryptionKey) {
		t.Fatalf("expected key error on flush, got %v", err)
	}
}

func TestOpenStoreRequiresDSNForServerSQL(t *testing.T) {
	for _, driver := range []Driver{DriverPostgres, DriverMySQL} {
		_, err := OpenStore(context.Background(), StoreConfig{Driver: driver})
		if !errors.Is(err, ErrImproperlyConfigured) {
			t.Fatalf("%s: expected ErrImproperlyConfigured, got %v", driver, err)
		}
	}
}

func TestOpenStoreWrapsShapingThenEncryption(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(ctx, StoreConfig{
		Driver:  DriverFile,
		FileDir: filepath.Join(t.TempDir(), "entries"),
		BaseConfig: cachecore.BaseConfig{
			Compression:   CompressionGzip,
			EncryptionKey: testEncryptionKey,
		},
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	enc, ok := store.(*encryptingStore)
	if !ok {
		t.Fatalf("expected encryption outermost, got %T", store)
	}
	if _, ok := enc.inner.(*shapingStore); !ok {
		t.Fatalf("expected shaping below encryption, got %T", enc.inner)
	}
	if err := store.Set(ctx, "k", []byte("value"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || string(got) != "value" {
		t.Fatalf("unexpected get: ok=%v err=%v val=%q", ok, err, got)
	}
}
