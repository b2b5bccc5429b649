package smartcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goforj/smartcache/cachecore"
	"github.com/nats-io/nats.go"
)

func newTestNATSStore(t *testing.T, kv NATSKeyValue, ttl time.Duration, prefix string) *natsStore {
	t.Helper()
	store, err := newNATSStore(context.Background(), StoreConfig{
		BaseConfig:   cachecore.BaseConfig{DefaultTTL: ttl, Prefix: prefix},
		NATSKeyValue: kv,
	})
	if err != nil {
		t.Fatalf("new nats store: %v", err)
	}
	return store.(*natsStore)
}

func TestNATSStoreNilKeyValueErrors(t *testing.T) {
	store := &natsStore{defaultTTL: time.Minute, prefix: "pfx", now: time.Now}
	ctx := context.Background()

	if _, _, err := store.Get(ctx, "k"); err == nil {
		t.Fatalf("expected get error when nats key-value is nil")
	}
	if err := store.Set(ctx, "k", []byte("v"), 0); err == nil {
		t.Fatalf("expected set error when nats key-value is nil")
	}
	if err := store.Delete(ctx, "k"); err == nil {
		t.Fatalf("expected delete error when nats key-value is nil")
	}
	if err := store.Flush(ctx); err == nil {
		t.Fatalf("expected flush error when nats key-value is nil")
	}
}

func TestNATSStoreOperationsWithStubKV(t *testing.T) {
	ctx := context.Background()
	kv := newStubNATSKeyValue("bucket")
	store := newTestNATSStore(t, kv, time.Minute, "pfx")

	if err := store.Set(ctx, "alpha", []byte("one"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	body, ok, err := store.Get(ctx, "alpha")
	if err != nil || !ok || string(body) != "one" {
		t.Fatalf("unexpected get result: ok=%v err=%v body=%s", ok, err, string(body))
	}

	if err := store.Delete(ctx, "alpha"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, err := store.Get(ctx, "alpha"); err != nil || ok {
		t.Fatalf("expected alpha deleted")
	}
	if err := store.Delete(ctx, "never-set"); err != nil {
		t.Fatalf("delete missing should not error: %v", err)
	}
}

func TestNATSStoreEncodesKeysIntoTokenCharset(t *testing.T) {
	ctx := context.Background()
	kv := newStubNATSKeyValue("bucket")
	store := newTestNATSStore(t, kv, time.Minute, "pfx")

	key := `example.com/pkg.Fn//"a b"//nil`
	if err := store.Set(ctx, key, []byte("v"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	for stored := range kv.entries {
		if !strings.HasPrefix(stored, "p.") || strings.ContainsAny(stored, ` /"*>`) {
			t.Fatalf("expected nats-safe key, got %q", stored)
		}
	}
	if body, ok, err := store.Get(ctx, key); err != nil || !ok || string(body) != "v" {
		t.Fatalf("expected round-trip through encoded key, ok=%v err=%v", ok, err)
	}
}

func TestNATSStoreExpiryUsesEnvelope(t *testing.T) {
	ctx := context.Background()
	kv := newStubNATSKeyValue("bucket")
	store := newTestNATSStore(t, kv, time.Minute, "pfx")
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	if err := store.Set(ctx, "exp", []byte("v"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	envelope, err := decodeNATSEnvelope(kv.entries[store.cacheKey("exp")].value)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.ExpiresAt != now.Add(time.Minute).UnixMilli() {
		t.Fatalf("expected default ttl in envelope, got %d", envelope.ExpiresAt)
	}

	now = now.Add(59 * time.Second)
	if _, ok, _ := store.Get(ctx, "exp"); !ok {
		t.Fatalf("expected entry alive before expiry")
	}
	now = now.Add(2 * time.Second)
	if _, ok, err := store.Get(ctx, "exp"); err != nil || ok {
		t.Fatalf("expected key expired; ok=%v err=%v", ok, err)
	}
	if _, exists := kv.entries[store.cacheKey("exp")]; exists {
		t.Fatalf("expected expired key purged")
	}
}

func TestNATSStoreEmptyBodyIsAHit(t *testing.T) {
	ctx := context.Background()
	store := newTestNATSStore(t, newStubNATSKeyValue("bucket"), time.Minute, "pfx")
	if err := store.Set(ctx, "empty", nil, 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, ok, err := store.Get(ctx, "empty"); err != nil || !ok {
		t.Fatalf("expected empty body hit, ok=%v err=%v", ok, err)
	}
}

func TestNATSStoreRejectsForeignPayload(t *testing.T) {
	ctx := context.Background()
	kv := newStubNATSKeyValue("bucket")
	store := newTestNATSStore(t, kv, time.Minute, "pfx")
	if _, err := kv.Put(store.cacheKey("raw"), []byte("not an envelope")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if _, _, err := store.Get(ctx, "raw"); err == nil {
		t.Fatalf("expected envelope decode error")
	}
	if _, err := kv.Put(store.cacheKey("other"), []byte(`{"m":"other-v9","v":"eA==","ea":0}`)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if _, _, err := store.Get(ctx, "other"); err == nil || !strings.Contains(err.Error(), "unknown marker") {
		t.Fatalf("expected marker error, got %v", err)
	}
}

func TestNATSStoreFlushRespectsPrefix(t *testing.T) {
	ctx := context.Background()
	kv := newStubNATSKeyValue("bucket")
	mine := newTestNATSStore(t, kv, time.Minute, "mine")
	theirs := newTestNATSStore(t, kv, time.Minute, "theirs")

	for _, k := range []string{"a", "b"} {
		if err := mine.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if err := theirs.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatalf("set failed: %v", err)
		}
	}
	if err := mine.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	for _, k := range []string{"a", "b"} {
		if _, ok, _ := mine.Get(ctx, k); ok {
			t.Fatalf("expected %s flushed from own prefix", k)
		}
		if _, ok, _ := theirs.Get(ctx, k); !ok {
			t.Fatalf("expected %s kept under other prefix", k)
		}
	}
}

func TestNATSStoreFlushEmptyBucket(t *testing.T) {
	kv := newStubNATSKeyValue("bucket")
	kv.listErr = nats.ErrNoKeysFound
	store := newTestNATSStore(t, kv, time.Minute, "pfx")
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("flush of empty bucket should not error: %v", err)
	}
}

func TestNATSStoreErrorPropagation(t *testing.T) {
	ctx := context.Background()
	kv := newStubNATSKeyValue("bucket")
	store := newTestNATSStore(t, kv, time.Minute, "pfx")

	kv.getErr = errors.New("get")
	if _, _, err := store.Get(ctx, "k"); err == nil {
		t.Fatalf("expected get error")
	}
	kv.getErr = nil

	kv.putErr = errors.New("put")
	if err := store.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected set error")
	}
	kv.putErr = nil

	kv.purgeErr = errors.New("purge")
	if err := store.Delete(ctx, "k"); err == nil {
		t.Fatalf("expected delete error")
	}
	kv.purgeErr = nil

	kv.listErr = errors.New("list")
	if err := store.Flush(ctx); err == nil {
		t.Fatalf("expected flush list error")
	}
}

func TestNATSStoreCloseWithoutOwnConnection(t *testing.T) {
	store := newTestNATSStore(t, newStubNATSKeyValue("bucket"), time.Minute, "pfx")
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

type stubNATSKeyValue struct {
	bucket string
	rev    uint64

	entries map[string]*stubNATSKeyValueEntry

	getErr    error
	putErr    error
	deleteErr error
	purgeErr  error
	listErr   error
}

func newStubNATSKeyValue(bucket string) *stubNATSKeyValue {
	return &stubNATSKeyValue{
		bucket:  bucket,
		entries: make(map[string]*stubNATSKeyValueEntry),
	}
}

func (s *stubNATSKeyValue) Get(key string) (nats.KeyValueEntry, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}
	if entry.op == nats.KeyValueDelete || entry.op == nats.KeyValuePurge {
		return nil, nats.ErrKeyDeleted
	}
	return entry.clone(), nil
}

func (s *stubNATSKeyValue) Put(key string, value []byte) (uint64, error) {
	if s.putErr != nil {
		return 0, s.putErr
	}
	s.rev++
	s.entries[key] = &stubNATSKeyValueEntry{
		bucket:   s.bucket,
		key:      key,
		value:    cloneBytes(value),
		revision: s.rev,
		created:  time.Now(),
		op:       nats.KeyValuePut,
	}
	return s.rev, nil
}

func (s *stubNATSKeyValue) Delete(key string, _ ...nats.DeleteOpt) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.rev++
	s.entries[key] = &stubNATSKeyValueEntry{
		bucket:   s.bucket,
		key:      key,
		revision: s.rev,
		created:  time.Now(),
		op:       nats.KeyValueDelete,
	}
	return nil
}

func (s *stubNATSKeyValue) Purge(key string, _ ...nats.DeleteOpt) error {
	if s.purgeErr != nil {
		return s.purgeErr
	}
	if _, ok := s.entries[key]; !ok {
		return nats.ErrKeyNotFound
	}
	delete(s.entries, key)
	return nil
}

func (s *stubNATSKeyValue) ListKeys(_ ...nats.WatchOpt) (nats.KeyLister, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return newStubNATSKeyLister(keys), nil
}

type stubNATSKeyValueEntry struct {
	bucket   string
	key      string
	value    []byte
	revision uint64
	created  time.Time
	delta    uint64
	op       nats.KeyValueOp
}

func (e *stubNATSKeyValueEntry) clone() *stubNATSKeyValueEntry {
	cp := *e
	cp.value = cloneBytes(e.value)
	return &cp
}

func (e *stubNATSKeyValueEntry) Bucket() string             { return e.bucket }
func (e *stubNATSKeyValueEntry) Key() string                { return e.key }
func (e *stubNATSKeyValueEntry) Value() []byte              { return cloneBytes(e.value) }
func (e *stubNATSKeyValueEntry) Revision() uint64           { return e.revision }
func (e *stubNATSKeyValueEntry) Created() time.Time         { return e.created }
func (e *stubNATSKeyValueEntry) Delta() uint64              { return e.delta }
func (e *stubNATSKeyValueEntry) Operation() nats.KeyValueOp { return e.op }

type stubNATSKeyLister struct {
	keysCh chan string
	errCh  chan error
}

func newStubNATSKeyLister(keys []string) *stubNATSKeyLister {
	keysCh := make(chan string, len(keys))
	errCh := make(chan error)
	for _, key := range keys {
		keysCh <- key
	}
	close(keysCh)
	close(errCh)
	return &stubNATSKeyLister{keysCh: keysCh, errCh: errCh}
}

func (l *stubNATSKeyLister) Keys() <-chan string { return l.keysCh }
func (l *stubNATSKeyLister) Error() <-chan error { return l.errCh }
func (l *stubNATSKeyLister) Stop() error         { return nil }
