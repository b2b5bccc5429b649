package smartcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// stubRedisClient is an in-memory RedisClient.
type stubRedisClient struct {
	store   map[string]string
	ttl     map[string]time.Time
	cursors map[uint64]string

	getErr  error
	setErr  error
	delErr  error
	scanErr error
	closed  bool
}

func newStubRedisClient() *stubRedisClient {
	return &stubRedisClient{
		store:   make(map[string]string),
		ttl:     make(map[string]time.Time),
		cursors: make(map[uint64]string),
	}
}

func (c *stubRedisClient) expireIfNeeded(key string) {
	if deadline, ok := c.ttl[key]; ok && time.Now().After(deadline) {
		delete(c.ttl, key)
		delete(c.store, key)
	}
}

func (c *stubRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if c.getErr != nil {
		cmd.SetErr(c.getErr)
		return cmd
	}
	c.expireIfNeeded(key)
	if val, ok := c.store[key]; ok {
		cmd.SetVal(val)
		return cmd
	}
	cmd.SetErr(redis.Nil)
	return cmd
}

func (c *stubRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if c.setErr != nil {
		cmd.SetErr(c.setErr)
		return cmd
	}
	bytes, _ := value.([]byte)
	c.store[key] = string(bytes)
	if expiration > 0 {
		c.ttl[key] = time.Now().Add(expiration)
	} else {
		delete(c.ttl, key)
	}
	cmd.SetVal("OK")
	return cmd
}

func (c *stubRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if c.delErr != nil {
		cmd.SetErr(c.delErr)
		return cmd
	}
	var removed int64
	for _, key := range keys {
		c.expireIfNeeded(key)
		if _, ok := c.store[key]; ok {
			delete(c.store, key)
			delete(c.ttl, key)
			removed++
		}
	}
	cmd.SetVal(removed)
	return cmd
}

// Scan pages through matching keys in sorted order, count at a time. A
// cursor resumes after the last key of the previous page, so deleting
// scanned keys does not skip any.
func (c *stubRedisClient) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	cmd := redis.NewScanCmd(ctx, nil)
	if c.scanErr != nil {
		cmd.SetErr(c.scanErr)
		return cmd
	}
	prefix := strings.TrimSuffix(match, "*")
	after := c.cursors[cursor]
	var keys []string
	for key := range c.store {
		if strings.HasPrefix(key, prefix) && (cursor == 0 || key > after) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if count <= 0 || int64(len(keys)) <= count {
		cmd.SetVal(keys, 0)
		return cmd
	}
	page := keys[:count]
	next := uint64(len(c.cursors) + 1)
	c.cursors[next] = page[len(page)-1]
	cmd.SetVal(page, next)
	return cmd
}

func (c *stubRedisClient) Close() error {
	c.closed = true
	return nil
}

func TestRedisStoreNilClientErrors(t *testing.T) {
	store := newRedisStore(nil, 0, "")
	ctx := context.Background()
	if _, _, err := store.Get(ctx, "k"); err == nil {
		t.Fatalf("expected get error when redis client is nil")
	}
	if err := store.Set(ctx, "k", []byte("v"), 0); err == nil {
		t.Fatalf("expected set error when redis client is nil")
	}
	if err := store.Delete(ctx, "k"); err == nil {
		t.Fatalf("expected delete error when redis client is nil")
	}
	if err := store.Flush(ctx); err == nil {
		t.Fatalf("expected flush error when redis client is nil")
	}
}

func TestRedisStoreOperationsWithStubClient(t *testing.T) {
	ctx := context.Background()
	client := newStubRedisClient()
	store := newRedisStore(client, 0, "pfx")

	if err := store.Set(ctx, "alpha", []byte("one"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	body, ok, err := store.Get(ctx, "alpha")
	if err != nil || !ok || string(body) != "one" {
		t.Fatalf("unexpected get result: ok=%v err=%v body=%s", ok, err, string(body))
	}
	if _, ok := client.store["pfx:alpha"]; !ok {
		t.Fatalf("expected prefixed key, have %v", client.store)
	}
	if deadline := client.ttl["pfx:alpha"]; deadline.Before(time.Now().Add(defaultCacheTTL - time.Second)) {
		t.Fatalf("expected default ttl to be applied, got %v", deadline)
	}

	if err := store.Set(ctx, "short", []byte("x"), time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if deadline := client.ttl["pfx:short"]; deadline.After(time.Now().Add(time.Second)) {
		t.Fatalf("expected explicit ttl, got %v", deadline)
	}

	if err := store.Delete(ctx, "alpha"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, err := store.Get(ctx, "alpha"); err != nil || ok {
		t.Fatalf("expected deleted key to be gone")
	}
}

func TestRedisStoreEmptyBodyIsAHit(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(newStubRedisClient(), 0, "pfx")
	if err := store.Set(ctx, "empty", []byte{}, 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, ok, err := store.Get(ctx, "empty"); err != nil || !ok {
		t.Fatalf("expected empty body hit, ok=%v err=%v", ok, err)
	}
}

func TestRedisStoreFlushPagesAndRespectsPrefix(t *testing.T) {
	ctx := context.Background()
	client := newStubRedisClient()
	store := newRedisStore(client, 0, "pfx")
	for i := 0; i < 450; i++ {
		client.store[fmt.Sprintf("pfx:k%03d", i)] = "v"
	}
	client.store["other:keep"] = "v"

	if err := store.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if len(client.store) != 1 {
		t.Fatalf("expected only foreign key to survive, have %d keys", len(client.store))
	}
	if _, ok := client.store["other:keep"]; !ok {
		t.Fatalf("expected foreign key kept")
	}
}

func TestRedisStoreErrorPropagation(t *testing.T) {
	ctx := context.Background()
	client := newStubRedisClient()
	client.getErr = errors.New("get")
	store := newRedisStore(client, 0, "pfx")
	if _, _, err := store.Get(ctx, "k"); err == nil {
		t.Fatalf("expected get error")
	}

	client = newStubRedisClient()
	client.setErr = errors.New("set")
	store = newRedisStore(client, 0, "pfx")
	if err := store.Set(ctx, "k", []byte("v"), 0); err == nil {
		t.Fatalf("expected set error")
	}

	client = newStubRedisClient()
	client.scanErr = errors.New("scan")
	store = newRedisStore(client, 0, "pfx")
	if err := store.Flush(ctx); err == nil {
		t.Fatalf("expected flush scan error")
	}

	client = newStubRedisClient()
	client.delErr = errors.New("del")
	client.store["pfx:a"] = "1"
	store = newRedisStore(client, 0, "pfx")
	if err := store.Flush(ctx); err == nil {
		t.Fatalf("expected flush delete error")
	}
}

func TestRedisStoreCloseReleasesClient(t *testing.T) {
	client := newStubRedisClient()
	store := newRedisStore(client, 0, "pfx")
	if err := store.(*redisStore).Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !client.closed {
		t.Fatalf("expected client closed")
	}
}

func TestNewRedisClientParsesURL(t *testing.T) {
	client, err := newRedisClient("redis://:secret@10.0.0.5:6380/2")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	defer client.Close()
	opts := client.Options()
	if opts.Addr != "10.0.0.5:6380" || opts.DB != 2 || opts.Password != "secret" {
		t.Fatalf("unexpected options: addr=%s db=%d", opts.Addr, opts.DB)
	}

	if _, err := newRedisClient("redis://host:notaport/x"); err == nil {
		t.Fatalf("expected invalid url error")
	}
}
