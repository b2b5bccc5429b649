// Package cachefake provides an in-memory smartcache.Store that records
// every operation, for asserting how memoized code uses its backend.
package cachefake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goforj/smartcache"
)

// Op identifies a store operation for assertions.
type Op string

const (
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpDelete Op = "delete"
	OpFlush  Op = "flush"
)

// Fake wraps the memory store so no external services are needed.
type Fake struct {
	store  *countingStore
	mu     sync.Mutex
	counts map[Op]map[string]int
	ttls   map[string]time.Duration
	fail   map[Op]error
}

// New creates a Fake backed by a fresh memory store.
func New() *Fake {
	f := &Fake{
		counts: make(map[Op]map[string]int),
		ttls:   make(map[string]time.Duration),
		fail:   make(map[Op]error),
	}
	f.store = &countingStore{inner: smartcache.NewMemoryStore(context.Background()), fake: f}
	return f
}

// Store returns the store to inject with smartcache.WithStore.
func (f *Fake) Store() smartcache.Store { return f.store }

// Fail makes every subsequent op return err. A nil err clears the failure.
func (f *Fake) Fail(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

// Reset clears recorded counts and injected failures.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = make(map[Op]map[string]int)
	f.ttls = make(map[string]time.Duration)
	f.fail = make(map[Op]error)
}

// AssertCalled verifies key was touched by op the expected number of times.
func (f *Fake) AssertCalled(t *testing.T, op Op, key string, times int) {
	t.Helper()
	if got := f.Count(op, key); got != times {
		t.Fatalf("expected %s %q called %d times, got %d", op, key, times, got)
	}
}

// AssertNotCalled ensures key was never touched by op.
func (f *Fake) AssertNotCalled(t *testing.T, op Op, key string) {
	t.Helper()
	if got := f.Count(op, key); got != 0 {
		t.Fatalf("expected %s %q not called, got %d", op, key, got)
	}
}

// AssertTotal ensures the total call count for an op matches times.
func (f *Fake) AssertTotal(t *testing.T, op Op, times int) {
	t.Helper()
	if got := f.Total(op); got != times {
		t.Fatalf("expected %s total=%d, got %d", op, times, got)
	}
}

// Count returns calls for op+key.
func (f *Fake) Count(op Op, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[op][key]
}

// Total returns total calls for an op across keys.
func (f *Fake) Total(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int
	for _, v := range f.counts[op] {
		sum += v
	}
	return sum
}

// Keys returns every key written so far.
func (f *Fake) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.counts[OpSet]))
	for k := range f.counts[OpSet] {
		keys = append(keys, k)
	}
	return keys
}

// LastTTL returns the ttl of the most recent write to key.
func (f *Fake) LastTTL(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttls[key]
}

func (f *Fake) record(op Op, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts[op] == nil {
		f.counts[op] = make(map[string]int)
	}
	f.counts[op][key]++
	if op == OpSet {
		f.ttls[key] = ttl
	}
	return f.fail[op]
}

type countingStore struct {
	inner smartcache.Store
	fake  *Fake
}

func (s *countingStore) Driver() smartcache.Driver { return s.inner.Driver() }

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.fake.record(OpGet, key, 0); err != nil {
		return nil, false, err
	}
	return s.inner.Get(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := s.fake.record(OpSet, key, ttl); err != nil {
		return err
	}
	return s.inner.Set(ctx, key, val, ttl)
}

func (s *countingStore) Delete(ctx context.Context, key string) error {
	if err := s.fake.record(OpDelete, key, 0); err != nil {
		return err
	}
	return s.inner.Delete(ctx, key)
}

func (s *countingStore) Flush(ctx context.Context) error {
	if err := s.fake.record(OpFlush, "", 0); err != nil {
		return err
	}
	return s.inner.Flush(ctx)
}
