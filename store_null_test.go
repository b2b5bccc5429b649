package smartcache

import (
	"context"
	"testing"
	"time"
)

func TestNullStoreNoOps(t *testing.T) {
	store := newNullStore()
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set should be nil")
	}
	if _, ok, err := store.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("get should miss, err=%v ok=%v", err, ok)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete should be nil")
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("flush should be nil")
	}
	if store.Driver() != DriverNull {
		t.Fatalf("unexpected driver %q", store.Driver())
	}
}
