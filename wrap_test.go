package smartcache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goforj/smartcache"
)

func memoryOpts(opts ...smartcache.Option) []smartcache.Option {
	return isolated(append([]smartcache.Option{smartcache.WithStore(smartcache.NewMemoryStore(context.Background()))}, opts...)...)
}

func TestWrap0(t *testing.T) {
	calls := &counter{}
	cfg, err := smartcache.Wrap0(func(context.Context) (string, error) {
		calls.inc()
		return "loaded", nil
	}, memoryOpts(smartcache.WithName("config"))...)
	if err != nil {
		t.Fatalf("wrap failed: %v", err)
	}
	ctx := context.Background()
	_, _ = cfg.Call(ctx)
	v, err := cfg.Call(ctx)
	if err != nil || v != "loaded" || calls.count() != 1 {
		t.Fatalf("unexpected result v=%q err=%v calls=%d", v, err, calls.count())
	}
	if key, _ := cfg.Memo().Key(); key != "config" {
		t.Fatalf("expected bare name key, got %q", key)
	}
	if info, err := cfg.InfoFor(ctx); err != nil || info == nil || info.Value != "loaded" {
		t.Fatalf("unexpected info %+v err=%v", info, err)
	}
	if _, err := cfg.RefreshFor(ctx); err != nil || calls.count() != 2 {
		t.Fatalf("expected refresh, calls=%d err=%v", calls.count(), err)
	}
	if err := cfg.InvalidateFor(ctx); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if info, _ := cfg.InfoFor(ctx); info != nil {
		t.Fatalf("expected entry removed")
	}
}

func TestWrap2Through4(t *testing.T) {
	ctx := context.Background()
	calls := &counter{}

	add2, err := smartcache.Wrap2(func(_ context.Context, a, b int) (int, error) {
		calls.inc()
		return a + b, nil
	}, memoryOpts(smartcache.WithName("add2"))...)
	if err != nil {
		t.Fatalf("wrap2 failed: %v", err)
	}
	add3, err := smartcache.Wrap3(func(_ context.Context, a, b, c int) (int, error) {
		calls.inc()
		return a + b + c, nil
	}, memoryOpts(smartcache.WithName("add3"))...)
	if err != nil {
		t.Fatalf("wrap3 failed: %v", err)
	}
	join4, err := smartcache.Wrap4(func(_ context.Context, a string, b int, c bool, d []string) (string, error) {
		calls.inc()
		return a, nil
	}, memoryOpts(smartcache.WithName("join4"))...)
	if err != nil {
		t.Fatalf("wrap4 failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if v, _ := add2.Call(ctx, 1, 2); v != 3 {
			t.Fatalf("add2 = %d", v)
		}
		if v, _ := add3.Call(ctx, 1, 2, 3); v != 6 {
			t.Fatalf("add3 = %d", v)
		}
		if v, _ := join4.Call(ctx, "x", 1, true, []string{"a"}); v != "x" {
			t.Fatalf("join4 = %q", v)
		}
	}
	if calls.count() != 3 {
		t.Fatalf("expected one computation per function, got %d", calls.count())
	}

	if key, _ := join4.Memo().Key("x", 1, true, []string{"a", "b"}); key != `join4//"x"//1//true//"a"--"b"` {
		t.Fatalf("unexpected key %q", key)
	}
	if info, _ := add2.InfoFor(ctx, 1, 2); info == nil || info.Value != 3 {
		t.Fatalf("unexpected add2 info %+v", info)
	}
	if _, err := add3.RefreshFor(ctx, 1, 2, 3); err != nil || calls.count() != 4 {
		t.Fatalf("expected add3 refresh, calls=%d err=%v", calls.count(), err)
	}
	if err := join4.InvalidateFor(ctx, "x", 1, true, []string{"a"}); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, err := add2.RefreshFor(ctx, 1, 2); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if err := add3.InvalidateFor(ctx, 1, 2, 3); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, err := join4.RefreshFor(ctx, "x", 1, true, nil); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if info, err := join4.InfoFor(ctx, "x", 1, true, nil); err != nil || info == nil {
		t.Fatalf("unexpected join4 info %+v err=%v", info, err)
	}
	if _, err := add3.InfoFor(ctx, 1, 2, 3); err != nil {
		t.Fatalf("info failed: %v", err)
	}
	if err := add2.InvalidateFor(ctx, 1, 2); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
}

func TestWrapNilArgumentsPassThrough(t *testing.T) {
	type filter struct{ Tag string }
	var seen *filter
	seenSet := false
	fn, err := smartcache.Wrap1(func(_ context.Context, f *filter) (int, error) {
		seen, seenSet = f, true
		return 0, nil
	}, memoryOpts(smartcache.WithName("filter"))...)
	if err != nil {
		t.Fatalf("wrap failed: %v", err)
	}
	if _, err := fn.Call(context.Background(), nil); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if !seenSet || seen != nil {
		t.Fatalf("expected nil pointer passed through")
	}
	if key, _ := fn.Memo().Key((*filter)(nil)); key != "filter//nil" {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestWrapArgs(t *testing.T) {
	calls := &counter{}
	sum, err := smartcache.WrapArgs(func(_ context.Context, args []any) (int, error) {
		calls.inc()
		total := 0
		for _, a := range args {
			total += a.(int)
		}
		return total, nil
	}, memoryOpts(smartcache.WithName("sum"), smartcache.WithParams("a", "b", "c", "d", "e"), smartcache.WithExclude("e"))...)
	if err != nil {
		t.Fatalf("wrap failed: %v", err)
	}
	ctx := context.Background()
	v, err := sum.Call(ctx, 1, 2, 3, 4, 5)
	if err != nil || v != 15 {
		t.Fatalf("unexpected sum %d err=%v", v, err)
	}
	v, _ = sum.Call(ctx, 1, 2, 3, 4, 100)
	if v != 15 || calls.count() != 1 {
		t.Fatalf("expected excluded argument ignored, v=%d calls=%d", v, calls.count())
	}
	if _, err := sum.Call(ctx, 1, 2); !errors.Is(err, smartcache.ErrImproperlyConfigured) {
		t.Fatalf("expected arity mismatch rejected, got %v", err)
	}

	var api smartcache.API[int] = sum
	if api.Name() != "sum" || len(api.Keys()) != 4 {
		t.Fatalf("unexpected api metadata %s %v", api.Name(), api.Keys())
	}
}

func TestWrapRejectsNilFunc(t *testing.T) {
	if _, err := smartcache.Wrap0[int](nil); !errors.Is(err, smartcache.ErrImproperlyConfigured) {
		t.Fatalf("wrap0: expected nil func rejected, got %v", err)
	}
	if _, err := smartcache.Wrap1[int, int](nil); !errors.Is(err, smartcache.ErrImproperlyConfigured) {
		t.Fatalf("wrap1: expected nil func rejected, got %v", err)
	}
	if _, err := smartcache.Wrap2[int, int, int](nil); !errors.Is(err, smartcache.ErrImproperlyConfigured) {
		t.Fatalf("wrap2: expected nil func rejected, got %v", err)
	}
	if _, err := smartcache.Wrap3[int, int, int, int](nil); !errors.Is(err, smartcache.ErrImproperlyConfigured) {
		t.Fatalf("wrap3: expected nil func rejected, got %v", err)
	}
	if _, err := smartcache.Wrap4[int, int, int, int, int](nil); !errors.Is(err, smartcache.ErrImproperlyConfigured) {
		t.Fatalf("wrap4: expected nil func rejected, got %v", err)
	}
	if _, err := smartcache.WrapArgs[int](nil); !errors.Is(err, smartcache.ErrImproperlyConfigured) {
		t.Fatalf("wrapargs: expected nil func rejected, got %v", err)
	}
}
