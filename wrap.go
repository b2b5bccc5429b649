package smartcache

import (
	"context"
	"fmt"
)

var errNilFunc = fmt.Errorf("%w: memoized function is nil", ErrImproperlyConfigured)

// Func0 is a memoized function without arguments.
type Func0[R any] struct{ memo *Memo[R] }

// Wrap0 memoizes fn.
//
// Example:
//
//	config, _ := smartcache.Wrap0(loadConfig, smartcache.WithTimeout(time.Minute))
//	cfg, _ := config.Call(ctx)
func Wrap0[R any](fn func(ctx context.Context) (R, error), opts ...Option) (*Func0[R], error) {
	if fn == nil {
		return nil, errNilFunc
	}
	m, err := newMemo(fn, func(ctx context.Context, _ []any) (R, error) {
		return fn(ctx)
	}, 0, newMemoConfig(opts))
	if err != nil {
		return nil, err
	}
	return &Func0[R]{memo: m}, nil
}

// Call returns the memoized result, running the function on a miss or
// an outdated entry.
func (f *Func0[R]) Call(ctx context.Context) (R, error) { return f.memo.Call(ctx) }

// RefreshFor recomputes and overwrites the entry.
func (f *Func0[R]) RefreshFor(ctx context.Context) (R, error) { return f.memo.RefreshFor(ctx) }

// InvalidateFor deletes the entry.
func (f *Func0[R]) InvalidateFor(ctx context.Context) error { return f.memo.InvalidateFor(ctx) }

// InfoFor inspects the entry without running the function. It returns
// nil when nothing is stored.
func (f *Func0[R]) InfoFor(ctx context.Context) (*Info[R], error) { return f.memo.InfoFor(ctx) }

// Memo returns the untyped memoizer.
func (f *Func0[R]) Memo() *Memo[R] { return f.memo }

// Func1 is a memoized function of one argument.
type Func1[A, R any] struct{ memo *Memo[R] }

// Wrap1 memoizes fn. Name the parameter with WithParams to key on
// nested fields:
//
//	profile, _ := smartcache.Wrap1(fetchProfile,
//		smartcache.WithParams("user"),
//		smartcache.WithKeys("user.ID"),
//	)
func Wrap1[A, R any](fn func(ctx context.Context, a A) (R, error), opts ...Option) (*Func1[A, R], error) {
	if fn == nil {
		return nil, errNilFunc
	}
	m, err := newMemo(fn, func(ctx context.Context, args []any) (R, error) {
		return fn(ctx, arg[A](args, 0))
	}, 1, newMemoConfig(opts))
	if err != nil {
		return nil, err
	}
	return &Func1[A, R]{memo: m}, nil
}

// Call returns the memoized result.
func (f *Func1[A, R]) Call(ctx context.Context, a A) (R, error) { return f.memo.Call(ctx, a) }

// RefreshFor recomputes and overwrites the entry.
func (f *Func1[A, R]) RefreshFor(ctx context.Context, a A) (R, error) {
	return f.memo.RefreshFor(ctx, a)
}

// InvalidateFor deletes the entry.
func (f *Func1[A, R]) InvalidateFor(ctx context.Context, a A) error {
	return f.memo.InvalidateFor(ctx, a)
}

// InfoFor inspects the entry. It returns nil when nothing is stored.
func (f *Func1[A, R]) InfoFor(ctx context.Context, a A) (*Info[R], error) {
	return f.memo.InfoFor(ctx, a)
}

// Memo returns the untyped memoizer.
func (f *Func1[A, R]) Memo() *Memo[R] { return f.memo }

// Func2 is a memoized function of two arguments.
type Func2[A, B, R any] struct{ memo *Memo[R] }

// Wrap2 memoizes fn.
func Wrap2[A, B, R any](fn func(ctx context.Context, a A, b B) (R, error), opts ...Option) (*Func2[A, B, R], error) {
	if fn == nil {
		return nil, errNilFunc
	}
	m, err := newMemo(fn, func(ctx context.Context, args []any) (R, error) {
		return fn(ctx, arg[A](args, 0), arg[B](args, 1))
	}, 2, newMemoConfig(opts))
	if err != nil {
		return nil, err
	}
	return &Func2[A, B, R]{memo: m}, nil
}

// Call returns the memoized result.
func (f *Func2[A, B, R]) Call(ctx context.Context, a A, b B) (R, error) {
	return f.memo.Call(ctx, a, b)
}

// RefreshFor recomputes and overwrites the entry.
func (f *Func2[A, B, R]) RefreshFor(ctx context.Context, a A, b B) (R, error) {
	return f.memo.RefreshFor(ctx, a, b)
}

// InvalidateFor deletes the entry.
func (f *Func2[A, B, R]) InvalidateFor(ctx context.Context, a A, b B) error {
	return f.memo.InvalidateFor(ctx, a, b)
}

// InfoFor inspects the entry. It returns nil when nothing is stored.
func (f *Func2[A, B, R]) InfoFor(ctx context.Context, a A, b B) (*Info[R], error) {
	return f.memo.InfoFor(ctx, a, b)
}

// Memo returns the untyped memoizer.
func (f *Func2[A, B, R]) Memo() *Memo[R] { return f.memo }

// Func3 is a memoized function of three arguments.
type Func3[A, B, C, R any] struct{ memo *Memo[R] }

// Wrap3 memoizes fn.
func Wrap3[A, B, C, R any](fn func(ctx context.Context, a A, b B, c C) (R, error), opts ...Option) (*Func3[A, B, C, R], error) {
	if fn == nil {
		return nil, errNilFunc
	}
	m, err := newMemo(fn, func(ctx context.Context, args []any) (R, error) {
		return fn(ctx, arg[A](args, 0), arg[B](args, 1), arg[C](args, 2))
	}, 3, newMemoConfig(opts))
	if err != nil {
		return nil, err
	}
	return &Func3[A, B, C, R]{memo: m}, nil
}

// Call returns the memoized result.
func (f *Func3[A, B, C, R]) Call(ctx context.Context, a A, b B, c C) (R, error) {
	return f.memo.Call(ctx, a, b, c)
}

// RefreshFor recomputes and overwrites the entry.
func (f *Func3[A, B, C, R]) RefreshFor(ctx context.Context, a A, b B, c C) (R, error) {
	return f.memo.RefreshFor(ctx, a, b, c)
}

// InvalidateFor deletes the entry.
func (f *Func3[A, B, C, R]) InvalidateFor(ctx context.Context, a A, b B, c C) error {
	return f.memo.InvalidateFor(ctx, a, b, c)
}

// InfoFor inspects the entry. It returns nil when nothing is stored.
func (f *Func3[A, B, C, R]) InfoFor(ctx context.Context, a A, b B, c C) (*Info[R], error) {
	return f.memo.InfoFor(ctx, a, b, c)
}

// Memo returns the untyped memoizer.
func (f *Func3[A, B, C, R]) Memo() *Memo[R] { return f.memo }

// Func4 is a memoized function of four arguments.
type Func4[A, B, C, D, R any] struct{ memo *Memo[R] }

// Wrap4 memoizes fn. Functions with more arguments can take a struct or
// use WrapArgs.
func Wrap4[A, B, C, D, R any](fn func(ctx context.Context, a A, b B, c C, d D) (R, error), opts ...Option) (*Func4[A, B, C, D, R], error) {
	if fn == nil {
		return nil, errNilFunc
	}
	m, err := newMemo(fn, func(ctx context.Context, args []any) (R, error) {
		return fn(ctx, arg[A](args, 0), arg[B](args, 1), arg[C](args, 2), arg[D](args, 3))
	}, 4, newMemoConfig(opts))
	if err != nil {
		return nil, err
	}
	return &Func4[A, B, C, D, R]{memo: m}, nil
}

// Call returns the memoized result.
func (f *Func4[A, B, C, D, R]) Call(ctx context.Context, a A, b B, c C, d D) (R, error) {
	return f.memo.Call(ctx, a, b, c, d)
}

// RefreshFor recomputes and overwrites the entry.
func (f *Func4[A, B, C, D, R]) RefreshFor(ctx context.Context, a A, b B, c C, d D) (R, error) {
	return f.memo.RefreshFor(ctx, a, b, c, d)
}

// InvalidateFor deletes the entry.
func (f *Func4[A, B, C, D, R]) InvalidateFor(ctx context.Context, a A, b B, c C, d D) error {
	return f.memo.InvalidateFor(ctx, a, b, c, d)
}

// InfoFor inspects the entry. It returns nil when nothing is stored.
func (f *Func4[A, B, C, D, R]) InfoFor(ctx context.Context, a A, b B, c C, d D) (*Info[R], error) {
	return f.memo.InfoFor(ctx, a, b, c, d)
}

// Memo returns the untyped memoizer.
func (f *Func4[A, B, C, D, R]) Memo() *Memo[R] { return f.memo }

// arg extracts a typed positional argument. A nil interface yields the
// zero value, so nil pointers and nil slices pass through unchanged.
func arg[T any](args []any, i int) T {
	v, _ := args[i].(T)
	return v
}
