package smartcache

import "context"

// CoreAPI exposes memoized function metadata.
type CoreAPI interface {
	Name() string
	Keys() []string
	KeysIncluded() []string
	KeysExcluded() []string
}

// CallAPI exposes the memoized call.
type CallAPI[R any] interface {
	Call(ctx context.Context, args ...any) (R, error)
	Key(args ...any) (string, error)
}

// ControlAPI exposes per-argument entry management.
type ControlAPI[R any] interface {
	RefreshFor(ctx context.Context, args ...any) (R, error)
	InvalidateFor(ctx context.Context, args ...any) error
	InfoFor(ctx context.Context, args ...any) (*Info[R], error)
}

// API is the full untyped surface of a memoized function.
type API[R any] interface {
	CoreAPI
	CallAPI[R]
	ControlAPI[R]
}

var _ API[any] = (*Memo[any])(nil)
