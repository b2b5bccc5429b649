// Package smartcache memoizes function results in a pluggable store.
//
// A wrapped function is keyed by its qualified name and a deterministic
// representation of the arguments it is keyed on. Results are stored with
// the time they were computed; an entry older than the timeout is outdated
// and the next call recomputes it, while the backend keeps it a little
// longer (the retention) so it can still be inspected.
//
// Example:
//
//	fetchUser, err := smartcache.Wrap1(func(ctx context.Context, id int) (User, error) {
//		return repo.Find(ctx, id)
//	}, smartcache.WithTimeout(5*time.Minute))
//	if err != nil {
//		return err
//	}
//	u, err := fetchUser.Call(ctx, 42)          // miss: runs repo.Find
//	u, err = fetchUser.Call(ctx, 42)           // hit
//	u, err = fetchUser.RefreshFor(ctx, 42)     // recompute and overwrite
//	err = fetchUser.InvalidateFor(ctx, 42)     // drop the entry
//
// Settings resolve per call: options passed to the wrapper win over
// Global(), which wins over SMARTCACHE_* environment variables, which win
// over built-in defaults. Backends are opened by name through a Registry
// (memory, null, file, redis, memcached, nats, dynamodb, sqlite, postgres,
// mysql) and are reused while their hosts stay the same.
package smartcache
