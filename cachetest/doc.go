// Package cachetest provides a reusable contract suite for smartcache.Store
// implementations, including custom backends added through a Registry.
//
// Example:
//
//	func TestMyStoreContract(t *testing.T) {
//		store := newMyStore(t)
//		cachetest.RunStoreContract(t, store, cachetest.Options{
//			TTL:     time.Second,
//			TTLWait: 1500 * time.Millisecond,
//		})
//	}
package cachetest
