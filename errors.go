package smartcache

import "errors"

var (
	// ErrImproperlyConfigured reports invalid settings or wrap-time options.
	ErrImproperlyConfigured = errors.New("smartcache: improperly configured")

	// ErrStoreNotFound reports a backend name that no driver is registered under.
	ErrStoreNotFound = errors.New("smartcache: cache client not found")

	// ErrRepresentationNotFound reports a value with no unique representation.
	ErrRepresentationNotFound = errors.New("smartcache: unique representation not found")

	// ErrInvalidRepresentationType reports a CacheKey method that does not return a string.
	ErrInvalidRepresentationType = errors.New("smartcache: invalid type for unique representation")

	// ErrAttributeNotFound reports a key path segment that does not resolve.
	ErrAttributeNotFound = errors.New("smartcache: attribute not found")
)
