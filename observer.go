package smartcache

import (
	"context"
	"time"
)

// EventKind classifies how a memoized call was served.
type EventKind string

const (
	// EventHit means a fresh entry was replayed.
	EventHit EventKind = "hit"
	// EventMiss means no entry existed and the function ran.
	EventMiss EventKind = "miss"
	// EventOutdated means a stale entry was found and recomputed.
	EventOutdated EventKind = "outdated"
	// EventRefresh means recomputation was forced.
	EventRefresh EventKind = "refresh"
	// EventInvalidate means an entry was deleted on request.
	EventInvalidate EventKind = "invalidate"
	// EventBypass means caching is disabled and the function ran directly.
	EventBypass EventKind = "bypass"
)

// Event describes one memoized call after it completes.
type Event struct {
	Kind   EventKind
	Func   string
	Key    string
	Driver Driver
	// Age of the entry that was found, for hits and outdated entries.
	Age time.Duration
	// Err is the error returned to the caller, if any.
	Err      error
	Duration time.Duration
}

// Observer receives events for memoized calls.
type Observer interface {
	OnCacheEvent(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev Event)

// OnCacheEvent implements Observer.
func (f ObserverFunc) OnCacheEvent(ctx context.Context, ev Event) {
	if f == nil {
		return
	}
	f(ctx, ev)
}
