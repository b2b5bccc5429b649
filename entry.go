package smartcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
)

const maxStackFrames = 32

// entry is the stored envelope: either an encoded result or a failure.
type entry struct {
	Value    []byte           `json:"v,omitempty"`
	Err      *ErrorDescriptor `json:"e,omitempty"`
	StoredAt int64            `json:"t"`
}

func (e entry) storedAt() time.Time { return time.Unix(0, e.StoredAt) }

// ErrorDescriptor records a failed call so it can be replayed later.
type ErrorDescriptor struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Stack   []string `json:"stack,omitempty"`
	// Causes lists the wrapped errors, outermost first.
	Causes []ErrorCause `json:"causes,omitempty"`
}

// ErrorCause identifies one error in a wrap chain.
type ErrorCause struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// describeError captures kind, message and wrap chain of err. A stack is
// recorded when any error in the chain carries a github.com/pkg/errors trace.
func describeError(err error) *ErrorDescriptor {
	d := &ErrorDescriptor{Kind: errorKind(err), Message: err.Error()}
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		d.Causes = append(d.Causes, ErrorCause{Kind: errorKind(cause), Message: cause.Error()})
	}
	var tracer interface{ StackTrace() pkgerrors.StackTrace }
	if errors.As(err, &tracer) {
		for i, f := range tracer.StackTrace() {
			if i == maxStackFrames {
				break
			}
			d.Stack = append(d.Stack, fmt.Sprintf("%n (%s:%d)", f, f, f))
		}
	}
	return d
}

func errorKind(err error) string {
	if c, ok := err.(*CachedError); ok {
		return c.Descriptor.Kind
	}
	return fmt.Sprintf("%T", err)
}

// CachedError is returned when a memoized function replays a stored failure.
// errors.Is matches it against errors of the same kind and message anywhere
// in the recorded wrap chain, so sentinel checks keep working:
//
//	_, err := memo.Call(ctx)
//	errors.Is(err, sql.ErrNoRows) // true when the original failure wrapped it
type CachedError struct {
	Descriptor ErrorDescriptor
	StoredAt   time.Time
}

func (e *CachedError) Error() string { return e.Descriptor.Message }

// Is reports whether target has the kind and message of the recorded error
// or one of its causes.
func (e *CachedError) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*CachedError); ok {
		return t.Descriptor.Kind == e.Descriptor.Kind && t.Descriptor.Message == e.Descriptor.Message
	}
	kind, msg := errorKind(target), target.Error()
	if kind == e.Descriptor.Kind && msg == e.Descriptor.Message {
		return true
	}
	for _, c := range e.Descriptor.Causes {
		if kind == c.Kind && msg == c.Message {
			return true
		}
	}
	return false
}

// Stack returns the recorded frames, if any.
func (e *CachedError) Stack() []string { return e.Descriptor.Stack }

func encodeEntry(e entry) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}
	return body, nil
}

func decodeEntry(body []byte) (entry, error) {
	var e entry
	if err := json.Unmarshal(body, &e); err != nil {
		return entry{}, fmt.Errorf("decode cache entry: %w", err)
	}
	if e.StoredAt == 0 {
		return entry{}, errors.New("decode cache entry: missing timestamp")
	}
	return e, nil
}

// EntryMeta describes a stored entry without decoding its value.
type EntryMeta struct {
	StoredAt  time.Time
	ValueSize int
	// Err is set when the entry records a failed call.
	Err *ErrorDescriptor
}

// InspectEntry decodes the envelope of a raw stored body.
func InspectEntry(body []byte) (EntryMeta, error) {
	e, err := decodeEntry(body)
	if err != nil {
		return EntryMeta{}, err
	}
	return EntryMeta{StoredAt: e.storedAt(), ValueSize: len(e.Value), Err: e.Err}, nil
}
