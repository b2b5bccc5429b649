package smartcache

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
)

// ValueCodec defines how memoized results are encoded for storage.
type ValueCodec[T any] struct {
	Encode func(T) ([]byte, error)
	Decode func([]byte) (T, error)
}

// JSONCodec encodes results as JSON. It is the default.
func JSONCodec[T any]() ValueCodec[T] {
	return ValueCodec[T]{
		Encode: func(v T) ([]byte, error) { return json.Marshal(v) },
		Decode: func(b []byte) (T, error) {
			var out T
			err := json.Unmarshal(b, &out)
			return out, err
		},
	}
}

// GobCodec encodes results with encoding/gob. Use it for results JSON can
// not round-trip, such as maps keyed by structs.
func GobCodec[T any]() ValueCodec[T] {
	return ValueCodec[T]{
		Encode: func(v T) ([]byte, error) {
			var buf bytes.Buffer
			if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Decode: func(b []byte) (T, error) {
			var out T
			err := gob.NewDecoder(bytes.NewReader(b)).Decode(&out)
			return out, err
		},
	}
}

func (c ValueCodec[T]) validate() error {
	if c.Encode == nil || c.Decode == nil {
		return fmt.Errorf("%w: codec requires both Encode and Decode", ErrImproperlyConfigured)
	}
	return nil
}
